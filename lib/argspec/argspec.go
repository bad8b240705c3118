// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package argspec

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// Unbounded is the maximum arity of an option or argument that accepts
// any number of values.
const Unbounded = math.MaxInt32

// Arity is the number of values an option or argument consumes.
type Arity struct {
	Min int
	Max int
}

var (
	// ArityZero is a flag: the option takes no value.
	ArityZero = Arity{Min: 0, Max: 0}

	// ArityZeroOrOne is an optional single value.
	ArityZeroOrOne = Arity{Min: 0, Max: 1}

	// ArityExactlyOne is a required single value.
	ArityExactlyOne = Arity{Min: 1, Max: 1}

	// ArityZeroOrMore accepts any number of values.
	ArityZeroOrMore = Arity{Min: 0, Max: Unbounded}

	// ArityOneOrMore requires at least one value.
	ArityOneOrMore = Arity{Min: 1, Max: Unbounded}
)

// Validate checks that the arity is non-negative with Min <= Max.
func (a Arity) Validate() error {
	if a.Min < 0 || a.Max < 0 {
		return fmt.Errorf("arity %s: bounds must be non-negative", a)
	}
	if a.Min > a.Max {
		return fmt.Errorf("arity %s: minimum exceeds maximum", a)
	}
	return nil
}

func (a Arity) String() string {
	if a.Max == Unbounded {
		return fmt.Sprintf("%d..*", a.Min)
	}
	return fmt.Sprintf("%d..%d", a.Min, a.Max)
}

// ValueType is the Go type a parsed option or argument produces.
type ValueType int

const (
	// String values are bound as string (the last value wins when an
	// option is repeated).
	String ValueType = iota

	// Bool values are bound as bool. A bool option given without a
	// value is true.
	Bool

	// StringSlice values accumulate every occurrence as []string.
	StringSlice
)

func (v ValueType) String() string {
	switch v {
	case String:
		return "string"
	case Bool:
		return "bool"
	case StringSlice:
		return "stringSlice"
	default:
		return fmt.Sprintf("ValueType(%d)", int(v))
	}
}

// Option describes a named option accepted by a command.
//
// Options are matched by identity: parsed values are keyed by the
// *Option pointer, so two options with the same name on different
// commands never collide.
type Option struct {
	// Name is the long form without the leading "--" (e.g.,
	// "configuration"). Matching is case-sensitive.
	Name string

	// Short is the single-character short form without the leading
	// "-" (e.g., "c"). Empty if the option has no short form.
	Short string

	// Aliases are additional long forms, also without "--".
	Aliases []string

	// Description is shown in help output.
	Description string

	// ValueName labels the value in help output (e.g., "CONFIGURATION").
	ValueName string

	Type  ValueType
	Arity Arity

	// Required options must appear at least once.
	Required bool

	// Hidden options are accepted but omitted from help.
	Hidden bool

	// Global options are visible to every descendant of the command
	// that declares them.
	Global bool

	// Default produces the value bound when the option is absent.
	// Nil means the zero value of Type.
	Default func() any

	// Forward translates a bound value into the argument tokens handed
	// to an external process. Nil forwards the option's tokens
	// verbatim; Consume drops them.
	Forward func(value any) []string
}

// Names returns every long form of the option.
func (o *Option) Names() []string {
	names := make([]string, 0, 1+len(o.Aliases))
	names = append(names, o.Name)
	return append(names, o.Aliases...)
}

// Matches reports whether a bare name (no dash prefix) identifies this
// option. Long names and aliases are checked for long forms; the short
// form is a separate namespace.
func (o *Option) Matches(name string, long bool) bool {
	if !long {
		return o.Short != "" && name == o.Short
	}
	for _, candidate := range o.Names() {
		if candidate == name {
			return true
		}
	}
	return false
}

// Validate checks the option's structural constraints.
func (o *Option) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("option has no name")
	}
	if strings.HasPrefix(o.Name, "-") {
		return fmt.Errorf("option %q: name must not include the dash prefix", o.Name)
	}
	if len(o.Short) > 1 {
		return fmt.Errorf("option %q: short form %q must be a single character", o.Name, o.Short)
	}
	if err := o.Arity.Validate(); err != nil {
		return fmt.Errorf("option %q: %w", o.Name, err)
	}
	if o.Type == Bool && o.Arity.Max > 1 {
		return fmt.Errorf("option %q: bool options accept at most one value", o.Name)
	}
	return nil
}

// DefaultValue returns the value bound when the option is absent.
func (o *Option) DefaultValue() any {
	if o.Default != nil {
		return o.Default()
	}
	return zeroValue(o.Type)
}

// Argument describes a positional argument slot.
type Argument struct {
	Name        string
	Description string
	Type        ValueType
	Arity       Arity

	// Default produces the value bound when no tokens fill the slot.
	Default func() any
}

// Validate checks the argument's structural constraints.
func (a *Argument) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("argument has no name")
	}
	if err := a.Arity.Validate(); err != nil {
		return fmt.Errorf("argument %q: %w", a.Name, err)
	}
	return nil
}

// DefaultValue returns the value bound when the argument is absent.
func (a *Argument) DefaultValue() any {
	if a.Default != nil {
		return a.Default()
	}
	return zeroValue(a.Type)
}

// DefaultCurrentDirectory is a Default function producing the working
// directory, or "." if it cannot be determined.
func DefaultCurrentDirectory() any {
	directory, err := os.Getwd()
	if err != nil {
		return "."
	}
	return directory
}

// ForwardAs returns a Forward function that renders a value as
// prefix+value (e.g., ForwardAs("-property:Configuration=")). Slices
// produce one token per element; bools produce the bare prefix when
// true and nothing when false.
func ForwardAs(prefix string) func(any) []string {
	return func(value any) []string {
		switch typed := value.(type) {
		case string:
			if typed == "" {
				return nil
			}
			return []string{prefix + typed}
		case []string:
			tokens := make([]string, 0, len(typed))
			for _, element := range typed {
				tokens = append(tokens, prefix+element)
			}
			return tokens
		case bool:
			if typed {
				return []string{prefix}
			}
			return nil
		default:
			return nil
		}
	}
}

// Consume is the Forward function of options handled by dotcli itself:
// they are never forwarded.
func Consume(any) []string {
	return nil
}

func zeroValue(valueType ValueType) any {
	switch valueType {
	case Bool:
		return false
	case StringSlice:
		return []string(nil)
	default:
		return ""
	}
}

// IsSwitch reports whether token is a slash-prefixed engine switch
// such as "/p:Configuration=Release" or "/bl". The switch name (the
// text before any ':') must be letters only, so rooted paths with more
// than one component are not switches.
func IsSwitch(token string) bool {
	if len(token) < 2 || token[0] != '/' {
		return false
	}
	name := token[1:]
	if index := strings.IndexByte(name, ':'); index >= 0 {
		name = name[:index]
	}
	if name == "" {
		return false
	}
	for _, character := range name {
		if !('a' <= character && character <= 'z' || 'A' <= character && character <= 'Z') {
			return false
		}
	}
	return true
}
