// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/dotcli/lib/argspec"
)

// DecisionKind distinguishes the two ways an invocation is forwarded.
type DecisionKind int

const (
	// PhysicalPassthrough forwards every token, in order, to the build
	// engine against a project on disk.
	PhysicalPassthrough DecisionKind = iota

	// VirtualEntryPoint treats a single source file as the whole
	// program. The entry point is removed from the forwarded tokens.
	VirtualEntryPoint
)

func (k DecisionKind) String() string {
	switch k {
	case VirtualEntryPoint:
		return "virtual-entry-point"
	default:
		return "physical-passthrough"
	}
}

// BoundOption is an option occurrence with its value tokens. Option is
// nil for an option the router does not know.
type BoundOption struct {
	Option *argspec.Option

	// Index is the position of the option token in ForwardedArgs.Tokens.
	Index int

	// Tokens are the raw tokens of this occurrence, including the
	// option token itself.
	Tokens []string

	// Values are the option's values with any attached "=" or ":"
	// syntax removed.
	Values []string
}

// ForwardedArgs is the bundle of tokens forwarded to the external
// process. Tokens holds the forwarded vector in original relative
// order; the other fields partition the same tokens by kind.
type ForwardedArgs struct {
	Tokens     []string
	Options    []BoundOption
	Diagnostic []string
	Positional []string

	// Unknown holds unrecognized option and switch tokens, including
	// any value bound to an unknown option. UnknownOptions groups each
	// unknown option with its value.
	Unknown        []string
	UnknownOptions []BoundOption

	// Application holds the tokens after a "--" terminator. They are
	// never routing candidates and are not part of Tokens.
	Application []string
}

// Decision is the result of routing one invocation.
type Decision struct {
	Kind DecisionKind

	// EntryPoint is the entry-point path for VirtualEntryPoint.
	EntryPoint string

	Args ForwardedArgs
}

// EntryPointPredicate decides whether a positional token names a
// file-based program.
type EntryPointPredicate func(token string) bool

// DiagnosticMatcher decides whether a token is a diagnostic or binary
// log switch that is forwarded verbatim and never treated as a
// positional.
type DiagnosticMatcher func(token string) bool

// Router classifies invocations. The zero value uses the default
// entry-point predicate and diagnostic patterns.
type Router struct {
	// Options are the known options whose values must not be mistaken
	// for positionals.
	Options []*argspec.Option

	IsEntryPoint EntryPointPredicate
	IsDiagnostic DiagnosticMatcher

	// Transform, if set, adjusts the forwarded bundle before the
	// decision is returned.
	Transform func(*ForwardedArgs)
}

// Route classifies tokens with the default predicate and diagnostic
// patterns.
func Route(tokens []string, options []*argspec.Option) Decision {
	return (&Router{Options: options}).Route(tokens)
}

// Route classifies tokens. The result depends only on tokens, the
// router's configuration, and (through the entry-point predicate) the
// filesystem.
func (r *Router) Route(tokens []string) Decision {
	isEntryPoint := r.IsEntryPoint
	if isEntryPoint == nil {
		isEntryPoint = FileEntryPoint(DefaultExtensions)
	}
	isDiagnostic := r.IsDiagnostic
	if isDiagnostic == nil {
		isDiagnostic = PrefixMatcher(DefaultDiagnosticPatterns)
	}

	var (
		args             ForwardedArgs
		candidateIndices []int
	)

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		if token == "--" {
			args.Application = append(args.Application, tokens[i+1:]...)
			break
		}

		if isDiagnostic(token) {
			args.Diagnostic = append(args.Diagnostic, token)
			args.Tokens = append(args.Tokens, token)
			continue
		}

		if isOptionToken(token) {
			option, attached, hasAttached := lookupOption(r.Options, token)
			if option == nil {
				// An unknown option keeps one following plain value,
				// as in "-maxcpucount 4". Entry-point candidates are
				// never taken as values.
				bound := BoundOption{Index: len(args.Tokens), Tokens: []string{token}}
				if !hasAttachedValue(token) && i+1 < len(tokens) {
					next := tokens[i+1]
					if isPlainValue(next) && !isDiagnostic(next) && !isEntryPoint(next) {
						bound.Values = []string{next}
						bound.Tokens = append(bound.Tokens, next)
						i++
					}
				}
				args.UnknownOptions = append(args.UnknownOptions, bound)
				args.Unknown = append(args.Unknown, bound.Tokens...)
				args.Tokens = append(args.Tokens, bound.Tokens...)
				continue
			}

			bound := BoundOption{Option: option, Index: len(args.Tokens), Tokens: []string{token}}
			if hasAttached {
				bound.Values = append(bound.Values, attached)
			} else {
				// Consume following value tokens up to the option's
				// maximum arity, stopping at anything option-shaped.
				for len(bound.Values) < option.Arity.Max && i+1 < len(tokens) {
					next := tokens[i+1]
					if next == "--" || isOptionToken(next) || isDiagnostic(next) {
						break
					}
					if option.Type == argspec.Bool && !isBoolLiteral(next) {
						break
					}
					bound.Values = append(bound.Values, next)
					bound.Tokens = append(bound.Tokens, next)
					i++
				}
			}
			args.Options = append(args.Options, bound)
			args.Tokens = append(args.Tokens, bound.Tokens...)
			continue
		}

		if argspec.IsSwitch(token) {
			args.Unknown = append(args.Unknown, token)
			args.Tokens = append(args.Tokens, token)
			continue
		}

		args.Positional = append(args.Positional, token)
		args.Tokens = append(args.Tokens, token)
		if isEntryPoint(token) {
			candidateIndices = append(candidateIndices, len(args.Tokens)-1)
		}
	}

	decision := Decision{Kind: PhysicalPassthrough}
	if len(args.Positional) == 1 && len(candidateIndices) == 1 {
		entryIndex := candidateIndices[0]
		decision.Kind = VirtualEntryPoint
		decision.EntryPoint = args.Tokens[entryIndex]
		args.Tokens = append(args.Tokens[:entryIndex:entryIndex], args.Tokens[entryIndex+1:]...)
		args.Positional = nil
		for i := range args.Options {
			if args.Options[i].Index > entryIndex {
				args.Options[i].Index--
			}
		}
		for i := range args.UnknownOptions {
			if args.UnknownOptions[i].Index > entryIndex {
				args.UnknownOptions[i].Index--
			}
		}
	}

	if r.Transform != nil {
		r.Transform(&args)
	}
	decision.Args = args
	return decision
}

// ForwardedTokens renders the bundle as the engine sees it, in original
// order. Recognized options are translated through their Forward
// function (or kept verbatim when they have none); every other token is
// kept verbatim.
func (a ForwardedArgs) ForwardedTokens() []string {
	return a.render(true)
}

// OptionTokens is ForwardedTokens without the positional tokens, for
// commands that hand positionals to something other than the engine.
func (a ForwardedArgs) OptionTokens() []string {
	return a.render(false)
}

func (a ForwardedArgs) render(positionals bool) []string {
	byIndex := make(map[int]BoundOption, len(a.Options)+len(a.UnknownOptions))
	for _, option := range a.Options {
		byIndex[option.Index] = option
	}
	for _, option := range a.UnknownOptions {
		byIndex[option.Index] = option
	}
	diagnostic := make(map[string]bool, len(a.Diagnostic))
	for _, token := range a.Diagnostic {
		diagnostic[token] = true
	}

	var tokens []string
	for i := 0; i < len(a.Tokens); i++ {
		option, ok := byIndex[i]
		if !ok {
			token := a.Tokens[i]
			if positionals || diagnostic[token] || isOptionToken(token) || argspec.IsSwitch(token) {
				tokens = append(tokens, token)
			}
			continue
		}
		i += len(option.Tokens) - 1
		if option.Option == nil || option.Option.Forward == nil {
			tokens = append(tokens, option.Tokens...)
			continue
		}
		tokens = append(tokens, option.Option.Forward(option.Value())...)
	}
	return tokens
}

// Value returns the bound value typed per the option's ValueType. An
// unknown option's values are returned as a []string.
func (b BoundOption) Value() any {
	if b.Option == nil {
		return append([]string(nil), b.Values...)
	}
	switch b.Option.Type {
	case argspec.Bool:
		if len(b.Values) == 0 {
			return true
		}
		return strings.EqualFold(b.Values[0], "true")
	case argspec.StringSlice:
		return append([]string(nil), b.Values...)
	default:
		if len(b.Values) == 0 {
			return ""
		}
		return b.Values[len(b.Values)-1]
	}
}

// DefaultExtensions are the accepted entry-point file extensions.
var DefaultExtensions = []string{".cs"}

// FileEntryPoint returns a predicate accepting tokens that are not
// option-shaped, carry one of extensions (case-insensitive), and name
// an existing regular file.
func FileEntryPoint(extensions []string) EntryPointPredicate {
	accepted := make(map[string]bool, len(extensions))
	for _, extension := range extensions {
		accepted[strings.ToLower(extension)] = true
	}
	return func(token string) bool {
		if token == "" || isOptionToken(token) {
			return false
		}
		if !accepted[strings.ToLower(filepath.Ext(token))] {
			return false
		}
		info, err := os.Stat(token)
		return err == nil && info.Mode().IsRegular()
	}
}

// DefaultDiagnosticPatterns recognize binary-log switches in their
// dash and slash spellings.
var DefaultDiagnosticPatterns = []string{"-bl", "/bl", "--bl", "-binarylogger", "/binarylogger", "--binarylogger"}

// PrefixMatcher returns a matcher for tokens equal to a pattern or
// starting with a pattern followed by ':' (the value separator),
// compared case-insensitively.
func PrefixMatcher(patterns []string) DiagnosticMatcher {
	lowered := make([]string, len(patterns))
	for i, pattern := range patterns {
		lowered[i] = strings.ToLower(pattern)
	}
	return func(token string) bool {
		candidate := strings.ToLower(token)
		for _, pattern := range lowered {
			if candidate == pattern || strings.HasPrefix(candidate, pattern+":") {
				return true
			}
		}
		return false
	}
}

// isOptionToken reports whether a token is option-shaped. A lone "-"
// conventionally means standard input and is a positional.
func isOptionToken(token string) bool {
	return len(token) > 1 && token[0] == '-'
}

// isPlainValue reports whether a token can be the value of an unknown
// option: anything that is not itself option-shaped, a switch, or the
// terminator.
func isPlainValue(token string) bool {
	return token != "--" && !isOptionToken(token) && !argspec.IsSwitch(token)
}

// hasAttachedValue reports whether an option token carries its value
// after '=' or ':'.
func hasAttachedValue(token string) bool {
	return strings.ContainsAny(token, "=:")
}

func isBoolLiteral(token string) bool {
	return strings.EqualFold(token, "true") || strings.EqualFold(token, "false")
}

// lookupOption finds the known option a token refers to. It accepts
// "--name", "--name=value", "--name:value", "-n", "-n=value" and
// "-n:value".
func lookupOption(options []*argspec.Option, token string) (option *argspec.Option, attached string, hasAttached bool) {
	long := strings.HasPrefix(token, "--")
	name := strings.TrimPrefix(strings.TrimPrefix(token, "-"), "-")

	if index := strings.IndexAny(name, "=:"); index >= 0 {
		attached = name[index+1:]
		name = name[:index]
		hasAttached = true
	}

	for _, candidate := range options {
		if candidate.Matches(name, long) {
			return candidate, attached, hasAttached
		}
	}
	return nil, "", false
}
