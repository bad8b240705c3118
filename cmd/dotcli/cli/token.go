// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// TokenKind is what the dispatcher decided a token is.
type TokenKind int

const (
	TokenCommand TokenKind = iota
	TokenOption
	TokenOptionValue
	TokenArgument

	// TokenDirective is a bracketed token such as "[parse]" before the
	// first command token.
	TokenDirective

	// TokenSeparator is the "--" that ends option processing.
	TokenSeparator

	// TokenPassthrough follows the separator.
	TokenPassthrough

	// TokenUnmatched is a token a passthrough command did not
	// recognize.
	TokenUnmatched

	// TokenHelp is a help switch.
	TokenHelp

	// TokenError matched nothing; a ParseError refers to it.
	TokenError
)

var tokenKindNames = [...]string{
	TokenCommand:     "command",
	TokenOption:      "option",
	TokenOptionValue: "value",
	TokenArgument:    "argument",
	TokenDirective:   "directive",
	TokenSeparator:   "separator",
	TokenPassthrough: "passthrough",
	TokenUnmatched:   "unmatched",
	TokenHelp:        "help",
	TokenError:       "error",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one input argument with its classification.
type Token struct {
	Text string
	Kind TokenKind

	// Position is the index in the dispatched argument list.
	Position int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
}

// isHelpToken reports whether token asks for help.
func isHelpToken(token string) bool {
	switch token {
	case "-h", "--help", "-?", "/h", "/?":
		return true
	}
	return false
}

// isDirectiveToken reports whether token has the "[name]" or
// "[name:value]" directive form.
func isDirectiveToken(token string) bool {
	if len(token) < 3 || token[0] != '[' || token[len(token)-1] != ']' {
		return false
	}
	for _, character := range token[1 : len(token)-1] {
		if character == ' ' || character == '[' || character == ']' {
			return false
		}
	}
	return true
}

// isOptionShaped reports whether token looks like an option. A lone
// "-" conventionally means standard input and is a positional.
func isOptionShaped(token string) bool {
	return len(token) > 1 && token[0] == '-'
}
