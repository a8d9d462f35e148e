package shell

import (
	"strconv"
	"strings"
)

// ArgKind tags the auto-detected type of a command argument.
type ArgKind uint8

const (
	KindText ArgKind = iota
	KindInt
	KindBool
)

// Arg is one typed command argument. Raw always holds the original
// token; Bool and Int are set for their respective kinds.
type Arg struct {
	Kind ArgKind
	Raw  string
	Bool bool
	Int  int64
}

// String re-renders the argument from its typed value: booleans as
// true/false, integers in decimal, text verbatim.
func (a Arg) String() string {
	switch a.Kind {
	case KindBool:
		if a.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(a.Int, 10)
	default:
		return a.Raw
	}
}

// splitLine tokenizes a command line. Tokens are separated by
// whitespace; a token beginning with a double quote consumes verbatim
// text (embedded whitespace included) up to the closing quote, and
// text immediately after the closing quote starts a new token. An
// unterminated quote drops the malformed token and the remainder of
// the line; tokens before it stand.
func splitLine(line string) []string {
	var tokens []string
	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i >= len(line) {
			break
		}
		if line[i] == '"' {
			i++
			end := strings.IndexByte(line[i:], '"')
			if end < 0 {
				break
			}
			tokens = append(tokens, line[i:i+end])
			i += end + 1
			continue
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		tokens = append(tokens, line[start:i])
	}
	return tokens
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// typeToken auto-types one token: case-insensitive true/on/yes and
// false/off/no become booleans, a token fully consumed by an integer
// parse (base prefixes allowed) becomes an integer, anything else is
// text.
func typeToken(tok string) Arg {
	switch {
	case foldEqualsAny(tok, "true", "on", "yes"):
		return Arg{Kind: KindBool, Raw: tok, Bool: true}
	case foldEqualsAny(tok, "false", "off", "no"):
		return Arg{Kind: KindBool, Raw: tok}
	}
	if n, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return Arg{Kind: KindInt, Raw: tok, Int: n}
	}
	return Arg{Kind: KindText, Raw: tok}
}

func foldEqualsAny(s string, candidates ...string) bool {
	for _, c := range candidates {
		if strings.EqualFold(s, c) {
			return true
		}
	}
	return false
}
