package script

import "strings"

// Tokenize splits a script line into tokens. Tokens are separated by spaces or
// tabs; a single- or double-quoted run forms part of one token with its
// whitespace intact and the quotes removed. An unterminated quote runs to the
// end of the line. An empty quoted string yields an empty token.
func Tokenize(line string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		pending bool // current holds a token, possibly empty
	)

	flush := func() {
		if pending {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		pending = false
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			pending = true
		case r == ' ' || r == '\t':
			flush()
		default:
			current.WriteRune(r)
			pending = true
		}
	}
	flush()
	return tokens
}
