// Package params parses the key=value arguments users attach to generation
// commands.
package params

import (
	"strings"

	"docbot/internal/domain"
)

type token struct {
	text   string
	equals int // index of the unquoted '=' in text, -1 when absent
	count  int // number of unquoted '='
}

// Parse splits input on whitespace (single and double quotes group words) and
// returns a mapping of upper-cased keys to values. Every token must contain
// exactly one unquoted '=' and a non-empty key; otherwise the whole input is
// rejected with domain.ErrValidation.
func Parse(input string) (map[string]string, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		if tok.count != 1 {
			return nil, domain.Validationf("expected key=value, got %q", tok.text)
		}
		key := domain.FieldKey(tok.text[:tok.equals])
		if key == "" {
			return nil, domain.Validationf("missing key in %q", tok.text)
		}
		out[key] = tok.text[tok.equals+1:]
	}
	return out, nil
}

// Tokenize exposes the quote-aware splitter on its own.
func Tokenize(input string) ([]string, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.text
	}
	return out, nil
}

func tokenize(input string) ([]token, error) {
	var (
		tokens  []token
		buf     strings.Builder
		quote   rune
		escaped bool
		started bool
		cur     = token{equals: -1}
	)
	flush := func() {
		if started {
			cur.text = buf.String()
			tokens = append(tokens, cur)
		}
		buf.Reset()
		cur = token{equals: -1}
		started = false
	}
	for _, r := range input {
		switch {
		case escaped:
			buf.WriteRune(r)
			escaped = false
		case r == '\\' && quote == '"':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			buf.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			started = true
		case isSpace(r):
			flush()
		default:
			if r == '=' {
				if cur.count == 0 {
					cur.equals = buf.Len()
				}
				cur.count++
			}
			buf.WriteRune(r)
			started = true
		}
	}
	if quote != 0 || escaped {
		return nil, domain.Validationf("unterminated quote")
	}
	flush()
	return tokens, nil
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\u00a0':
		return true
	}
	return false
}
