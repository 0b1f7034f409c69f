// Package scanner turns raw SQL text into a token stream that distinguishes
// code from comments and string/quoted-identifier literals. It is a small
// finite-state machine over bytes: quote and comment markers are ASCII, so
// multi-byte runes simply ride along inside whatever region they occur in.
package scanner

import (
	"strings"

	"sqlguard/internal/model"
)

// Result carries the token stream for one input. Unterminated is set when a
// string literal, quoted identifier, or block comment is still open at end of
// input; the final token then spans to the end of the input and the true
// code/literal boundary cannot be determined (fail-closed upstream).
type Result struct {
	Tokens       []model.Token
	Unterminated bool
}

// Scan tokenizes raw SQL in a single left-to-right pass. It never fails:
// every finite input produces a token stream whose concatenation reproduces
// the input byte-for-byte.
func Scan(input string) Result {
	var res Result
	n := len(input)
	i := 0
	codeStart := 0

	emit := func(kind model.TokenKind, start, end int) {
		res.Tokens = append(res.Tokens, model.Token{
			Kind:  kind,
			Text:  input[start:end],
			Start: start,
			End:   end,
		})
	}
	flushCode := func(end int) {
		if end > codeStart {
			emit(model.TokenCode, codeStart, end)
		}
	}

	for i < n {
		c := input[i]
		switch {
		case c == '-' && i+1 < n && input[i+1] == '-':
			flushCode(i)
			end := i + 2
			for end < n && input[end] != '\n' {
				end++
			}
			// The newline stays outside the comment token so that line
			// structure survives comment stripping.
			emit(model.TokenLineComment, i, end)
			i, codeStart = end, end

		case c == '/' && i+1 < n && input[i+1] == '*':
			flushCode(i)
			if rel := strings.Index(input[i+2:], "*/"); rel >= 0 {
				end := i + 2 + rel + 2
				emit(model.TokenBlockComment, i, end)
				i, codeStart = end, end
			} else {
				emit(model.TokenBlockComment, i, n)
				res.Unterminated = true
				i, codeStart = n, n
			}

		case c == '\'':
			flushCode(i)
			end, closed := scanQuoted(input, i, '\'')
			emit(model.TokenStringLiteral, i, end)
			if !closed {
				res.Unterminated = true
			}
			i, codeStart = end, end

		case c == '"':
			flushCode(i)
			end, closed := scanQuoted(input, i, '"')
			emit(model.TokenQuotedIdentifier, i, end)
			if !closed {
				res.Unterminated = true
			}
			i, codeStart = end, end

		default:
			i++
		}
	}
	flushCode(n)

	return res
}

// scanQuoted consumes a quoted run starting at the opening quote at i.
// A doubled quote is an escape and stays inside the run. Returns the index
// just past the closing quote and whether the run was closed before EOF.
func scanQuoted(input string, i int, quote byte) (int, bool) {
	j := i + 1
	for j < len(input) {
		if input[j] != quote {
			j++
			continue
		}
		if j+1 < len(input) && input[j+1] == quote {
			j += 2
			continue
		}
		return j + 1, true
	}
	return len(input), false
}

// IsWordByte reports whether c can be part of an unquoted SQL word.
// '$' is included because warehouse identifiers may contain it.
func IsWordByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_' || c == '$':
		return true
	}
	return false
}
