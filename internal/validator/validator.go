// Package validator decides whether SQL text from an untrusted generator is
// safe to run against the warehouse. It operates on the scanner's token
// stream only: keywords inside comments, string literals, or quoted
// identifiers can neither trigger nor mask a rejection.
package validator

import (
	"strings"

	"sqlguard/internal/model"
	"sqlguard/internal/scanner"
)

// Config holds deployment-level classifier settings.
type Config struct {
	// ExtraKeywords are blocked in addition to the fixed dangerous set.
	// The fixed set cannot be removed.
	ExtraKeywords []string
}

// Classifier applies the whitelist/blacklist policy. It is stateless after
// construction and safe for concurrent use.
type Classifier struct {
	blocked map[string]struct{}
}

// New builds a Classifier from cfg.
func New(cfg Config) *Classifier {
	blocked := make(map[string]struct{}, len(dangerousKeywords)+len(cfg.ExtraKeywords))
	for _, kw := range dangerousKeywords {
		blocked[kw] = struct{}{}
	}
	for _, kw := range cfg.ExtraKeywords {
		if w := strings.ToUpper(strings.TrimSpace(kw)); w != "" {
			blocked[w] = struct{}{}
		}
	}
	return &Classifier{blocked: blocked}
}

// Validate classifies one candidate SQL string. It never panics and returns
// a defined verdict for every finite input; ambiguity rejects.
func (c *Classifier) Validate(sql string) model.ValidationResult {
	scan := scanner.Scan(sql)
	sanitized := Sanitize(scan.Tokens)

	reject := func(reason model.ReasonCode, keyword string) model.ValidationResult {
		return model.ValidationResult{
			Verdict:          model.VerdictRejected,
			Reason:           reason,
			OffendingKeyword: keyword,
			SanitizedSQL:     sanitized,
		}
	}

	if scan.Unterminated {
		return reject(model.ReasonUnterminatedLiteral, "")
	}

	stmts := scanner.Split(scan.Tokens)
	switch {
	case len(stmts) == 0:
		return reject(model.ReasonEmptyQuery, "")
	case len(stmts) > 1:
		return reject(model.ReasonMultiStatement, "")
	}
	stmt := stmts[0]

	// Whitelist first: the cheaper, more certain check wins the tie-break.
	if !isAllowedLeadingWord(firstWord(stmt)) {
		return reject(model.ReasonNotSelectOrWith, "")
	}

	if kw, found := c.firstBlocked(stmt); found {
		return reject(model.ReasonDangerousKeyword, kw)
	}

	return model.ValidationResult{
		Verdict:      model.VerdictOK,
		SanitizedSQL: sanitized,
	}
}

// firstWord returns the upper-cased leading word of the statement's code
// region, or "" when the statement starts with a non-word character.
func firstWord(stmt model.Statement) string {
	for _, tok := range stmt.Tokens {
		if tok.Kind != model.TokenCode {
			continue
		}
		text := tok.Text
		i := 0
		for i < len(text) && isSpaceByte(text[i]) {
			i++
		}
		if i == len(text) {
			continue
		}
		j := i
		for j < len(text) && scanner.IsWordByte(text[j]) {
			j++
		}
		return strings.ToUpper(text[i:j])
	}
	return ""
}

func isAllowedLeadingWord(word string) bool {
	for _, allowed := range allowedLeadingWords {
		if word == allowed {
			return true
		}
	}
	return false
}

// firstBlocked scans code tokens left to right for a blacklisted whole word.
func (c *Classifier) firstBlocked(stmt model.Statement) (string, bool) {
	for _, tok := range stmt.Tokens {
		if tok.Kind != model.TokenCode {
			continue
		}
		text := tok.Text
		i := 0
		for i < len(text) {
			if !scanner.IsWordByte(text[i]) {
				i++
				continue
			}
			j := i
			for j < len(text) && scanner.IsWordByte(text[j]) {
				j++
			}
			word := strings.ToUpper(text[i:j])
			if _, ok := c.blocked[word]; ok {
				return word, true
			}
			i = j
		}
	}
	return "", false
}

// Sanitize renders a token stream for diagnostic display: comments are
// dropped (a single space keeps their neighbors apart), whitespace runs in
// code regions collapse to one space, and literal tokens pass through
// untouched.
func Sanitize(tokens []model.Token) string {
	var b strings.Builder
	pending := false
	emit := func(s string) {
		if pending && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pending = false
		b.WriteString(s)
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case model.TokenLineComment, model.TokenBlockComment:
			pending = true
		case model.TokenStringLiteral, model.TokenQuotedIdentifier:
			emit(tok.Text)
		default:
			text := tok.Text
			if len(text) > 0 && isSpaceByte(text[0]) {
				pending = true
			}
			for i, field := range strings.Fields(text) {
				if i > 0 {
					pending = true
				}
				emit(field)
			}
			if len(text) > 0 && isSpaceByte(text[len(text)-1]) {
				pending = true
			}
		}
	}
	return b.String()
}

func isSpaceByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
