package scanner

import (
	"strings"

	"sqlguard/internal/model"
)

// Split partitions a token stream into statements at semicolons that occur
// inside CODE tokens. Semicolons inside comments or literals are never
// boundaries. Statements without any code content (whitespace or comments
// only, including the run after a trailing semicolon) are dropped.
func Split(tokens []model.Token) []model.Statement {
	var stmts []model.Statement
	var cur []model.Token

	for _, tok := range tokens {
		if tok.Kind != model.TokenCode {
			cur = append(cur, tok)
			continue
		}
		text := tok.Text
		base := tok.Start
		for {
			idx := strings.IndexByte(text, ';')
			if idx < 0 {
				break
			}
			if idx > 0 {
				cur = append(cur, model.Token{
					Kind:  model.TokenCode,
					Text:  text[:idx],
					Start: base,
					End:   base + idx,
				})
			}
			stmts = closeStatement(stmts, cur)
			cur = nil
			text = text[idx+1:]
			base += idx + 1
		}
		if text != "" {
			cur = append(cur, model.Token{
				Kind:  model.TokenCode,
				Text:  text,
				Start: base,
				End:   base + len(text),
			})
		}
	}

	return closeStatement(stmts, cur)
}

func closeStatement(stmts []model.Statement, tokens []model.Token) []model.Statement {
	st := model.Statement{Tokens: tokens}
	if st.IsEmpty() {
		return stmts
	}
	return append(stmts, st)
}
