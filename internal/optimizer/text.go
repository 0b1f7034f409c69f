package optimizer

import (
	"sort"
	"strings"

	"sqlguard/internal/model"
	"sqlguard/internal/scanner"
)

// tok is a lexical item located in the masked statement text: either a word
// (a run of word bytes) or a single punctuation byte.
type tok struct {
	text  string
	start int
	end   int
}

func (t tok) is(s string) bool { return strings.EqualFold(t.text, s) }

func (t tok) isWord() bool { return t.text != "" && scanner.IsWordByte(t.text[0]) }

// flatten returns the statement text and a masked copy of identical length
// in which every byte outside code regions is a space. Passes match against
// the mask and edit the text, so comment and literal content can never
// satisfy a structural pattern.
func flatten(tokens []model.Token) (string, string) {
	var text, mask strings.Builder
	for _, t := range tokens {
		text.WriteString(t.Text)
		if t.Kind == model.TokenCode {
			mask.WriteString(t.Text)
		} else {
			mask.WriteString(strings.Repeat(" ", len(t.Text)))
		}
	}
	return text.String(), mask.String()
}

// lexRange lexes mask[from:to) into words and punctuation bytes, skipping
// whitespace. Offsets are absolute within the mask.
func lexRange(mask string, from, to int) []tok {
	var out []tok
	i := from
	for i < to {
		c := mask[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f':
			i++
		case scanner.IsWordByte(c):
			j := i
			for j < to && scanner.IsWordByte(mask[j]) {
				j++
			}
			out = append(out, tok{text: mask[i:j], start: i, end: j})
			i = j
		default:
			out = append(out, tok{text: mask[i : i+1], start: i, end: i + 1})
			i++
		}
	}
	return out
}

// matchParen returns the index of the ')' matching the '(' at open, or -1.
// Only mask bytes are considered, so parens inside literals never count.
func matchParen(mask string, open int) int {
	depth := 0
	for i := open; i < len(mask); i++ {
		switch mask[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits mask[from:to) on depth-zero commas, returning item
// byte ranges. The range is assumed paren-balanced.
func splitTopLevel(mask string, from, to int) [][2]int {
	depth := 0
	itemStart := from
	var out [][2]int
	for i := from; i < to; i++ {
		switch mask[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, [2]int{itemStart, i})
				itemStart = i + 1
			}
		}
	}
	return append(out, [2]int{itemStart, to})
}

// wordInRange reports whether word occurs as a whole word in mask[from:to).
func wordInRange(mask string, from, to int, word string) bool {
	for _, t := range lexRange(mask, from, to) {
		if t.isWord() && t.is(word) {
			return true
		}
	}
	return false
}

// normalizeExpr upper-cases a masked expression and collapses whitespace,
// for set-membership comparison of column references.
func normalizeExpr(mask string, from, to int) string {
	return strings.Join(strings.Fields(strings.ToUpper(mask[from:to])), " ")
}

// edit replaces text[start:end) with repl.
type edit struct {
	start int
	end   int
	repl  string
}

// applyEdits applies non-overlapping edits back to front.
func applyEdits(text string, edits []edit) string {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start > sorted[j].start })
	out := text
	for _, e := range sorted {
		out = out[:e.start] + e.repl + out[e.end:]
	}
	return out
}

// cteDef is one common-table-expression definition in a WITH clause.
type cteDef struct {
	name      string
	defStart  int // start of the CTE name
	defEnd    int // one past the body's closing paren
	bodyStart int // first byte inside the body parens
	bodyEnd   int // the body's closing paren
}

// parseWith recognizes a leading WITH clause in the masked text. It returns
// the definitions and the byte offset where the main statement body begins.
// RECURSIVE clauses are refused: textual reference counting cannot be made
// safe for them.
func parseWith(mask string) ([]cteDef, int, bool) {
	ts := lexRange(mask, 0, len(mask))
	if len(ts) == 0 || !ts[0].is("WITH") {
		return nil, 0, false
	}
	if len(ts) > 1 && ts[1].is("RECURSIVE") {
		return nil, 0, false
	}

	var defs []cteDef
	p := 1
	for {
		if p >= len(ts) || !ts[p].isWord() {
			return nil, 0, false
		}
		name := ts[p]
		p++

		if p < len(ts) && ts[p].text == "(" {
			// optional column list
			cl := matchParen(mask, ts[p].start)
			if cl < 0 {
				return nil, 0, false
			}
			p = skipTo(ts, p, cl+1)
		}
		if p >= len(ts) || !ts[p].is("AS") {
			return nil, 0, false
		}
		p++
		if p >= len(ts) || ts[p].text != "(" {
			return nil, 0, false
		}
		open := ts[p].start
		closing := matchParen(mask, open)
		if closing < 0 {
			return nil, 0, false
		}
		defs = append(defs, cteDef{
			name:      name.text,
			defStart:  name.start,
			defEnd:    closing + 1,
			bodyStart: open + 1,
			bodyEnd:   closing,
		})
		p = skipTo(ts, p, closing+1)

		if p < len(ts) && ts[p].text == "," {
			p++
			continue
		}
		if p >= len(ts) {
			// a WITH clause with no main body is not a query
			return nil, 0, false
		}
		return defs, ts[p].start, true
	}
}

// skipTo advances p until ts[p] starts at or after pos.
func skipTo(ts []tok, p, pos int) int {
	for p < len(ts) && ts[p].start < pos {
		p++
	}
	return p
}
