package optimizer

import (
	"strings"

	"sqlguard/internal/model"
)

// RemoveRedundantDistinctOrderBy removes a DISTINCT that a covering GROUP BY
// already makes a no-op, and ORDER BY clauses inside subqueries where no
// LIMIT/FETCH at the same nesting level consumes the ordering.
type RemoveRedundantDistinctOrderBy struct{}

func (*RemoveRedundantDistinctOrderBy) Name() string {
	return "remove_redundant_distinct_order_by"
}

func (*RemoveRedundantDistinctOrderBy) Describe() string {
	return "drop DISTINCT made redundant by GROUP BY and unconsumed inner ORDER BY clauses"
}

func (*RemoveRedundantDistinctOrderBy) Apply(tokens []model.Token) (string, bool) {
	text, mask := flatten(tokens)

	edits := innerOrderByEdits(text, mask)
	if e, ok := distinctEdit(mask); ok {
		edits = append(edits, e)
	}
	if len(edits) == 0 {
		return "", false
	}
	return strings.TrimSpace(applyEdits(text, edits)), true
}

// aggregateFuncs are grouped-aggregate call heads; a select item built from
// one is functionally determined by the grouping and never blocks the
// DISTINCT removal.
var aggregateFuncs = map[string]bool{
	"SUM":   true,
	"COUNT": true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// distinctEdit removes the statement's outer DISTINCT when every selected
// column is either aggregated or present in the GROUP BY column set, which
// already guarantees row uniqueness.
func distinctEdit(mask string) (edit, bool) {
	bodyStart := 0
	if _, bs, ok := parseWith(mask); ok {
		bodyStart = bs
	}
	ts := lexRange(mask, bodyStart, len(mask))
	if len(ts) < 3 || !ts[0].is("SELECT") || !ts[1].is("DISTINCT") {
		return edit{}, false
	}

	depth := 0
	fromIdx, groupIdx := -1, -1
	groupEnd := len(mask)
	for i, t := range ts {
		switch t.text {
		case "(":
			depth++
			continue
		case ")":
			depth--
			continue
		}
		if depth != 0 || !t.isWord() {
			continue
		}
		switch {
		case t.is("UNION") || t.is("INTERSECT") || t.is("EXCEPT") || t.is("MINUS"):
			return edit{}, false
		case fromIdx < 0 && t.is("FROM"):
			fromIdx = i
		case groupIdx < 0 && t.is("GROUP"):
			if i+1 < len(ts) && ts[i+1].is("BY") {
				groupIdx = i
			}
		case groupIdx >= 0 && groupEnd == len(mask) &&
			(t.is("HAVING") || t.is("WINDOW") || t.is("QUALIFY") || t.is("ORDER") ||
				t.is("LIMIT") || t.is("FETCH") || t.is("OFFSET")):
			groupEnd = t.start
		}
	}
	if fromIdx < 0 || groupIdx < 0 || fromIdx < 2 || groupIdx+2 >= len(ts) {
		return edit{}, false
	}

	grouped := make(map[string]bool)
	for _, r := range splitTopLevel(mask, ts[groupIdx+2].start, groupEnd) {
		grouped[normalizeExpr(mask, r[0], r[1])] = true
	}

	for _, r := range splitTopLevel(mask, ts[2].start, ts[fromIdx].start) {
		if !selectItemCovered(mask, r[0], r[1], grouped) {
			return edit{}, false
		}
	}

	// cut DISTINCT and the gap up to the first select item
	return edit{start: ts[1].start, end: ts[2].start, repl: ""}, true
}

// selectItemCovered reports whether one select-list item cannot introduce
// duplicate rows under the given grouping: either an aggregate call or a
// plain column reference that is part of the GROUP BY set.
func selectItemCovered(mask string, from, to int, grouped map[string]bool) bool {
	its := lexRange(mask, from, to)
	if len(its) == 0 {
		return false
	}

	exprEnd := to
	if len(its) >= 3 && its[len(its)-2].is("AS") && its[len(its)-1].isWord() {
		exprEnd = its[len(its)-2].start
		its = its[:len(its)-2]
	}

	if aggregateFuncs[strings.ToUpper(its[0].text)] && len(its) > 1 && its[1].text == "(" {
		for _, t := range its {
			if t.is("OVER") {
				return false
			}
		}
		return true
	}

	switch len(its) {
	case 1:
		if !its[0].isWord() {
			return false
		}
	case 3:
		if !its[0].isWord() || its[1].text != "." || !its[2].isWord() {
			return false
		}
	default:
		return false
	}
	return grouped[normalizeExpr(mask, its[0].start, exprEnd)]
}

// innerOrderByEdits collects removable ORDER BY clauses: those inside a
// parenthesized SELECT with no LIMIT/FETCH/OFFSET/TOP at the same nesting
// level. ORDER BY inside window frames (OVER (...)) never qualifies because
// the enclosing paren region does not start with SELECT.
func innerOrderByEdits(text, mask string) []edit {
	ts := lexRange(mask, 0, len(mask))

	type frame struct {
		open     int // index in ts of '('
		isSelect bool
	}
	var stack []frame
	var edits []edit

	for i := 0; i < len(ts); i++ {
		t := ts[i]
		switch t.text {
		case "(":
			stack = append(stack, frame{
				open:     i,
				isSelect: i+1 < len(ts) && ts[i+1].is("SELECT"),
			})
			continue
		case ")":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		if !t.is("ORDER") || len(stack) == 0 || !stack[len(stack)-1].isSelect {
			continue
		}
		if i+1 >= len(ts) || !ts[i+1].is("BY") {
			continue
		}

		// anything consuming the ordering earlier in this subquery (TOP)?
		if limitAtSameLevel(ts, stack[len(stack)-1].open+1, i) {
			continue
		}

		// walk to the end of the clause at this nesting level
		depth := 0
		end := -1
		consumed := false
		j := i + 2
		for ; j < len(ts); j++ {
			tt := ts[j]
			if tt.text == "(" {
				depth++
				continue
			}
			if tt.text == ")" {
				if depth == 0 {
					end = tt.start
					break
				}
				depth--
				continue
			}
			if depth == 0 && isLimitWord(tt) {
				consumed = true
			}
		}
		if end < 0 || consumed {
			continue
		}

		start := t.start
		for start > 0 && mask[start-1] == ' ' && isAsciiSpace(text[start-1]) {
			start--
		}
		edits = append(edits, edit{start: start, end: end, repl: ""})
		i = j - 1 // resume at the closing paren
	}
	return edits
}

// limitAtSameLevel reports whether a LIMIT-family word occurs at nesting
// depth zero among ts[from:to].
func limitAtSameLevel(ts []tok, from, to int) bool {
	depth := 0
	for k := from; k < to && k < len(ts); k++ {
		switch ts[k].text {
		case "(":
			depth++
		case ")":
			depth--
		default:
			if depth == 0 && isLimitWord(ts[k]) {
				return true
			}
		}
	}
	return false
}

func isLimitWord(t tok) bool {
	return t.is("LIMIT") || t.is("FETCH") || t.is("OFFSET") || t.is("TOP")
}

func isAsciiSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
