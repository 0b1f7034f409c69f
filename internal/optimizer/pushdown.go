package optimizer

import (
	"strings"

	"sqlguard/internal/model"
)

// PushDownFilters relocates outer WHERE conjuncts that provably concern a
// single CTE into that CTE's body, so the filter runs before any join. The
// pass only fires when every safety condition holds; anything ambiguous
// leaves the conjunct where it is.
type PushDownFilters struct{}

func (*PushDownFilters) Name() string { return "push_down_filters" }

func (*PushDownFilters) Describe() string {
	return "move single-table WHERE predicates into the CTE they filter"
}

// windowFuncs make a predicate or CTE body ineligible: filtering below a
// window or aggregate computation changes its input set.
var windowFuncs = map[string]bool{
	"OVER":        true,
	"ROW_NUMBER":  true,
	"RANK":        true,
	"DENSE_RANK":  true,
	"NTILE":       true,
	"LAG":         true,
	"LEAD":        true,
	"FIRST_VALUE": true,
	"LAST_VALUE":  true,
}

// scalarPredicateWords are the bare words a pushed predicate may contain
// besides qualified column references and numbers. An identifier outside
// this set could be a column of another table, so the conjunct is skipped.
var scalarPredicateWords = map[string]bool{
	"NOT": true, "IN": true, "IS": true, "NULL": true,
	"LIKE": true, "ILIKE": true, "BETWEEN": true, "AND": true,
	"TRUE": true, "FALSE": true,
	"CAST": true, "AS": true,
	"DATE": true, "TIME": true, "TIMESTAMP": true, "INTERVAL": true,
	"CURRENT_DATE": true, "CURRENT_TIME": true, "CURRENT_TIMESTAMP": true,
	"DATEADD": true, "DATEDIFF": true, "DATE_TRUNC": true,
	"TO_DATE": true, "TO_TIMESTAMP": true, "TO_CHAR": true, "TO_NUMBER": true,
	"YEAR": true, "QUARTER": true, "MONTH": true, "WEEK": true, "DAY": true,
	"HOUR": true, "MINUTE": true, "SECOND": true,
	"UPPER": true, "LOWER": true, "TRIM": true, "LENGTH": true,
	"ABS": true, "ROUND": true, "FLOOR": true, "CEIL": true,
	"COALESCE": true, "NULLIF": true, "IFF": true,
}

func (*PushDownFilters) Apply(tokens []model.Token) (string, bool) {
	text, mask := flatten(tokens)
	defs, bodyStart, ok := parseWith(mask)
	if !ok || len(defs) == 0 {
		return "", false
	}

	body := lexRange(mask, bodyStart, len(mask))
	if hasTopLevelSetOp(body) {
		return "", false
	}

	sources := fromSources(body)
	if sources == nil {
		return "", false
	}

	whereStart, condStart, whereEnd := whereClause(body, len(mask))
	if whereStart < 0 {
		return "", false
	}

	conjuncts := splitConjuncts(mask, condStart, whereEnd)
	if conjuncts == nil {
		return "", false
	}

	type push struct {
		cte  int
		pred string
	}
	var pushes []push
	var keptConds []string
	for _, r := range conjuncts {
		if idx, pred, ok := pushableConjunct(text, mask, r[0], r[1], sources, defs); ok {
			pushes = append(pushes, push{cte: idx, pred: pred})
		} else {
			keptConds = append(keptConds, strings.TrimSpace(text[r[0]:r[1]]))
		}
	}
	if len(pushes) == 0 {
		return "", false
	}

	var edits []edit
	if len(keptConds) == 0 {
		edits = append(edits, edit{start: whereStart, end: whereEnd, repl: ""})
	} else {
		edits = append(edits, edit{
			start: whereStart,
			end:   whereEnd,
			repl:  "WHERE " + strings.Join(keptConds, " AND ") + " ",
		})
	}

	byCTE := make(map[int][]string)
	var order []int
	for _, p := range pushes {
		if _, seen := byCTE[p.cte]; !seen {
			order = append(order, p.cte)
		}
		byCTE[p.cte] = append(byCTE[p.cte], p.pred)
	}
	for _, idx := range order {
		d := defs[idx]
		kw := " WHERE "
		if cteHasWhere(mask, d) {
			kw = " AND "
		}
		edits = append(edits, edit{
			start: d.bodyEnd,
			end:   d.bodyEnd,
			repl:  kw + strings.Join(byCTE[idx], " AND "),
		})
	}
	return strings.TrimSpace(applyEdits(text, edits)), true
}

func hasTopLevelSetOp(ts []tok) bool {
	depth := 0
	for _, t := range ts {
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
		default:
			if depth == 0 && (t.is("UNION") || t.is("INTERSECT") || t.is("EXCEPT") || t.is("MINUS")) {
				return true
			}
		}
	}
	return false
}

// fromSources maps alias (or bare name) to source name for the main body's
// FROM clause. It returns nil when the clause contains anything that makes
// relocation unsafe to reason about: outer or lateral joins, missing FROM.
// Derived tables are skipped rather than mapped; predicates on their aliases
// simply stay put.
func fromSources(body []tok) map[string]string {
	depth := 0
	fromIdx := -1
	endIdx := len(body)
	for i, t := range body {
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
		if fromIdx < 0 {
			if t.is("FROM") {
				fromIdx = i
			}
			continue
		}
		if t.is("LEFT") || t.is("RIGHT") || t.is("FULL") || t.is("OUTER") ||
			t.is("CROSS") || t.is("LATERAL") || t.is("NATURAL") {
			return nil
		}
		if endIdx == len(body) &&
			(t.is("WHERE") || t.is("GROUP") || t.is("HAVING") || t.is("WINDOW") ||
				t.is("QUALIFY") || t.is("ORDER") || t.is("LIMIT") || t.is("FETCH") || t.is("OFFSET")) {
			endIdx = i
		}
	}
	if fromIdx < 0 {
		return nil
	}

	sources := make(map[string]string)
	seg := []tok{}
	flushSeg := func() {
		if name, alias, ok := parseFromItem(seg); ok {
			if alias != "" {
				sources[strings.ToUpper(alias)] = strings.ToUpper(name)
			} else {
				sources[strings.ToUpper(name)] = strings.ToUpper(name)
			}
		}
		seg = seg[:0]
	}
	depth = 0
	for i := fromIdx + 1; i < endIdx; i++ {
		t := body[i]
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
		}
		if depth == 0 && (t.text == "," || t.is("JOIN")) {
			flushSeg()
			continue
		}
		if depth == 0 && t.is("INNER") {
			continue
		}
		seg = append(seg, t)
	}
	flushSeg()
	return sources
}

// parseFromItem reads "name [AS] [alias]" from the head of one FROM segment.
// Qualified names keep only their final part; derived tables report !ok.
func parseFromItem(seg []tok) (name, alias string, ok bool) {
	p := 0
	if p >= len(seg) || !seg[p].isWord() {
		return "", "", false
	}
	name = seg[p].text
	p++
	for p+1 < len(seg) && seg[p].text == "." && seg[p+1].isWord() {
		name = seg[p+1].text
		p += 2
	}
	if p < len(seg) && seg[p].is("AS") {
		p++
	}
	if p < len(seg) && seg[p].isWord() && !seg[p].is("ON") && !seg[p].is("USING") {
		alias = seg[p].text
	}
	return name, alias, true
}

// whereClause locates the main body's depth-zero WHERE. Returns the clause
// start, the predicate start, and the clause end (start of the next clause
// keyword or end of statement); whereStart is -1 when absent.
func whereClause(body []tok, maskLen int) (whereStart, condStart, whereEnd int) {
	depth := 0
	whereStart, condStart, whereEnd = -1, -1, maskLen
	for _, t := range body {
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
		if whereStart < 0 {
			if t.is("WHERE") {
				whereStart = t.start
				condStart = t.end
			}
			continue
		}
		if t.is("GROUP") || t.is("HAVING") || t.is("WINDOW") || t.is("QUALIFY") ||
			t.is("ORDER") || t.is("LIMIT") || t.is("FETCH") || t.is("OFFSET") {
			whereEnd = t.start
			return whereStart, condStart, whereEnd
		}
	}
	return whereStart, condStart, whereEnd
}

// splitConjuncts splits a predicate region on depth-zero ANDs. A depth-zero
// OR or CASE defeats conjunct-wise reasoning, so nil is returned.
func splitConjuncts(mask string, from, to int) [][2]int {
	ts := lexRange(mask, from, to)
	depth := 0
	betweenOpen := false
	start := from
	var out [][2]int
	for _, t := range ts {
		switch t.text {
		case "(":
			depth++
			continue
		case ")":
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		if t.is("OR") || t.is("CASE") {
			return nil
		}
		if t.is("BETWEEN") {
			betweenOpen = true
			continue
		}
		if t.is("AND") {
			if betweenOpen {
				// the AND belongs to BETWEEN, not to the conjunction
				betweenOpen = false
				continue
			}
			out = append(out, [2]int{start, t.start})
			start = t.end
		}
	}
	return append(out, [2]int{start, to})
}

// pushableConjunct decides whether one conjunct can move into a CTE and, if
// so, returns the target CTE index and the predicate text with its
// qualifiers stripped.
func pushableConjunct(text, mask string, from, to int, sources map[string]string, defs []cteDef) (int, string, bool) {
	ts := lexRange(mask, from, to)
	qualifier := ""
	var strips []edit
	var columns []string

	for i := 0; i < len(ts); i++ {
		t := ts[i]
		if !t.isWord() {
			if t.text == "." {
				return 0, "", false
			}
			continue
		}
		if isDigitByte(t.text[0]) {
			// consume a decimal like 1.5
			if i+2 < len(ts) && ts[i+1].text == "." && ts[i+2].isWord() && isDigitByte(ts[i+2].text[0]) {
				i += 2
			}
			continue
		}
		if i+2 < len(ts) && ts[i+1].text == "." && ts[i+2].isWord() {
			q := strings.ToUpper(t.text)
			if qualifier == "" {
				qualifier = q
			} else if qualifier != q {
				return 0, "", false
			}
			strips = append(strips, edit{start: t.start, end: ts[i+2].start, repl: ""})
			columns = append(columns, ts[i+2].text)
			i += 2
			continue
		}
		w := strings.ToUpper(t.text)
		if aggregateFuncs[w] || windowFuncs[w] {
			return 0, "", false
		}
		if scalarPredicateWords[w] {
			continue
		}
		return 0, "", false
	}
	if qualifier == "" {
		return 0, "", false
	}

	src, ok := sources[qualifier]
	if !ok {
		return 0, "", false
	}
	idx := -1
	for j, d := range defs {
		if strings.ToUpper(d.name) == src {
			idx = j
			break
		}
	}
	if idx < 0 || !cteEligible(mask, defs, idx) {
		return 0, "", false
	}
	for _, col := range columns {
		if !cteExports(mask, defs[idx], col) {
			return 0, "", false
		}
	}

	sub := text[from:to]
	rel := make([]edit, len(strips))
	for i, e := range strips {
		rel[i] = edit{start: e.start - from, end: e.end - from, repl: ""}
	}
	return idx, strings.TrimSpace(applyEdits(sub, rel)), true
}

// cteEligible reports whether a CTE is a plain single-table projection or
// filter: no joins, grouping, distinct, windows, set operations, or row
// limits, and referenced exactly once in the whole statement. Only then is
// an extra predicate in its body equivalent to the outer filter.
func cteEligible(mask string, defs []cteDef, idx int) bool {
	d := defs[idx]
	ts := lexRange(mask, d.bodyStart, d.bodyEnd)
	if len(ts) == 0 || !ts[0].is("SELECT") {
		return false
	}

	depth := 0
	fromSeen := false
	for _, t := range ts {
		switch t.text {
		case "(":
			depth++
			continue
		case ")":
			depth--
			continue
		}
		if !t.isWord() {
			if depth == 0 && fromSeen && t.text == "," {
				return false
			}
			continue
		}
		w := strings.ToUpper(t.text)
		if windowFuncs[w] || aggregateFuncs[w] {
			return false
		}
		if depth != 0 {
			continue
		}
		switch {
		case t.is("FROM"):
			fromSeen = true
		case t.is("JOIN") || t.is("DISTINCT") || t.is("GROUP") || t.is("HAVING") ||
			t.is("QUALIFY") || t.is("WINDOW") || isLimitWord(t) ||
			t.is("UNION") || t.is("INTERSECT") || t.is("EXCEPT") || t.is("MINUS"):
			return false
		}
	}
	if !fromSeen {
		return false
	}

	// the CTE must feed exactly one table reference; qualifier uses
	// (name.col) and columns that merely share the name do not count
	all := lexRange(mask, 0, len(mask))
	refs := 0
	for i, t := range all {
		if t.start >= d.defStart && t.start < d.defEnd {
			continue
		}
		if !t.isWord() || !t.is(d.name) {
			continue
		}
		if i > 0 && all[i-1].text == "." {
			continue
		}
		if i+1 < len(all) && all[i+1].text == "." {
			continue
		}
		refs++
	}
	return refs == 1
}

// cteHasWhere reports whether the CTE body already has a depth-zero WHERE.
func cteHasWhere(mask string, d cteDef) bool {
	depth := 0
	for _, t := range lexRange(mask, d.bodyStart, d.bodyEnd) {
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
		default:
			if depth == 0 && t.is("WHERE") {
				return true
			}
		}
	}
	return false
}

// cteExports reports whether the CTE's output includes a column named col:
// either the select list is *, or some item's output name matches.
func cteExports(mask string, d cteDef, col string) bool {
	ts := lexRange(mask, d.bodyStart, d.bodyEnd)
	depth := 0
	fromStart := d.bodyEnd
	for _, t := range ts {
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
		default:
			if depth == 0 && t.is("FROM") {
				fromStart = t.start
			}
		}
		if fromStart != d.bodyEnd {
			break
		}
	}
	if len(ts) == 0 {
		return false
	}

	for _, r := range splitTopLevel(mask, ts[0].end, fromStart) {
		its := lexRange(mask, r[0], r[1])
		if len(its) == 0 {
			continue
		}
		if len(its) == 1 && its[0].text == "*" {
			return true
		}
		outName := ""
		if len(its) >= 3 && its[len(its)-2].is("AS") && its[len(its)-1].isWord() {
			outName = its[len(its)-1].text
		} else if len(its) == 1 && its[0].isWord() {
			outName = its[0].text
		} else if len(its) == 3 && its[0].isWord() && its[1].text == "." && its[2].isWord() {
			outName = its[2].text
		}
		if outName != "" && strings.EqualFold(outName, col) {
			return true
		}
	}
	return false
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }
