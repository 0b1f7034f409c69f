package optimizer

import (
	"strings"

	"sqlguard/internal/model"
	"sqlguard/internal/scanner"
)

// SubqueryToQualify rewrites the top-N-per-group idiom — a derived table
// computing ROW_NUMBER/RANK, filtered to rank 1 by the outer query — into a
// flat statement with a QUALIFY clause, removing one level of nesting.
type SubqueryToQualify struct{}

func (*SubqueryToQualify) Name() string { return "subquery_to_qualify" }

func (*SubqueryToQualify) Describe() string {
	return "flatten a rank-1 filter subquery into a QUALIFY clause"
}

var rankFuncs = map[string]bool{
	"ROW_NUMBER": true,
	"RANK":       true,
}

func (*SubqueryToQualify) Apply(tokens []model.Token) (string, bool) {
	text, mask := flatten(tokens)
	out, ok := rewriteQualify(text, mask)
	if !ok {
		return "", false
	}
	// refuse any output that still matches the pattern: a second application
	// must always be a no-op
	rescan := scanner.Scan(out)
	if rescan.Unterminated {
		return "", false
	}
	t2, m2 := flatten(rescan.Tokens)
	if _, again := rewriteQualify(t2, m2); again {
		return "", false
	}
	return out, true
}

func rewriteQualify(text, mask string) (string, bool) {
	prefixEnd := 0
	if _, bs, ok := parseWith(mask); ok {
		prefixEnd = bs
	}

	ts := lexRange(mask, prefixEnd, len(mask))
	if len(ts) < 4 || !ts[0].is("SELECT") || ts[1].text != "*" ||
		!ts[2].is("FROM") || ts[3].text != "(" {
		return "", false
	}
	open := ts[3].start
	closing := matchParen(mask, open)
	if closing < 0 {
		return "", false
	}

	inner := lexRange(mask, open+1, closing)
	if len(inner) == 0 || !inner[0].is("SELECT") {
		return "", false
	}

	// locate the inner depth-zero FROM; an existing QUALIFY means the inner
	// query is already flat
	depth := 0
	innerFrom := -1
	for i, t := range inner {
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
		if t.is("QUALIFY") {
			return "", false
		}
		if innerFrom < 0 && t.is("FROM") {
			innerFrom = i
		}
	}
	if innerFrom < 1 {
		return "", false
	}

	items := splitTopLevel(mask, inner[0].end, inner[innerFrom].start)
	if len(items) < 2 {
		return "", false
	}
	winIdx := -1
	var winAlias, winExpr string
	for k, r := range items {
		its := lexRange(mask, r[0], r[1])
		hasOver := false
		for _, t := range its {
			if t.is("OVER") {
				hasOver = true
				break
			}
		}
		if !hasOver {
			continue
		}
		if winIdx >= 0 {
			return "", false
		}
		if len(its) < 4 || !rankFuncs[strings.ToUpper(its[0].text)] {
			return "", false
		}
		asTok, last := its[len(its)-2], its[len(its)-1]
		if !asTok.is("AS") || !last.isWord() {
			return "", false
		}
		winIdx = k
		winAlias = last.text
		winExpr = strings.TrimSpace(text[r[0]:asTok.start])
	}
	if winIdx < 0 {
		return "", false
	}

	// after the subquery: optional alias, WHERE [alias.]rank_col = 1,
	// optionally followed by a final ORDER BY
	rest := lexRange(mask, closing+1, len(mask))
	q := 0
	outAlias := ""
	if q < len(rest) && rest[q].is("AS") {
		q++
	}
	if q < len(rest) && rest[q].isWord() && !rest[q].is("WHERE") {
		outAlias = rest[q].text
		q++
	}
	if q >= len(rest) || !rest[q].is("WHERE") {
		return "", false
	}
	q++
	if q+1 < len(rest) && rest[q].isWord() && rest[q+1].text == "." {
		if outAlias == "" || !strings.EqualFold(rest[q].text, outAlias) {
			return "", false
		}
		q += 2
	}
	if q >= len(rest) || !strings.EqualFold(rest[q].text, winAlias) {
		return "", false
	}
	q++
	if q >= len(rest) || rest[q].text != "=" {
		return "", false
	}
	q++
	if q >= len(rest) || rest[q].text != "1" {
		return "", false
	}
	q++
	tail := ""
	if q < len(rest) {
		if !rest[q].is("ORDER") {
			return "", false
		}
		tail = " " + strings.TrimSpace(text[rest[q].start:])
	}

	// excise the window item together with its comma connector
	remStart, remEnd := items[winIdx][0], items[winIdx][1]
	if winIdx > 0 {
		remStart = items[winIdx-1][1]
	} else {
		remEnd = items[winIdx+1][0]
	}
	left := strings.TrimSpace(text[open+1 : remStart])
	right := strings.TrimSpace(text[remEnd:closing])
	joiner := " "
	if strings.HasPrefix(right, ",") {
		joiner = ""
	}
	newInner := left + joiner + right

	return strings.TrimSpace(text[:prefixEnd]) + sep(prefixEnd) + newInner +
		" QUALIFY " + winExpr + " = 1" + tail, true
}

// sep returns the separator between a WITH prefix and the rebuilt body.
func sep(prefixEnd int) string {
	if prefixEnd == 0 {
		return ""
	}
	return " "
}
