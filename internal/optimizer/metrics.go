package optimizer

import (
	"strings"

	"sqlguard/internal/model"
)

// Measure computes structural metrics for one statement. Keywords are
// counted over code-region bytes only; comment and literal content is
// invisible here just as it is to the passes.
func Measure(tokens []model.Token) model.StructuralMetrics {
	text, mask := flatten(tokens)

	var m model.StructuralMetrics
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			m.LineCount++
		}
	}

	ts := lexRange(mask, 0, len(mask))
	for i, t := range ts {
		switch {
		case t.is("JOIN"):
			m.JoinCount++
		case t.is("DISTINCT"):
			m.DistinctCount++
		case t.text == "(":
			if i+1 < len(ts) && ts[i+1].is("SELECT") {
				m.SubqueryCount++
			}
		}
	}

	if defs, _, ok := parseWith(mask); ok {
		m.CTECount = len(defs)
	}
	return m
}
