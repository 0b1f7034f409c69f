package optimizer

import (
	"strings"

	"sqlguard/internal/model"
)

// RemoveUnusedCTE deletes WITH-clause definitions whose names are never
// referenced outside their own bodies. Reference counts are recomputed after
// every removal until a fixed point, so a CTE used only by another CTE that
// is itself removed gets cleaned up in the same run.
type RemoveUnusedCTE struct{}

func (*RemoveUnusedCTE) Name() string { return "remove_unused_cte" }

func (*RemoveUnusedCTE) Describe() string {
	return "drop WITH-clause definitions that nothing references"
}

func (*RemoveUnusedCTE) Apply(tokens []model.Token) (string, bool) {
	text, mask := flatten(tokens)
	defs, bodyStart, ok := parseWith(mask)
	if !ok || len(defs) == 0 {
		return "", false
	}

	removed := make([]bool, len(defs))
	for {
		changed := false
		for i := range defs {
			if removed[i] {
				continue
			}
			if referenced(mask, defs, removed, i, bodyStart) {
				continue
			}
			removed[i] = true
			changed = true
		}
		if !changed {
			break
		}
	}

	var kept []string
	anyRemoved := false
	for i, d := range defs {
		if removed[i] {
			anyRemoved = true
			continue
		}
		kept = append(kept, strings.TrimSpace(text[d.defStart:d.defEnd]))
	}
	if !anyRemoved {
		return "", false
	}

	body := strings.TrimSpace(text[bodyStart:])
	if len(kept) == 0 {
		return body, true
	}
	return "WITH " + strings.Join(kept, ", ") + " " + body, true
}

// referenced reports whether defs[i].name occurs as a whole word in the main
// body or inside any other CTE that is still kept. Counting other kept
// bodies regardless of position errs toward keeping, never toward deleting.
func referenced(mask string, defs []cteDef, removed []bool, i, bodyStart int) bool {
	name := defs[i].name
	if wordInRange(mask, bodyStart, len(mask), name) {
		return true
	}
	for j, d := range defs {
		if j == i || removed[j] {
			continue
		}
		if wordInRange(mask, d.bodyStart, d.bodyEnd, name) {
			return true
		}
	}
	return false
}
