// Package suggest ranks known table names against an identifier that failed
// to resolve during execution, so the caller can offer "did you mean"
// recovery hints. It has no error states: absence of good matches is an
// empty result.
package suggest

import (
	"sort"
	"strings"

	"sqlguard/internal/model"
)

const (
	defaultLimit    = 5
	defaultMinScore = 0.3
)

// Config mirrors the execution layer's limits.
type Config struct {
	// Limit caps how many suggestions are returned.
	Limit int
	// MinScore is the similarity floor below which candidates are dropped.
	MinScore float64
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{Limit: defaultLimit, MinScore: defaultMinScore}
}

// Engine scores candidate table names. Stateless; safe for concurrent use.
type Engine struct {
	cfg Config
}

// New builds an Engine, filling unset config fields with defaults.
func New(cfg Config) *Engine {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = defaultMinScore
	}
	return &Engine{cfg: cfg}
}

// Rank returns the best-matching known tables for the failing identifier,
// descending by score, ties broken by shorter name then lexical order.
func (e *Engine) Rank(failing string, known []string) []model.TableSuggestion {
	failing = strings.TrimSpace(failing)
	if failing == "" || len(known) == 0 {
		return nil
	}
	target := strings.ToLower(failing)

	seen := make(map[string]struct{}, len(known))
	var out []model.TableSuggestion
	for _, name := range known {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}

		score := ratio(target, lower)
		if score < e.cfg.MinScore {
			continue
		}
		out = append(out, model.TableSuggestion{Name: name, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Name) != len(b.Name) {
			return len(a.Name) < len(b.Name)
		}
		return a.Name < b.Name
	})
	if len(out) > e.cfg.Limit {
		out = out[:e.cfg.Limit]
	}
	return out
}

// ratio is the similarity 2*L/(len(a)+len(b)) with L the length of the
// longest common subsequence, matching the shape of difflib-style scores:
// 1.0 for identical strings, 0.0 for nothing in common.
func ratio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

// MissingObject extracts the failing identifier from a warehouse error
// message of the form "... Object 'NAME' does not exist ...". Returns ""
// when the message does not carry one.
func MissingObject(errMsg string) string {
	const marker = "Object '"
	i := strings.Index(errMsg, marker)
	if i < 0 {
		return ""
	}
	rest := errMsg[i+len(marker):]
	j := strings.IndexByte(rest, '\'')
	if j <= 0 {
		return ""
	}
	return rest[:j]
}
