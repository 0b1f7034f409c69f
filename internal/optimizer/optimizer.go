// Package optimizer applies a fixed, ordered sequence of heuristic rewrite
// passes to an already-validated query. Every pass is pure and idempotent
// and declines rather than guesses; the pipeline re-validates its own output
// and falls back to the original text when the re-check fails.
package optimizer

import (
	"sqlguard/internal/model"
	"sqlguard/internal/scanner"
)

// Config toggles individual passes. The pass order is fixed; toggles only
// control participation.
type Config struct {
	RemoveUnusedCTE                bool
	PushDownFilters                bool
	RemoveRedundantDistinctOrderBy bool
	SubqueryToQualify              bool
}

// DefaultConfig enables every pass.
func DefaultConfig() Config {
	return Config{
		RemoveUnusedCTE:                true,
		PushDownFilters:                true,
		RemoveRedundantDistinctOrderBy: true,
		SubqueryToQualify:              true,
	}
}

// Checker re-validates rewritten text before it is allowed to replace the
// original. The validator's Classifier implements it.
type Checker interface {
	Validate(sql string) model.ValidationResult
}

// Pipeline runs the configured passes in order. It is stateless after
// construction and safe for concurrent use.
type Pipeline struct {
	passes  []model.Pass
	checker Checker
}

// New builds a Pipeline. The checker gates every rewritten output; a rewrite
// whose result no longer passes validation is discarded wholesale.
func New(cfg Config, checker Checker) *Pipeline {
	p := &Pipeline{checker: checker}
	if cfg.RemoveUnusedCTE {
		p.passes = append(p.passes, &RemoveUnusedCTE{})
	}
	if cfg.PushDownFilters {
		p.passes = append(p.passes, &PushDownFilters{})
	}
	if cfg.RemoveRedundantDistinctOrderBy {
		p.passes = append(p.passes, &RemoveRedundantDistinctOrderBy{})
	}
	if cfg.SubqueryToQualify {
		p.passes = append(p.passes, &SubqueryToQualify{})
	}
	return p
}

// Passes returns the enabled passes in execution order.
func (p *Pipeline) Passes() []model.Pass {
	return p.passes
}

// Optimize rewrites one validated statement. It never returns an error: any
// failure mode degrades to returning the original text.
func (p *Pipeline) Optimize(sql string) model.OptimizationResult {
	res := model.OptimizationResult{
		Original:  sql,
		Optimized: sql,
		Status:    model.StatusUnchanged,
	}

	scan := scanner.Scan(sql)
	res.MetricsBefore = Measure(scan.Tokens)
	res.MetricsAfter = res.MetricsBefore
	if scan.Unterminated {
		// token boundaries are unknown; nothing can be rewritten safely
		return res
	}

	current := sql
	tokens := scan.Tokens
	for _, pass := range p.passes {
		out, applied := pass.Apply(tokens)
		if !applied {
			continue
		}
		next := scanner.Scan(out)
		if next.Unterminated {
			// the pass mangled a literal boundary; drop its edit
			continue
		}
		current = out
		tokens = next.Tokens
		res.AppliedPasses = append(res.AppliedPasses, pass.Name())
	}
	if len(res.AppliedPasses) == 0 {
		return res
	}

	if p.checker != nil {
		if check := p.checker.Validate(current); !check.OK() {
			res.Status = model.StatusDegradedToOriginal
			return res
		}
	}

	res.Optimized = current
	res.MetricsAfter = Measure(tokens)
	res.Status = model.StatusImproved
	return res
}
