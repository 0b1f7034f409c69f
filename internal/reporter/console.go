// Package reporter renders validation, optimization, and suggestion results
// for terminal consumption.
package reporter

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"sqlguard/internal/model"
)

type ConsoleReporter struct {
	out io.Writer
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo writes to w instead of stdout.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

func (r *ConsoleReporter) ReportValidation(res model.ValidationResult) error {
	if res.OK() {
		fmt.Fprintln(r.out, color.GreenString("✔ SAFE"))
		fmt.Fprintf(r.out, "\tSanitized: %s\n", color.CyanString(truncate(res.SanitizedSQL, 120)))
		return nil
	}

	fmt.Fprintf(r.out, "%s [%s]\n", color.New(color.FgRed, color.Bold).Sprint("✘ REJECTED"), res.Reason)
	switch res.Reason {
	case model.ReasonDangerousKeyword:
		fmt.Fprintf(r.out, "\tKeyword: %s\n", color.YellowString(res.OffendingKeyword))
	case model.ReasonNotSelectOrWith:
		fmt.Fprintln(r.out, "\tOnly SELECT and WITH statements are accepted.")
	case model.ReasonMultiStatement:
		fmt.Fprintln(r.out, "\tExactly one statement per query is accepted.")
	case model.ReasonUnterminatedLiteral:
		fmt.Fprintln(r.out, "\tA string literal, quoted identifier, or block comment never closes.")
	}
	if res.SanitizedSQL != "" {
		fmt.Fprintf(r.out, "\tSanitized: %s\n", color.CyanString(truncate(res.SanitizedSQL, 120)))
	}
	return nil
}

func (r *ConsoleReporter) ReportOptimization(res model.OptimizationResult) error {
	switch res.Status {
	case model.StatusImproved:
		fmt.Fprintln(r.out, color.GreenString("✔ OPTIMIZED"))
	case model.StatusUnchanged:
		fmt.Fprintln(r.out, color.WhiteString("– UNCHANGED"))
		return nil
	case model.StatusDegradedToOriginal:
		fmt.Fprintf(r.out, "%s rewrite failed validation, keeping the original\n",
			color.New(color.FgYellow, color.Bold).Sprint("! DEGRADED"))
		return nil
	}

	for _, p := range res.AppliedPasses {
		fmt.Fprintf(r.out, "\tapplied: %s\n", color.BlueString(p))
	}
	r.metricsDelta(res.MetricsBefore, res.MetricsAfter)
	fmt.Fprintf(r.out, "\n%s\n", res.Optimized)
	return nil
}

func (r *ConsoleReporter) metricsDelta(before, after model.StructuralMetrics) {
	row := func(label string, b, a int) {
		if b == a {
			return
		}
		fmt.Fprintf(r.out, "\t%-12s %d → %d\n", label, b, a)
	}
	row("lines", before.LineCount, after.LineCount)
	row("joins", before.JoinCount, after.JoinCount)
	row("ctes", before.CTECount, after.CTECount)
	row("subqueries", before.SubqueryCount, after.SubqueryCount)
	row("distinct", before.DistinctCount, after.DistinctCount)
}

func (r *ConsoleReporter) ReportSuggestions(failing string, suggestions []model.TableSuggestion) error {
	if len(suggestions) == 0 {
		fmt.Fprintf(r.out, "%s no tables resemble %q\n", color.YellowString("?"), failing)
		return nil
	}

	fmt.Fprintf(r.out, "Did you mean (instead of %s):\n", color.New(color.Bold).Sprint(failing))
	for _, s := range suggestions {
		fmt.Fprintf(r.out, "\t%s (%.2f)\n", color.CyanString(s.Name), s.Score)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
