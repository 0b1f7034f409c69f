package model

// Pass is a single heuristic rewrite over a statement's token stream.
// Apply returns the rewritten statement text and whether the pass fired.
// A pass must be pure and idempotent, and must report applied=false rather
// than guess when its precondition is not met with confidence.
type Pass interface {
	// Name returns the unique identifier of the pass.
	Name() string
	// Describe returns a one-line human description of the rewrite.
	Describe() string
	// Apply inspects the token stream and either returns the rewritten
	// statement text with applied=true, or ("", false) for no change.
	Apply(tokens []Token) (string, bool)
}

// Reporter defines how to render results for display.
type Reporter interface {
	ReportValidation(res ValidationResult) error
	ReportOptimization(res OptimizationResult) error
	ReportSuggestions(failing string, matches []TableSuggestion) error
}
