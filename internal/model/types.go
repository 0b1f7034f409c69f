package model

import "strings"

// TokenKind classifies one scanned region of SQL text.
type TokenKind int

const (
	TokenCode TokenKind = iota
	TokenLineComment
	TokenBlockComment
	TokenStringLiteral
	TokenQuotedIdentifier
)

func (k TokenKind) String() string {
	switch k {
	case TokenCode:
		return "CODE"
	case TokenLineComment:
		return "LINE_COMMENT"
	case TokenBlockComment:
		return "BLOCK_COMMENT"
	case TokenStringLiteral:
		return "STRING_LITERAL"
	case TokenQuotedIdentifier:
		return "QUOTED_IDENTIFIER"
	default:
		return "UNKNOWN"
	}
}

// Token is one contiguous region of the input. Tokens partition the input:
// concatenating Text of all tokens in emitted order reproduces it exactly.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int // exclusive
}

// Statement is a contiguous run of tokens bounded by top-level semicolons.
type Statement struct {
	Tokens []Token
}

// Text reassembles the statement source from its tokens.
func (s Statement) Text() string {
	var b strings.Builder
	for _, tok := range s.Tokens {
		b.WriteString(tok.Text)
	}
	return b.String()
}

// IsEmpty reports whether the statement has no code content at all,
// i.e. it consists only of whitespace, comments, or nothing.
func (s Statement) IsEmpty() bool {
	for _, tok := range s.Tokens {
		if tok.Kind != TokenCode {
			continue
		}
		if strings.TrimSpace(tok.Text) != "" {
			return false
		}
	}
	return true
}

// Verdict is the outcome of a safety classification.
type Verdict string

const (
	VerdictOK       Verdict = "OK"
	VerdictRejected Verdict = "REJECTED"
)

// ReasonCode explains a rejection. The set is closed; ambiguity always
// resolves to rejection, never to acceptance.
type ReasonCode string

const (
	ReasonNone                ReasonCode = ""
	ReasonEmptyQuery          ReasonCode = "EMPTY_QUERY"
	ReasonNotSelectOrWith     ReasonCode = "NOT_SELECT_OR_WITH"
	ReasonDangerousKeyword    ReasonCode = "DANGEROUS_KEYWORD"
	ReasonMultiStatement      ReasonCode = "MULTI_STATEMENT"
	ReasonUnterminatedLiteral ReasonCode = "UNTERMINATED_LITERAL"
)

// ValidationResult is the verdict for one candidate SQL string.
// SanitizedSQL is produced for every verdict so callers can display what
// was actually classified.
type ValidationResult struct {
	Verdict          Verdict
	Reason           ReasonCode
	OffendingKeyword string
	SanitizedSQL     string
}

// OK reports whether the query may be executed.
func (r ValidationResult) OK() bool {
	return r.Verdict == VerdictOK
}

// StructuralMetrics counts query structure over code-region tokens only.
// Used for reporting, never for gating correctness.
type StructuralMetrics struct {
	LineCount     int
	JoinCount     int
	CTECount      int
	SubqueryCount int
	DistinctCount int
}

// OptimizationStatus is the overall outcome of a pipeline run.
type OptimizationStatus string

const (
	StatusImproved           OptimizationStatus = "IMPROVED"
	StatusUnchanged          OptimizationStatus = "UNCHANGED"
	StatusDegradedToOriginal OptimizationStatus = "DEGRADED_TO_ORIGINAL"
)

// OptimizationResult reports a pipeline run. DEGRADED_TO_ORIGINAL implies
// Optimized == Original.
type OptimizationResult struct {
	Original      string
	Optimized     string
	AppliedPasses []string
	MetricsBefore StructuralMetrics
	MetricsAfter  StructuralMetrics
	Status        OptimizationStatus
}

// TableSuggestion is one ranked near-miss for a failing table identifier.
type TableSuggestion struct {
	Name  string
	Score float64
}
