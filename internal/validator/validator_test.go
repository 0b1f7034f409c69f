package validator

import (
	"testing"

	"sqlguard/internal/model"
	"sqlguard/internal/scanner"
)

func TestClassifier_Validate(t *testing.T) {
	tests := []struct {
		name        string
		sql         string
		wantVerdict model.Verdict
		wantReason  model.ReasonCode
		wantKeyword string
	}{
		{
			name:        "plain select",
			sql:         "SELECT id FROM users",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "with cte",
			sql:         "WITH u AS (SELECT id FROM users) SELECT * FROM u",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "lowercase select",
			sql:         "select 1",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "trailing semicolon accepted",
			sql:         "SELECT 1;",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "empty string",
			sql:         "",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonEmptyQuery,
		},
		{
			name:        "whitespace only",
			sql:         "   \n\t",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonEmptyQuery,
		},
		{
			name:        "comment only",
			sql:         "-- nothing here",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonEmptyQuery,
		},
		{
			name:        "insert rejected by whitelist",
			sql:         "INSERT INTO t VALUES (1)",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonNotSelectOrWith,
		},
		{
			name:        "explain rejected",
			sql:         "EXPLAIN SELECT 1",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonNotSelectOrWith,
		},
		{
			name:        "leading punctuation rejected",
			sql:         "(SELECT 1)",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonNotSelectOrWith,
		},
		{
			name:        "piggybacked drop",
			sql:         "SELECT 1; DROP TABLE users;",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonMultiStatement,
		},
		{
			name:        "dangerous keyword mid query",
			sql:         "SELECT * FROM t WHERE id IN (DELETE FROM u RETURNING id)",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonDangerousKeyword,
			wantKeyword: "DELETE",
		},
		{
			name:        "lowercase keyword still caught",
			sql:         "WITH x AS (SELECT 1) SELECT * FROM x; truncate table y",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonMultiStatement,
		},
		{
			name:        "execute caught case-insensitively",
			sql:         "SELECT execute_all FROM t WHERE Execute = 1",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonDangerousKeyword,
			wantKeyword: "EXECUTE",
		},
		{
			name:        "keyword inside string literal is safe",
			sql:         "SELECT * FROM log WHERE msg = 'please DROP me a line'",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "keyword inside comment is safe",
			sql:         "SELECT 1 -- TODO: DELETE this later",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "keyword inside quoted identifier is safe",
			sql:         `SELECT "UPDATE" FROM audit_log`,
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "substring of identifier is not a keyword",
			sql:         "SELECT order_created_at, updates FROM orders",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "unterminated literal",
			sql:         "SELECT 'abc",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonUnterminatedLiteral,
		},
		{
			name:        "unterminated block comment",
			sql:         "SELECT 1 /* hmm",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonUnterminatedLiteral,
		},
		{
			name:        "semicolon in literal is one statement",
			sql:         "SELECT 'a;b' FROM t",
			wantVerdict: model.VerdictOK,
		},
		{
			name:        "merge rejected",
			sql:         "SELECT 1 UNION ALL SELECT merge FROM t",
			wantVerdict: model.VerdictRejected,
			wantReason:  model.ReasonDangerousKeyword,
			wantKeyword: "MERGE",
		},
	}

	c := New(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Validate(tt.sql)
			if got.Verdict != tt.wantVerdict {
				t.Fatalf("Validate(%q) verdict = %v, want %v (reason %s)",
					tt.sql, got.Verdict, tt.wantVerdict, got.Reason)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Validate(%q) reason = %s, want %s", tt.sql, got.Reason, tt.wantReason)
			}
			if got.OffendingKeyword != tt.wantKeyword {
				t.Errorf("Validate(%q) keyword = %q, want %q", tt.sql, got.OffendingKeyword, tt.wantKeyword)
			}
		})
	}
}

func TestClassifier_ExtraKeywords(t *testing.T) {
	c := New(Config{ExtraKeywords: []string{"undrop", " Show "}})

	got := c.Validate("SELECT * FROM t WHERE UNDROP = 1")
	if got.Reason != model.ReasonDangerousKeyword || got.OffendingKeyword != "UNDROP" {
		t.Errorf("extra keyword not enforced: %+v", got)
	}

	got = c.Validate("SELECT show FROM t")
	if got.Reason != model.ReasonDangerousKeyword || got.OffendingKeyword != "SHOW" {
		t.Errorf("extra keyword not trimmed/upcased: %+v", got)
	}

	// the fixed set still applies
	got = c.Validate("SELECT grant FROM t")
	if got.OffendingKeyword != "GRANT" {
		t.Errorf("fixed set lost with extras configured: %+v", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "comments removed",
			input: "SELECT 1 -- note\nFROM t /* inline */ WHERE x = 1",
			want:  "SELECT 1 FROM t WHERE x = 1",
		},
		{
			name:  "whitespace collapsed",
			input: "SELECT\n\t  1\n FROM   t",
			want:  "SELECT 1 FROM t",
		},
		{
			name:  "literal content preserved exactly",
			input: "SELECT 'a  --  b' FROM t",
			want:  "SELECT 'a  --  b' FROM t",
		},
		{
			name:  "quoted identifier preserved",
			input: "SELECT  \"My  Col\"  FROM t",
			want:  "SELECT \"My  Col\" FROM t",
		},
		{
			name:  "leading comment leaves no leading space",
			input: "/* header */ SELECT 1",
			want:  "SELECT 1",
		},
		{
			name:  "no space invented inside expressions",
			input: "SELECT a+b FROM t",
			want:  "SELECT a+b FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(scanner.Scan(tt.input).Tokens)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidate_SanitizedOnReject(t *testing.T) {
	c := New(Config{})
	got := c.Validate("INSERT  INTO t -- oops\nVALUES (1)")
	if got.OK() {
		t.Fatal("INSERT accepted")
	}
	if got.SanitizedSQL != "INSERT INTO t VALUES (1)" {
		t.Errorf("SanitizedSQL = %q, want normalized text even on rejection", got.SanitizedSQL)
	}
}
