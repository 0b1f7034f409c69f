package scanner

import (
	"strings"
	"testing"

	"sqlguard/internal/model"
)

func TestScan_Partition(t *testing.T) {
	// Concatenating the token texts must reproduce the input byte for byte.
	inputs := []string{
		"",
		"SELECT 1",
		"SELECT 'a;b' FROM t -- trailing\n",
		"SELECT /* block */ x FROM \"Weird;Name\" WHERE y = 'it''s'",
		"-- only a comment",
		"/* unterminated block",
		"'unterminated literal",
		"\"unterminated ident",
		"SELECT '' || \"\" FROM t;",
	}

	for _, in := range inputs {
		res := Scan(in)
		var sb strings.Builder
		for _, tok := range res.Tokens {
			if tok.Text != in[tok.Start:tok.End] {
				t.Errorf("input %q: token %v text %q does not match span [%d,%d)",
					in, tok.Kind, tok.Text, tok.Start, tok.End)
			}
			sb.WriteString(tok.Text)
		}
		if got := sb.String(); got != in {
			t.Errorf("Scan(%q): concatenated tokens = %q, want input", in, got)
		}
	}
}

func TestScan_Kinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []model.TokenKind
	}{
		{
			name:  "plain code",
			input: "SELECT 1",
			want:  []model.TokenKind{model.TokenCode},
		},
		{
			name:  "line comment ends at newline",
			input: "SELECT 1 -- note\nFROM t",
			want: []model.TokenKind{
				model.TokenCode, model.TokenLineComment, model.TokenCode,
			},
		},
		{
			name:  "block comment mid statement",
			input: "SELECT /* c */ 1",
			want: []model.TokenKind{
				model.TokenCode, model.TokenBlockComment, model.TokenCode,
			},
		},
		{
			name:  "string literal",
			input: "SELECT 'abc'",
			want:  []model.TokenKind{model.TokenCode, model.TokenStringLiteral},
		},
		{
			name:  "quoted identifier",
			input: "SELECT \"Col\" FROM t",
			want: []model.TokenKind{
				model.TokenCode, model.TokenQuotedIdentifier, model.TokenCode,
			},
		},
		{
			name:  "comment markers inside literal stay literal",
			input: "SELECT '--not a comment /*'",
			want:  []model.TokenKind{model.TokenCode, model.TokenStringLiteral},
		},
		{
			name:  "quote inside comment stays comment",
			input: "SELECT 1 -- don't",
			want:  []model.TokenKind{model.TokenCode, model.TokenLineComment},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Scan(tt.input)
			if res.Unterminated {
				t.Fatalf("Scan(%q) unexpectedly unterminated", tt.input)
			}
			var got []model.TokenKind
			for _, tok := range res.Tokens {
				got = append(got, tok.Kind)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Scan(%q) kinds = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Scan(%q) kind[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScan_DoubledQuoteEscape(t *testing.T) {
	res := Scan("SELECT 'it''s fine'")
	if res.Unterminated {
		t.Fatal("doubled quote treated as unterminated")
	}
	last := res.Tokens[len(res.Tokens)-1]
	if last.Kind != model.TokenStringLiteral || last.Text != "'it''s fine'" {
		t.Errorf("got %v %q, want string literal 'it''s fine'", last.Kind, last.Text)
	}

	res = Scan(`SELECT "a""b" FROM t`)
	if res.Unterminated {
		t.Fatal("doubled identifier quote treated as unterminated")
	}
	if res.Tokens[1].Kind != model.TokenQuotedIdentifier || res.Tokens[1].Text != `"a""b"` {
		t.Errorf("got %v %q, want quoted identifier \"a\"\"b\"", res.Tokens[1].Kind, res.Tokens[1].Text)
	}
}

func TestScan_Unterminated(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  model.TokenKind
	}{
		{"string", "SELECT 'abc", model.TokenStringLiteral},
		{"string ending in escape", "SELECT 'abc''", model.TokenStringLiteral},
		{"identifier", "SELECT \"abc", model.TokenQuotedIdentifier},
		{"block comment", "SELECT 1 /* oops", model.TokenBlockComment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Scan(tt.input)
			if !res.Unterminated {
				t.Fatalf("Scan(%q).Unterminated = false, want true", tt.input)
			}
			last := res.Tokens[len(res.Tokens)-1]
			if last.Kind != tt.kind {
				t.Errorf("last token kind = %v, want %v", last.Kind, tt.kind)
			}
			if last.End != len(tt.input) {
				t.Errorf("last token ends at %d, want end of input %d", last.End, len(tt.input))
			}
		})
	}

	// line comments terminate at EOF without a newline
	if res := Scan("SELECT 1 -- fine"); res.Unterminated {
		t.Error("line comment at EOF reported unterminated")
	}
}
