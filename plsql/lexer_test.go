package plsql

import "testing"

func TestLexer_BasicSelect(t *testing.T) {
	toks := NewLexer("SELECT empno FROM emp WHERE sal >= 100.5").Tokens()

	want := []TokenType{SELECT, IDENT, FROM, IDENT, WHERE, IDENT, GTE, NUMBER, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got type %d (%q), want %d", i, toks[i].Type, toks[i].Literal, tt)
		}
	}
}

func TestLexer_OuterJoinMarker(t *testing.T) {
	toks := NewLexer("a.id = b.id(+)").Tokens()
	found := false
	for _, tok := range toks {
		if tok.Type == OUTERJOIN {
			found = true
			if tok.Literal != "(+)" {
				t.Errorf("outer join literal = %q", tok.Literal)
			}
		}
	}
	if !found {
		t.Error("(+) not lexed as a single token")
	}
}

func TestLexer_Positions(t *testing.T) {
	src := "SELECT empno"
	toks := NewLexer(src).Tokens()
	if toks[1].Start != 7 || toks[1].Stop != 12 {
		t.Errorf("empno position = [%d,%d), want [7,12)", toks[1].Start, toks[1].Stop)
	}
	if src[toks[1].Start:toks[1].Stop] != "empno" {
		t.Errorf("position does not slice back to the token text")
	}
}

func TestLexer_StringWithEscapedQuote(t *testing.T) {
	toks := NewLexer("'it''s here'").Tokens()
	if toks[0].Type != STRING {
		t.Fatalf("got type %d, want STRING", toks[0].Type)
	}
	if toks[0].Literal != "'it''s here'" {
		t.Errorf("literal = %q", toks[0].Literal)
	}
}

func TestLexer_Operators(t *testing.T) {
	tests := []struct {
		src  string
		want TokenType
	}{
		{"<>", NEQ},
		{"!=", NEQ},
		{"^=", NEQ},
		{"<=", LTE},
		{">=", GTE},
		{"||", CONCAT},
		{":=", ASSIGN},
		{"=>", ARROW},
		{"..", DOTDOT},
	}
	for _, tc := range tests {
		toks := NewLexer(tc.src).Tokens()
		if toks[0].Type != tc.want {
			t.Errorf("%q: got type %d, want %d", tc.src, toks[0].Type, tc.want)
		}
	}
}

func TestLexer_BindVariable(t *testing.T) {
	toks := NewLexer(":NEW.salary := 0").Tokens()
	if toks[0].Type != BIND || toks[0].Literal != ":NEW" {
		t.Errorf("bind token = %d %q", toks[0].Type, toks[0].Literal)
	}
}

func TestLexer_KeywordsCaseInsensitive(t *testing.T) {
	toks := NewLexer("Select sElEcT SELECT").Tokens()
	for i := 0; i < 3; i++ {
		if toks[i].Type != SELECT {
			t.Errorf("token %d not lexed as SELECT", i)
		}
	}
	if toks[0].Literal != "Select" {
		t.Errorf("original case not preserved: %q", toks[0].Literal)
	}
}
