package plsql

import (
	"strings"
	"testing"
)

func TestStripComments_LineComment(t *testing.T) {
	src := "SELECT empno -- the id\nFROM emp"
	got := StripComments(src)
	if strings.Contains(got, "the id") {
		t.Errorf("line comment not removed: %q", got)
	}
	if !strings.Contains(got, "FROM emp") {
		t.Errorf("code after comment lost: %q", got)
	}
	if len(got) != len(src) {
		t.Errorf("length changed: %d != %d", len(got), len(src))
	}
}

func TestStripComments_BlockComment(t *testing.T) {
	src := "SELECT /* pick\nthe id */ empno FROM emp"
	got := StripComments(src)
	if strings.Contains(got, "pick") {
		t.Errorf("block comment not removed: %q", got)
	}
	if strings.Count(got, "\n") != strings.Count(src, "\n") {
		t.Errorf("newline count changed")
	}
}

func TestStripComments_InsideStringLiteral(t *testing.T) {
	tests := []struct {
		name string
		src  string
		keep string
	}{
		{"dashes in string", "SELECT '--not a comment' FROM dual", "--not a comment"},
		{"slash star in string", "SELECT '/* kept */' FROM dual", "/* kept */"},
		{"escaped quote then comment", "SELECT 'it''s' -- gone\nFROM dual", "it''s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := StripComments(tc.src)
			if !strings.Contains(got, tc.keep) {
				t.Errorf("string literal damaged: %q", got)
			}
		})
	}
}

func TestStripComments_QuotedIdentifier(t *testing.T) {
	src := `SELECT "weird--name" FROM t`
	got := StripComments(src)
	if !strings.Contains(got, `"weird--name"`) {
		t.Errorf("quoted identifier damaged: %q", got)
	}
}
