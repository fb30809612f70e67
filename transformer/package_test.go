package transformer

import (
	"strings"
	"testing"
)

const paySpec = `CREATE OR REPLACE PACKAGE pay IS
  g_rate NUMBER := 0.2;
  g_started DATE := SYSDATE;
  c_name CONSTANT VARCHAR2(10) := 'payroll';
  FUNCTION net(p_gross NUMBER) RETURN NUMBER;
  PROCEDURE reset_rate;
END pay;`

const payBody = `CREATE OR REPLACE PACKAGE BODY pay IS
  FUNCTION net(p_gross NUMBER) RETURN NUMBER IS
  BEGIN
    RETURN p_gross * (1 - g_rate);
  END net;
  PROCEDURE reset_rate IS
  BEGIN
    g_rate := 0.2;
  END reset_rate;
END pay;`

func TestTransformPackageBody_Functions(t *testing.T) {
	res := New(hrIndex()).TransformPackageBody("hr", "pay", paySpec, payBody)
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if len(res.Functions) != 2 {
		t.Fatalf("got %d functions, want 2", len(res.Functions))
	}

	net := res.Functions[0]
	if net.QualifiedName != "hr.pay__net" {
		t.Errorf("qualified name = %q", net.QualifiedName)
	}
	if !strings.Contains(net.DDL, "CREATE OR REPLACE FUNCTION hr.pay__net(p_gross NUMERIC) RETURNS NUMERIC") {
		t.Errorf("net DDL:\n%s", net.DDL)
	}
	// Package variable reads become getter calls.
	if !strings.Contains(net.DDL, "hr.pay__get_g_rate()") {
		t.Errorf("variable read not rewritten:\n%s", net.DDL)
	}

	reset := res.Functions[1]
	if reset.QualifiedName != "hr.pay__reset_rate" {
		t.Errorf("qualified name = %q", reset.QualifiedName)
	}
	// Package variable writes become setter calls.
	if !strings.Contains(reset.DDL, "PERFORM hr.pay__set_g_rate(0.2);") {
		t.Errorf("variable write not rewritten:\n%s", reset.DDL)
	}
}

func TestTransformPackageBody_Helpers(t *testing.T) {
	res := New(hrIndex()).TransformPackageBody("hr", "pay", paySpec, payBody)
	if len(res.Helpers) == 0 {
		t.Fatal("expected helper DDLs")
	}

	joined := strings.Join(res.Helpers, "\n")
	for _, part := range []string{
		"CREATE OR REPLACE FUNCTION hr.pay__initialize() RETURNS VOID",
		"IF current_setting('hr.pay.__initialized', true) = 'true' THEN",
		"PERFORM set_config('hr.pay.g_rate', '0.2', false);",
		"PERFORM set_config('hr.pay.g_started', CURRENT_TIMESTAMP::TEXT, false);",
		"PERFORM set_config('hr.pay.c_name', 'payroll', false);",
		"PERFORM set_config('hr.pay.__initialized', 'true', false);",
		"CREATE OR REPLACE FUNCTION hr.pay__get_g_rate() RETURNS NUMERIC",
		"CREATE OR REPLACE FUNCTION hr.pay__set_g_rate(p_value NUMERIC) RETURNS VOID",
		"CREATE OR REPLACE FUNCTION hr.pay__get_c_name() RETURNS VARCHAR(10)",
	} {
		if !strings.Contains(joined, part) {
			t.Errorf("helpers missing %q:\n%s", part, joined)
		}
	}

	// Constants get a getter but no setter.
	if strings.Contains(joined, "pay__set_c_name") {
		t.Error("constant must not get a setter")
	}
}

func TestTransformPackageBody_PartialSuccess(t *testing.T) {
	body := `CREATE OR REPLACE PACKAGE BODY pay IS
  PROCEDURE bad(p_out OUT NUMBER) IS
  BEGIN
    p_out := 1;
  END bad;
  FUNCTION net(p_gross NUMBER) RETURN NUMBER IS
  BEGIN
    RETURN p_gross;
  END net;
END pay;`
	res := New(hrIndex()).TransformPackageBody("hr", "pay", paySpec, body)
	if len(res.Functions) != 1 {
		t.Fatalf("expected the good function to survive, got %d", len(res.Functions))
	}
	if res.Functions[0].QualifiedName != "hr.pay__net" {
		t.Errorf("survivor = %q", res.Functions[0].QualifiedName)
	}
	if len(res.Errors) != 1 || !ErrUnsupportedConstruct.Is(res.Errors[0].Err) {
		t.Fatalf("expected one UnsupportedConstruct, got %v", res.Errors)
	}
	if res.Errors[0].Object != "hr.pay__bad" {
		t.Errorf("error object = %q", res.Errors[0].Object)
	}
}

func TestLowerDefaultValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.2", "'0.2'"},
		{"42", "'42'"},
		{"'payroll'", "'payroll'"},
		{"SYSDATE", "CURRENT_TIMESTAMP::TEXT"},
		{"sysdate", "CURRENT_TIMESTAMP::TEXT"},
		{"", "''"},
		{"g_other + 1", "(g_other + 1)::TEXT"},
	}
	for _, tc := range tests {
		if got := lowerDefaultValue(tc.in); got != tc.want {
			t.Errorf("lowerDefaultValue(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTransformTypeBody(t *testing.T) {
	body := `CREATE OR REPLACE TYPE BODY address_t IS
  MEMBER FUNCTION formatted(p_sep VARCHAR2) RETURN VARCHAR2 IS
  BEGIN
    RETURN self.street || p_sep || self.city;
  END formatted;
  STATIC FUNCTION parse(p_text VARCHAR2) RETURN address_t IS
  BEGIN
    RETURN NULL;
  END parse;
END;`
	res := New(hrIndex()).TransformTypeBody("hr", "address_t", body)
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if len(res.Methods) != 2 {
		t.Fatalf("got %d methods, want 2", len(res.Methods))
	}

	member := res.Methods[0]
	if member.QualifiedName != "hr.address_t__formatted" {
		t.Errorf("qualified name = %q", member.QualifiedName)
	}
	if !strings.Contains(member.DDL, "hr.address_t__formatted(self hr.address_t, p_sep TEXT)") {
		t.Errorf("member method missing synthetic self parameter:\n%s", member.DDL)
	}

	static := res.Methods[1]
	if static.QualifiedName != "hr.address_t__parse" {
		t.Errorf("qualified name = %q", static.QualifiedName)
	}
	if strings.Contains(static.DDL, "self ") {
		t.Errorf("static method must not take self:\n%s", static.DDL)
	}
}

func TestTransformTypeBody_PartialSuccess(t *testing.T) {
	body := `CREATE OR REPLACE TYPE BODY address_t IS
  MEMBER FUNCTION broken RETURN IS BEGIN END;
  MEMBER FUNCTION ok RETURN NUMBER IS
  BEGIN
    RETURN 1;
  END ok;
END;`
	res := New(hrIndex()).TransformTypeBody("hr", "address_t", body)
	if len(res.Methods) != 1 {
		t.Fatalf("expected the good method to survive, got %d methods, errors %v", len(res.Methods), res.Errors)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected an error for the broken method")
	}
}
