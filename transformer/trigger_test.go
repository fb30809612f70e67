package transformer

import (
	"strings"
	"testing"
)

// Scenario: a BEFORE ROW trigger becomes a trigger function returning NEW
// plus the CREATE TRIGGER binding.
func TestTransformTrigger_BeforeRow(t *testing.T) {
	rec := TriggerRecord{
		Schema:     "HR",
		Name:       "emp_sal_check",
		Table:      "emp",
		Timing:     "BEFORE",
		Events:     []string{"UPDATE"},
		ForEachRow: true,
		Body:       "BEGIN IF :NEW.salary < 0 THEN :NEW.salary := 0; END IF; END;",
	}
	res := New(hrIndex()).TransformTrigger(rec)
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}

	for _, part := range []string{
		"CREATE OR REPLACE FUNCTION hr.emp_sal_check_func() RETURNS TRIGGER AS $$",
		"IF NEW.salary < 0 THEN",
		"NEW.salary := 0;",
		"RETURN NEW;",
		"$$ LANGUAGE plpgsql;",
	} {
		if !strings.Contains(res.FunctionDDL, part) {
			t.Errorf("function DDL missing %q:\n%s", part, res.FunctionDDL)
		}
	}
	if strings.Contains(res.FunctionDDL, ":NEW") || strings.Contains(res.FunctionDDL, ":new") {
		t.Errorf("colons not removed:\n%s", res.FunctionDDL)
	}

	wantTrigger := "CREATE TRIGGER emp_sal_check BEFORE UPDATE ON hr.emp FOR EACH ROW EXECUTE FUNCTION hr.emp_sal_check_func();"
	if res.TriggerDDL != wantTrigger {
		t.Errorf("trigger DDL:\ngot  %s\nwant %s", res.TriggerDDL, wantTrigger)
	}
}

func TestTransformTrigger_AfterStatementReturnsNull(t *testing.T) {
	rec := TriggerRecord{
		Schema: "hr",
		Name:   "emp_audit",
		Table:  "emp",
		Timing: "AFTER",
		Events: []string{"INSERT", "DELETE"},
		Body:   "BEGIN INSERT INTO audit_log (what) VALUES ('emp changed'); END;",
	}
	res := New(hrIndex()).TransformTrigger(rec)
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.FunctionDDL, "RETURN NULL;") {
		t.Errorf("statement trigger should return NULL:\n%s", res.FunctionDDL)
	}
	if !strings.Contains(res.TriggerDDL, "AFTER INSERT OR DELETE ON hr.emp") {
		t.Errorf("events not joined with OR: %s", res.TriggerDDL)
	}
	if strings.Contains(res.TriggerDDL, "FOR EACH ROW") {
		t.Errorf("statement trigger must not be row-level: %s", res.TriggerDDL)
	}
}

func TestTransformTrigger_WhenClauseColonsRemoved(t *testing.T) {
	rec := TriggerRecord{
		Schema:     "hr",
		Name:       "emp_when",
		Table:      "emp",
		Timing:     "BEFORE",
		Events:     []string{"UPDATE"},
		ForEachRow: true,
		When:       ":new.sal <> :old.sal",
		Body:       "BEGIN :NEW.changed := 1; END;",
	}
	res := New(hrIndex()).TransformTrigger(rec)
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.TriggerDDL, "WHEN (new.sal <> old.sal)") {
		t.Errorf("WHEN clause wrong: %s", res.TriggerDDL)
	}
}

func TestTransformTrigger_BodyWithComments(t *testing.T) {
	rec := TriggerRecord{
		Schema:     "hr",
		Name:       "emp_comments",
		Table:      "emp",
		Timing:     "BEFORE",
		Events:     []string{"INSERT"},
		ForEachRow: true,
		Body:       "BEGIN -- normalise\n  :NEW.ename := UPPER(:NEW.ename); /* done */ END;",
	}
	res := New(hrIndex()).TransformTrigger(rec)
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.FunctionDDL, "NEW.ename := UPPER(NEW.ename);") {
		t.Errorf("body not transformed:\n%s", res.FunctionDDL)
	}
}

func TestTransformTrigger_CasePreservedOnCorrelations(t *testing.T) {
	rec := TriggerRecord{
		Schema:     "hr",
		Name:       "emp_case",
		Table:      "emp",
		Timing:     "BEFORE",
		Events:     []string{"UPDATE"},
		ForEachRow: true,
		Body:       "BEGIN :new.sal := :New.sal + 1; END;",
	}
	res := New(hrIndex()).TransformTrigger(rec)
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.FunctionDDL, "new.sal :=") {
		t.Errorf("lowercase correlation lost:\n%s", res.FunctionDDL)
	}
	if !strings.Contains(res.FunctionDDL, "New.sal + 1") {
		t.Errorf("mixed-case correlation not preserved:\n%s", res.FunctionDDL)
	}
}

func TestTransformTrigger_ParseErrorCarriesObject(t *testing.T) {
	rec := TriggerRecord{
		Schema: "hr",
		Name:   "broken",
		Table:  "emp",
		Timing: "BEFORE",
		Events: []string{"INSERT"},
		Body:   "BEGIN THIS IS NOT PLSQL",
	}
	res := New(hrIndex()).TransformTrigger(rec)
	if len(res.Errors) == 0 {
		t.Fatal("expected errors")
	}
	if res.Errors[0].Object != "hr.broken" {
		t.Errorf("object = %q", res.Errors[0].Object)
	}
}
