package transformer

import (
	"strings"
	"testing"

	"github.com/Sayiza/orapgsync/metadata"
)

func hrIndex() *metadata.Index {
	b := metadata.NewBuilder()
	b.AddTable(metadata.Table{Schema: "hr", Name: "emp", Columns: []metadata.Column{
		{Name: "empno", DataType: "NUMBER", Nullable: false},
		{Name: "ename", DataType: "VARCHAR2(30)", Nullable: true},
		{Name: "sal", DataType: "NUMBER(10,2)", Nullable: true},
		{Name: "hiredate", DataType: "DATE", Nullable: true},
		{Name: "commission", DataType: "NUMBER", Nullable: true},
		{Name: "deptno", DataType: "NUMBER", Nullable: true},
	}})
	b.AddTable(metadata.Table{Schema: "hr", Name: "dept", Columns: []metadata.Column{
		{Name: "deptno", DataType: "NUMBER"},
		{Name: "dname", DataType: "VARCHAR2(20)"},
	}})
	b.AddSynonym(metadata.Synonym{Owner: "public", Name: "all_emps", TargetSchema: "shared", TargetName: "emp_archive"})
	b.AddPackageFunction(metadata.PackageFunction{Schema: "hr", Package: "pay", Name: "net", Kind: metadata.KindFunction, Arity: 1})
	b.AddPackageFunction(metadata.PackageFunction{Schema: "hr", Package: "pay", Name: "reset_rate", Kind: metadata.KindProcedure})
	b.AddTypeMethod(metadata.TypeMethod{Schema: "hr", Type: "address_t", Method: "formatted", Kind: metadata.KindFunction, ReturnType: "VARCHAR2"})
	b.AddTypeMethod(metadata.TypeMethod{Schema: "hr", Type: "address_t", Method: "parse", Kind: metadata.KindFunction, Static: true, ReturnType: "ADDRESS_T"})
	return b.Build()
}

func transformView(t *testing.T, sql string) string {
	t.Helper()
	res := New(hrIndex()).TransformView(sql, "HR")
	for _, err := range res.Errors {
		if !err.Warning {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return res.PostgresSQL
}

// Scenario 1: a query with nothing Oracle-specific survives unchanged.
func TestTransformView_Identity(t *testing.T) {
	got := transformView(t, "SELECT empno, ename FROM emp")
	if got != "SELECT empno, ename FROM emp" {
		t.Errorf("got %q", got)
	}
}

// Scenario 2: NVL becomes COALESCE and DUAL drops the FROM.
func TestTransformView_NvlAndDual(t *testing.T) {
	got := transformView(t, "SELECT NVL(commission, 0) FROM dual")
	if got != "SELECT COALESCE(commission, 0)" {
		t.Errorf("got %q", got)
	}
}

func TestTransformView_SysDual(t *testing.T) {
	got := transformView(t, "SELECT 1 FROM sys.dual")
	if got != "SELECT 1" {
		t.Errorf("got %q", got)
	}
}

// Scenario 3: the (+) marker becomes an ANSI LEFT JOIN and untouched
// conditions stay in WHERE.
func TestTransformView_OuterJoin(t *testing.T) {
	got := transformView(t, "SELECT a.id, b.name FROM a, b WHERE a.id = b.id(+) AND a.active = 1")
	want := "SELECT a.id, b.name FROM a LEFT JOIN b ON (a.id = b.id) WHERE a.active = 1"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestTransformView_RightOuterJoin(t *testing.T) {
	got := transformView(t, "SELECT a.id, b.name FROM a, b WHERE a.id(+) = b.id")
	if !strings.Contains(got, "RIGHT JOIN b ON (a.id = b.id)") {
		t.Errorf("got %q", got)
	}
}

func TestTransformView_OuterJoinMergesSamePair(t *testing.T) {
	got := transformView(t, "SELECT a.id FROM a, b WHERE a.id = b.id(+) AND a.grp = b.grp(+)")
	if !strings.Contains(got, "ON (a.id = b.id AND a.grp = b.grp)") {
		t.Errorf("conditions not merged into one join: %q", got)
	}
}

func TestTransformView_OuterJoinRejectsNonEquality(t *testing.T) {
	res := New(hrIndex()).TransformView("SELECT a.id FROM a, b WHERE a.id < b.id(+)", "hr")
	if len(res.Errors) == 0 || !ErrUnsupportedConstruct.Is(res.Errors[0].Err) {
		t.Fatalf("expected UnsupportedConstruct, got %v", res.Errors)
	}
}

func TestTransformView_OuterJoinRejectsBothSides(t *testing.T) {
	res := New(hrIndex()).TransformView("SELECT a.id FROM a, b WHERE a.id(+) = b.id(+)", "hr")
	if len(res.Errors) == 0 || !ErrUnsupportedConstruct.Is(res.Errors[0].Err) {
		t.Fatalf("expected UnsupportedConstruct, got %v", res.Errors)
	}
}

// Scenario 4: ROWNUM <= N becomes LIMIT N with no condition lost.
func TestTransformView_RownumLimit(t *testing.T) {
	got := transformView(t, "SELECT empno FROM emp WHERE ROWNUM <= 10 ORDER BY empno")
	want := "SELECT empno FROM emp ORDER BY empno LIMIT 10"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestTransformView_RownumShapes(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"less-than", "SELECT empno FROM emp WHERE ROWNUM < 4", "LIMIT 3"},
		{"equals one", "SELECT empno FROM emp WHERE ROWNUM = 1", "LIMIT 1"},
		{"between from one", "SELECT empno FROM emp WHERE ROWNUM BETWEEN 1 AND 10", "LIMIT 10"},
		{"keeps other conditions", "SELECT empno FROM emp WHERE sal > 100 AND ROWNUM <= 5", "WHERE sal > 100"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := transformView(t, tc.sql)
			if !strings.Contains(got, tc.want) {
				t.Errorf("got %q, want it to contain %q", got, tc.want)
			}
		})
	}
}

func TestTransformView_RownumUnrecognizedPassesThrough(t *testing.T) {
	got := transformView(t, "SELECT empno FROM emp WHERE ROWNUM > 5")
	if strings.Contains(got, "LIMIT") {
		t.Errorf("offset shape must not become LIMIT: %q", got)
	}
	if !strings.Contains(got, "rownum > 5") {
		t.Errorf("condition lost: %q", got)
	}
}

// Scenario 5: CONNECT BY becomes a recursive CTE.
func TestTransformView_ConnectBy(t *testing.T) {
	got := transformView(t, "SELECT id, SYS_CONNECT_BY_PATH(name,'/') p FROM t START WITH parent IS NULL CONNECT BY PRIOR id = parent")
	for _, part := range []string{
		"WITH RECURSIVE rec AS (",
		"SELECT id, name, 1 AS level, ARRAY[name] AS path FROM t WHERE parent IS NULL",
		"UNION ALL SELECT t.id, t.name, rec.level + 1, rec.path || t.name FROM t JOIN rec ON rec.id = t.parent",
		"SELECT id, array_to_string(path,'/') AS p FROM rec",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("missing %q in:\n%s", part, got)
		}
	}
}

func TestTransformView_ConnectByLevel(t *testing.T) {
	got := transformView(t, "SELECT id, LEVEL FROM t START WITH parent IS NULL CONNECT BY PRIOR id = parent")
	if !strings.Contains(got, "1 AS level") || !strings.Contains(got, "rec.level + 1") {
		t.Errorf("level column not threaded: %q", got)
	}
}

func TestTransformView_NocycleWarns(t *testing.T) {
	res := New(hrIndex()).TransformView("SELECT id FROM t START WITH parent IS NULL CONNECT BY NOCYCLE PRIOR id = parent", "hr")
	if res.PostgresSQL == "" {
		t.Fatalf("expected output despite NOCYCLE, errors: %v", res.Errors)
	}
	warned := false
	for _, err := range res.Errors {
		if err.Warning {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a design-note warning for NOCYCLE")
	}
}

// Identifier and reference rewrites.
func TestTransformView_FunctionRewrites(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"sysdate", "SELECT SYSDATE FROM dual", "SELECT CURRENT_TIMESTAMP"},
		{"systimestamp", "SELECT SYSTIMESTAMP FROM dual", "SELECT CURRENT_TIMESTAMP"},
		{"nested nvl", "SELECT NVL(NVL(a, b), 0) FROM t", "SELECT COALESCE(COALESCE(a, b), 0) FROM t"},
		{"decode with default", "SELECT DECODE(job, 'CLERK', 1, 2) FROM emp", "SELECT CASE job WHEN 'CLERK' THEN 1 ELSE 2 END FROM emp"},
		{"decode without default", "SELECT DECODE(job, 'CLERK', 1) FROM emp", "SELECT CASE job WHEN 'CLERK' THEN 1 END FROM emp"},
		{"instr", "SELECT INSTR(ename, 'A') FROM emp", "SELECT POSITION('A' IN ename) FROM emp"},
		{"to_number", "SELECT TO_NUMBER(ename) FROM emp", "SELECT ename::NUMERIC FROM emp"},
		{"to_char passes", "SELECT TO_CHAR(hiredate, 'YYYY-MM-DD') FROM emp", "SELECT TO_CHAR(hiredate, 'YYYY-MM-DD') FROM emp"},
		{"trunc on date", "SELECT TRUNC(hiredate) FROM emp", "SELECT DATE_TRUNC('day', hiredate)::DATE FROM emp"},
		{"trunc on number", "SELECT TRUNC(sal) FROM emp", "SELECT TRUNC(sal) FROM emp"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := transformView(t, tc.sql)
			if got != tc.want {
				t.Errorf("got  %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestTransformView_PackageFunctionFlattening(t *testing.T) {
	got := transformView(t, "SELECT pay.net(sal) FROM emp")
	if !strings.Contains(got, "hr.pay__net(sal)") {
		t.Errorf("got %q", got)
	}

	got = transformView(t, "SELECT hr.pay.net(sal) FROM emp")
	if !strings.Contains(got, "hr.pay__net(sal)") {
		t.Errorf("three-part name: got %q", got)
	}
}

func TestTransformView_StandalonePassesThrough(t *testing.T) {
	got := transformView(t, "SELECT billing.compute(sal) FROM emp")
	if !strings.Contains(got, "billing.compute(sal)") {
		t.Errorf("got %q", got)
	}
}

func TestTransformView_SynonymSubstitution(t *testing.T) {
	got := transformView(t, "SELECT empno FROM all_emps")
	if !strings.Contains(got, "FROM shared.emp_archive") {
		t.Errorf("PUBLIC synonym not applied: %q", got)
	}

	// Known tables resolve to themselves and stay unqualified.
	got = transformView(t, "SELECT empno FROM emp")
	if strings.Contains(got, "hr.emp") {
		t.Errorf("non-synonym table gained a qualifier: %q", got)
	}
}

func TestTransformView_Determinism(t *testing.T) {
	sql := "SELECT a.id, NVL(b.name, '?') FROM a, b WHERE a.id = b.id(+) AND ROWNUM <= 3"
	tr := New(hrIndex())
	first := tr.TransformView(sql, "hr").PostgresSQL
	for i := 0; i < 5; i++ {
		if got := tr.TransformView(sql, "hr").PostgresSQL; got != first {
			t.Fatalf("run %d differs:\n%s\n%s", i, got, first)
		}
	}
}

func TestTransformView_SubqueryGetsOwnScope(t *testing.T) {
	got := transformView(t, "SELECT empno FROM emp WHERE deptno IN (SELECT deptno FROM dept WHERE ROWNUM <= 1)")
	if !strings.Contains(got, "(SELECT deptno FROM dept LIMIT 1)") {
		t.Errorf("subquery not transformed in its own scope: %q", got)
	}
	if strings.Contains(got, "emp LIMIT") {
		t.Errorf("inner ROWNUM leaked to the outer block: %q", got)
	}
}

func TestTransformView_ParseErrorReturned(t *testing.T) {
	res := New(hrIndex()).TransformView("SELECT FROM WHERE", "hr")
	if len(res.Errors) == 0 || !ErrParse.Is(res.Errors[0].Err) {
		t.Fatalf("expected ErrParse, got %v", res.Errors)
	}
	if res.Errors[0].SQL == "" {
		t.Error("error should carry the offending SQL")
	}
}

func TestTransformFunction_Standalone(t *testing.T) {
	src := `CREATE OR REPLACE FUNCTION get_bonus(p_empno NUMBER) RETURN NUMBER IS
  v_sal NUMBER := 0;
BEGIN
  SELECT sal INTO v_sal FROM emp WHERE empno = p_empno;
  IF v_sal IS NULL THEN
    RETURN 0;
  END IF;
  RETURN v_sal * 0.1;
END;`
	res := New(hrIndex()).TransformFunctionOrProcedure(src, "hr")
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	for _, part := range []string{
		"CREATE OR REPLACE FUNCTION hr.get_bonus(p_empno NUMERIC) RETURNS NUMERIC AS $$",
		"DECLARE",
		"v_sal NUMERIC := 0;",
		"SELECT sal INTO v_sal FROM emp WHERE empno = p_empno;",
		"IF v_sal IS NULL THEN",
		"RETURN v_sal * 0.1;",
		"$$ LANGUAGE plpgsql;",
	} {
		if !strings.Contains(res.PostgresSQL, part) {
			t.Errorf("missing %q in:\n%s", part, res.PostgresSQL)
		}
	}
}

func TestTransformProcedure_BecomesVoidFunction(t *testing.T) {
	src := `CREATE OR REPLACE PROCEDURE bump_sal(p_empno NUMBER) IS
BEGIN
  UPDATE emp SET sal = sal + 1 WHERE empno = p_empno;
END;`
	res := New(hrIndex()).TransformFunctionOrProcedure(src, "hr")
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.PostgresSQL, "RETURNS VOID") {
		t.Errorf("procedure should return void:\n%s", res.PostgresSQL)
	}
}

func TestTransformFunction_OutParamRejected(t *testing.T) {
	src := `PROCEDURE p(x OUT NUMBER) IS BEGIN x := 1; END;`
	res := New(hrIndex()).TransformFunctionOrProcedure(src, "hr")
	if len(res.Errors) == 0 || !ErrUnsupportedConstruct.Is(res.Errors[0].Err) {
		t.Fatalf("expected UnsupportedConstruct for OUT parameter, got %v", res.Errors)
	}
}

func TestTransformFunction_CallStatementLowering(t *testing.T) {
	src := `PROCEDURE run_all IS
BEGIN
  pay.reset_rate();
  cleanup(1);
END;`
	res := New(hrIndex()).TransformFunctionOrProcedure(src, "hr")
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.PostgresSQL, "PERFORM hr.pay__reset_rate();") {
		t.Errorf("package procedure call not flattened:\n%s", res.PostgresSQL)
	}
	if !strings.Contains(res.PostgresSQL, "PERFORM cleanup(1);") {
		t.Errorf("plain call not lowered to PERFORM:\n%s", res.PostgresSQL)
	}
}

func TestTransformFunction_ObjectTypeMethodCalls(t *testing.T) {
	src := `FUNCTION show(p_addr ADDRESS_T) RETURN VARCHAR2 IS
BEGIN
  RETURN p_addr.formatted(', ');
END;`
	res := New(hrIndex()).TransformFunctionOrProcedure(src, "hr")
	if len(res.Errors) > 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.PostgresSQL, "hr.address_t__formatted(p_addr, ', ')") {
		t.Errorf("member method not flattened with self argument:\n%s", res.PostgresSQL)
	}
}

func TestTransformFunction_MetadataMissingForTypeMethod(t *testing.T) {
	src := `FUNCTION show(p_addr ADDRESS_T) RETURN VARCHAR2 IS
BEGIN
  RETURN p_addr.nonexistent(1);
END;`
	res := New(hrIndex()).TransformFunctionOrProcedure(src, "hr")
	if len(res.Errors) == 0 || !ErrMetadataMissing.Is(res.Errors[0].Err) {
		t.Fatalf("expected MetadataMissing, got %v", res.Errors)
	}
}

func TestTransformFunction_AmbiguousReference(t *testing.T) {
	b := metadata.NewBuilder()
	b.AddPackageFunction(metadata.PackageFunction{Schema: "hr", Package: "pay", Name: "net", Kind: metadata.KindFunction, Arity: 1})
	b.AddTypeMethod(metadata.TypeMethod{Schema: "hr", Type: "wallet_t", Method: "net", Kind: metadata.KindFunction, ReturnType: "NUMBER"})
	idx := b.Build()

	// A local named pay of a type that also has a net method makes
	// pay.net(x) resolve both ways.
	src := `FUNCTION f(pay WALLET_T) RETURN NUMBER IS
BEGIN
  RETURN pay.net(1);
END;`
	res := New(idx).TransformFunctionOrProcedure(src, "hr")
	if len(res.Errors) == 0 || !ErrAmbiguousReference.Is(res.Errors[0].Err) {
		t.Fatalf("expected AmbiguousReference, got %v", res.Errors)
	}
}

// Context balance holds even when the emit fails partway.
func TestContextBalance_AfterErrors(t *testing.T) {
	tr := New(hrIndex())
	inputs := []string{
		"SELECT a.id FROM a, b WHERE a.id < b.id(+)",
		"SELECT FROM WHERE",
		"SELECT empno FROM emp WHERE deptno IN (SELECT x FROM y WHERE a.b(+) > 1)",
	}
	for _, sql := range inputs {
		res := tr.TransformView(sql, "hr")
		// The balance check inside run() reports any leak as an
		// InternalInvariantViolation; none of these may produce one.
		for _, err := range res.Errors {
			if ErrInternalInvariant.Is(err.Err) {
				t.Errorf("context leak for %q: %v", sql, err)
			}
		}
	}
}
