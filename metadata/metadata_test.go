package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndex_LowercasesOnIngest(t *testing.T) {
	b := NewBuilder()
	b.AddTable(Table{Schema: "HR", Name: "EMP", Columns: []Column{{Name: "EMPNO", DataType: "NUMBER"}}})
	idx := b.Build()

	tab, ok := idx.Table("hr", "emp")
	require.True(t, ok)
	require.Equal(t, "empno", tab.Columns[0].Name)

	// Mixed-case lookups normalize too.
	_, ok = idx.Table("Hr", "Emp")
	require.True(t, ok)
}

func TestIndex_SynonymPriority(t *testing.T) {
	b := NewBuilder()
	b.AddSynonym(Synonym{Owner: "HR", Name: "EMP_ALL", TargetSchema: "HR", TargetName: "EMPLOYEES"})
	b.AddSynonym(Synonym{Owner: "PUBLIC", Name: "EMP_ALL", TargetSchema: "SHARED", TargetName: "EMP_ARCHIVE"})
	b.AddSynonym(Synonym{Owner: "PUBLIC", Name: "DEPT_ALL", TargetSchema: "SHARED", TargetName: "DEPARTMENTS"})
	idx := b.Build()

	// Current schema wins over PUBLIC.
	s, n := idx.ResolveSynonym("hr", "emp_all")
	require.Equal(t, "hr", s)
	require.Equal(t, "employees", n)

	// PUBLIC is the fallback.
	s, n = idx.ResolveSynonym("hr", "dept_all")
	require.Equal(t, "shared", s)
	require.Equal(t, "departments", n)

	// Unresolvable names fail soft.
	s, n = idx.ResolveSynonym("hr", "nothing")
	require.Equal(t, "hr", s)
	require.Equal(t, "nothing", n)
}

func TestIndex_DeterministicIteration(t *testing.T) {
	b := NewBuilder()
	b.AddSchema("sales")
	b.AddSchema("hr")
	b.AddTable(Table{Schema: "hr", Name: "zz_audit"})
	b.AddTable(Table{Schema: "hr", Name: "emp"})
	b.AddTable(Table{Schema: "hr", Name: "dept"})
	idx := b.Build()

	// Schemas keep caller order; tables sort alphabetically.
	require.Equal(t, []string{"sales", "hr"}, idx.Schemas())
	require.Equal(t, []string{"dept", "emp", "zz_audit"}, idx.TableNames("hr"))
}

func TestIndex_PackageFunctionsAndTypeMethods(t *testing.T) {
	b := NewBuilder()
	b.AddPackageFunction(PackageFunction{Schema: "HR", Package: "PAY", Name: "NET", Kind: KindFunction, Arity: 1})
	b.AddTypeMethod(TypeMethod{
		Schema: "HR", Type: "ADDRESS_T", Method: "FORMATTED",
		Kind: KindFunction, ReturnType: "VARCHAR2",
		Params: []MethodParam{{Name: "P_SEP", DataType: "VARCHAR2"}},
	})
	idx := b.Build()

	f, ok := idx.PackageFunction("hr", "pay", "net")
	require.True(t, ok)
	require.Equal(t, 1, f.Arity)
	require.True(t, idx.HasPackage("hr", "pay"))
	require.False(t, idx.HasPackage("hr", "other"))

	m, ok := idx.TypeMethod("hr", "address_t", "formatted")
	require.True(t, ok)
	require.False(t, m.Static)
	require.Equal(t, "p_sep", m.Params[0].Name)
	require.True(t, idx.HasType("hr", "address_t"))
}

func TestIndex_PackageVariablesOrdered(t *testing.T) {
	b := NewBuilder()
	b.AddPackageVariable("hr", "pay", PackageVariable{Name: "G_RATE", DataType: "NUMBER", Default: "0.2"})
	b.AddPackageVariable("hr", "pay", PackageVariable{Name: "C_NAME", DataType: "VARCHAR2(10)", Default: "'payroll'", Constant: true})
	idx := b.Build()

	vars := idx.PackageVariables("hr", "pay")
	require.Len(t, vars, 2)
	require.Equal(t, "g_rate", vars[0].Name)
	require.True(t, vars[1].Constant)
}
