package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sayiza/orapgsync/metadata"
)

const fixtureYAML = `
schemas: [hr]
tables:
  - schema: hr
    name: emp
    columns:
      - name: empno
        datatype: NUMBER
      - name: ename
        datatype: VARCHAR2(30)
        nullable: true
  - schema: sales
    name: orders
    columns:
      - name: id
        datatype: NUMBER
synonyms:
  - owner: PUBLIC
    name: all_emps
    targetschema: shared
    targetname: emp_archive
package_functions:
  - schema: hr
    package: pay
    name: net
    arity: 1
type_methods:
  - schema: hr
    type: address_t
    method: formatted
    returntype: VARCHAR2
`

func TestFixtureSource_FilterAndBuild(t *testing.T) {
	src, err := ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)

	ctx := context.Background()

	// Schema filtering drops the sales table.
	tables, err := src.ListTables(ctx, []string{"hr"})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	require.Equal(t, "emp", tables[0].Name)

	// PUBLIC synonyms survive any schema filter.
	syns, err := src.ListSynonyms(ctx, []string{"hr"})
	require.NoError(t, err)
	require.Len(t, syns, 1)

	idx, err := BuildIndex(ctx, src, []string{"hr"})
	require.NoError(t, err)

	tab, ok := idx.Table("hr", "emp")
	require.True(t, ok)
	require.Len(t, tab.Columns, 2)

	schema, name := idx.ResolveSynonym("hr", "all_emps")
	require.Equal(t, "shared", schema)
	require.Equal(t, "emp_archive", name)

	_, ok = idx.PackageFunction("hr", "pay", "net")
	require.True(t, ok)

	m, ok := idx.TypeMethod("hr", "address_t", "formatted")
	require.True(t, ok)
	require.Equal(t, metadata.KindFunction, m.Kind)
}

func TestSnapshotRoundTrip(t *testing.T) {
	src, err := ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)

	path := t.TempDir() + "/snap.yaml"
	require.NoError(t, WriteSnapshot(path, src.snap))

	reloaded, err := LoadFixture(path)
	require.NoError(t, err)
	require.Equal(t, src.snap.Schemas, reloaded.snap.Schemas)
	require.Len(t, reloaded.snap.Tables, len(src.snap.Tables))
}
