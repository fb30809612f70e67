// Package metadata holds the read-only snapshot of Oracle schema facts the
// transformer consults: tables and columns, synonyms, package functions,
// type methods, and package variables. An Index is built once per job and
// is immutable afterwards, so concurrent transformations share it without
// locking.
package metadata

import (
	"sort"
	"strings"
)

// Column is one table column record.
type Column struct {
	Name     string
	DataType string // raw Oracle datatype spelling
	Nullable bool
	Default  string
}

// Table is a table with its ordered columns.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// Synonym aliases a schema object. Owner "public" is the lookup fallback.
type Synonym struct {
	Owner        string
	Name         string
	TargetSchema string
	TargetName   string
}

// SubprogramKind distinguishes functions from procedures.
type SubprogramKind int

const (
	KindFunction SubprogramKind = iota
	KindProcedure
)

// PackageFunction is one callable member of a package.
type PackageFunction struct {
	Schema  string
	Package string
	Name    string
	Kind    SubprogramKind
	Arity   int
}

// MethodParam is one object-type method parameter.
type MethodParam struct {
	Name     string
	DataType string
}

// TypeMethod is one method of an Oracle object type.
type TypeMethod struct {
	Schema     string
	Type       string
	Method     string
	Kind       SubprogramKind
	Static     bool
	Params     []MethodParam
	ReturnType string // empty for procedures
}

// PackageVariable is one package-spec variable record.
type PackageVariable struct {
	Name     string
	DataType string
	Default  string // Oracle default expression text, may be empty
	Constant bool
}

// Index is the frozen lookup structure. Build one with a Builder.
type Index struct {
	schemas   []string // caller order, deduplicated
	tables    map[string]*Table
	synonyms  map[string]*Synonym // key owner.name
	pkgFuncs  map[string]*PackageFunction
	typeMeths map[string]*TypeMethod
	pkgVars   map[string][]PackageVariable // key schema.package, insertion order

	tablesBySchema map[string][]string // sorted table names per schema
	typesWithMeths map[string]bool     // schema.type
}

// Builder accumulates snapshot records and produces an Index. All
// identifiers are lowercased on ingest.
type Builder struct {
	idx *Index
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{idx: &Index{
		tables:         make(map[string]*Table),
		synonyms:       make(map[string]*Synonym),
		pkgFuncs:       make(map[string]*PackageFunction),
		typeMeths:      make(map[string]*TypeMethod),
		pkgVars:        make(map[string][]PackageVariable),
		tablesBySchema: make(map[string][]string),
		typesWithMeths: make(map[string]bool),
	}}
}

// AddSchema records a schema in caller order.
func (b *Builder) AddSchema(schema string) {
	schema = strings.ToLower(schema)
	for _, s := range b.idx.schemas {
		if s == schema {
			return
		}
	}
	b.idx.schemas = append(b.idx.schemas, schema)
}

// AddTable records a table and its columns.
func (b *Builder) AddTable(t Table) {
	t.Schema = strings.ToLower(t.Schema)
	t.Name = strings.ToLower(t.Name)
	for i := range t.Columns {
		t.Columns[i].Name = strings.ToLower(t.Columns[i].Name)
	}
	b.AddSchema(t.Schema)
	b.idx.tables[t.Schema+"."+t.Name] = &t
	b.idx.tablesBySchema[t.Schema] = append(b.idx.tablesBySchema[t.Schema], t.Name)
}

// AddSynonym records a synonym.
func (b *Builder) AddSynonym(s Synonym) {
	s.Owner = strings.ToLower(s.Owner)
	s.Name = strings.ToLower(s.Name)
	s.TargetSchema = strings.ToLower(s.TargetSchema)
	s.TargetName = strings.ToLower(s.TargetName)
	b.idx.synonyms[s.Owner+"."+s.Name] = &s
}

// AddPackageFunction records a package member.
func (b *Builder) AddPackageFunction(f PackageFunction) {
	f.Schema = strings.ToLower(f.Schema)
	f.Package = strings.ToLower(f.Package)
	f.Name = strings.ToLower(f.Name)
	b.idx.pkgFuncs[f.Schema+"."+f.Package+"."+f.Name] = &f
}

// AddTypeMethod records an object-type method.
func (b *Builder) AddTypeMethod(m TypeMethod) {
	m.Schema = strings.ToLower(m.Schema)
	m.Type = strings.ToLower(m.Type)
	m.Method = strings.ToLower(m.Method)
	for i := range m.Params {
		m.Params[i].Name = strings.ToLower(m.Params[i].Name)
	}
	b.idx.typeMeths[m.Schema+"."+m.Type+"."+m.Method] = &m
	b.idx.typesWithMeths[m.Schema+"."+m.Type] = true
}

// AddPackageVariable appends a package variable record in order.
func (b *Builder) AddPackageVariable(schema, pkg string, v PackageVariable) {
	schema = strings.ToLower(schema)
	pkg = strings.ToLower(pkg)
	v.Name = strings.ToLower(v.Name)
	key := schema + "." + pkg
	b.idx.pkgVars[key] = append(b.idx.pkgVars[key], v)
}

// Build freezes and returns the index. The builder must not be reused.
func (b *Builder) Build() *Index {
	for schema, names := range b.idx.tablesBySchema {
		sort.Strings(names)
		b.idx.tablesBySchema[schema] = names
	}
	idx := b.idx
	b.idx = nil
	return idx
}

// Schemas returns the schemas in the order the caller registered them.
func (ix *Index) Schemas() []string { return ix.schemas }

// TableNames returns the alphabetically ordered table names of a schema.
func (ix *Index) TableNames(schema string) []string {
	return ix.tablesBySchema[strings.ToLower(schema)]
}

// Table looks up a table by schema and name.
func (ix *Index) Table(schema, name string) (*Table, bool) {
	t, ok := ix.tables[strings.ToLower(schema)+"."+strings.ToLower(name)]
	return t, ok
}

// ResolveSynonym resolves name against the current schema's synonyms, then
// PUBLIC. Unresolvable names fail soft: the inputs come back unchanged.
func (ix *Index) ResolveSynonym(schema, name string) (targetSchema, targetName string) {
	schema = strings.ToLower(schema)
	name = strings.ToLower(name)
	if s, ok := ix.synonyms[schema+"."+name]; ok {
		return s.TargetSchema, s.TargetName
	}
	if s, ok := ix.synonyms["public."+name]; ok {
		return s.TargetSchema, s.TargetName
	}
	return schema, name
}

// PackageFunction looks up a package member by schema, package and name.
func (ix *Index) PackageFunction(schema, pkg, fn string) (*PackageFunction, bool) {
	f, ok := ix.pkgFuncs[strings.ToLower(schema)+"."+strings.ToLower(pkg)+"."+strings.ToLower(fn)]
	return f, ok
}

// HasPackage reports whether any member of schema.pkg is indexed.
func (ix *Index) HasPackage(schema, pkg string) bool {
	prefix := strings.ToLower(schema) + "." + strings.ToLower(pkg) + "."
	for k := range ix.pkgFuncs {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// TypeMethod looks up an object-type method.
func (ix *Index) TypeMethod(schema, typ, method string) (*TypeMethod, bool) {
	m, ok := ix.typeMeths[strings.ToLower(schema)+"."+strings.ToLower(typ)+"."+strings.ToLower(method)]
	return m, ok
}

// HasType reports whether schema.typ has any indexed method.
func (ix *Index) HasType(schema, typ string) bool {
	return ix.typesWithMeths[strings.ToLower(schema)+"."+strings.ToLower(typ)]
}

// PackageVariables returns the ordered variable records of schema.pkg.
func (ix *Index) PackageVariables(schema, pkg string) []PackageVariable {
	return ix.pkgVars[strings.ToLower(schema)+"."+strings.ToLower(pkg)]
}
