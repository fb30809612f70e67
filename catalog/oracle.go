// Package catalog feeds the metadata index: it reads schema facts and
// object source out of Oracle's data dictionary, or out of YAML snapshots
// for offline runs.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/sijms/go-ora/v2"
	"github.com/sirupsen/logrus"

	"github.com/Sayiza/orapgsync/metadata"
)

// Config holds Oracle connection settings.
type Config struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	ServiceName string   `yaml:"service_name"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	Schemas     []string `yaml:"schemas"`
}

// Source is the metadata ingestion interface the transformer job consumes.
type Source interface {
	ListTables(ctx context.Context, schemas []string) ([]metadata.Table, error)
	ListSynonyms(ctx context.Context, schemas []string) ([]metadata.Synonym, error)
	ListPackageFunctions(ctx context.Context, schemas []string) ([]metadata.PackageFunction, error)
	ListTypeMethods(ctx context.Context, schemas []string) ([]metadata.TypeMethod, error)
}

// OracleSource reads the data dictionary through the pure-Go driver.
type OracleSource struct {
	db  *sql.DB
	log *logrus.Entry
}

// Open connects to Oracle. The DSN format is the go-ora URL form.
func Open(cfg Config) (*OracleSource, error) {
	dsn := fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.ServiceName)
	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("open oracle connection: %w", err)
	}
	return &OracleSource{
		db:  db,
		log: logrus.WithField("component", "catalog"),
	}, nil
}

// Close releases the connection.
func (s *OracleSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies connectivity.
func (s *OracleSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// schemaPlaceholders renders :1, :2, ... for an IN list and the matching
// argument slice.
func schemaPlaceholders(schemas []string) (string, []interface{}) {
	parts := make([]string, len(schemas))
	args := make([]interface{}, len(schemas))
	for i, s := range schemas {
		parts[i] = fmt.Sprintf(":%d", i+1)
		args[i] = strings.ToUpper(s)
	}
	return strings.Join(parts, ","), args
}

// ListTables reads tables and columns for the given schemas.
func (s *OracleSource) ListTables(ctx context.Context, schemas []string) ([]metadata.Table, error) {
	ph, args := schemaPlaceholders(schemas)
	query := fmt.Sprintf(`
		SELECT OWNER, TABLE_NAME, COLUMN_NAME, DATA_TYPE, NULLABLE, NVL(DATA_DEFAULT, '')
		FROM ALL_TAB_COLUMNS
		WHERE OWNER IN (%s)
		ORDER BY OWNER, TABLE_NAME, COLUMN_ID`, ph)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []metadata.Table
	var cur *metadata.Table
	for rows.Next() {
		var owner, table, column, dataType, nullable, dflt string
		if err := rows.Scan(&owner, &table, &column, &dataType, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		if cur == nil || cur.Schema != strings.ToLower(owner) || cur.Name != strings.ToLower(table) {
			tables = append(tables, metadata.Table{Schema: strings.ToLower(owner), Name: strings.ToLower(table)})
			cur = &tables[len(tables)-1]
		}
		cur.Columns = append(cur.Columns, metadata.Column{
			Name:     strings.ToLower(column),
			DataType: dataType,
			Nullable: nullable == "Y",
			Default:  strings.TrimSpace(dflt),
		})
	}
	s.log.WithField("tables", len(tables)).Info("table snapshot read")
	return tables, rows.Err()
}

// ListSynonyms reads synonyms for the given schemas plus PUBLIC.
func (s *OracleSource) ListSynonyms(ctx context.Context, schemas []string) ([]metadata.Synonym, error) {
	withPublic := append(append([]string{}, schemas...), "PUBLIC")
	ph, args := schemaPlaceholders(withPublic)
	query := fmt.Sprintf(`
		SELECT OWNER, SYNONYM_NAME, TABLE_OWNER, TABLE_NAME
		FROM ALL_SYNONYMS
		WHERE OWNER IN (%s)
		ORDER BY OWNER, SYNONYM_NAME`, ph)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list synonyms: %w", err)
	}
	defer rows.Close()

	var syns []metadata.Synonym
	for rows.Next() {
		var syn metadata.Synonym
		if err := rows.Scan(&syn.Owner, &syn.Name, &syn.TargetSchema, &syn.TargetName); err != nil {
			return nil, fmt.Errorf("scan synonym row: %w", err)
		}
		syns = append(syns, syn)
	}
	return syns, rows.Err()
}

// ListPackageFunctions reads package members with their argument counts.
func (s *OracleSource) ListPackageFunctions(ctx context.Context, schemas []string) ([]metadata.PackageFunction, error) {
	ph, args := schemaPlaceholders(schemas)
	query := fmt.Sprintf(`
		SELECT p.OWNER, p.OBJECT_NAME, p.PROCEDURE_NAME,
		       (SELECT COUNT(*) FROM ALL_ARGUMENTS a
		        WHERE a.OWNER = p.OWNER AND a.PACKAGE_NAME = p.OBJECT_NAME
		          AND a.OBJECT_NAME = p.PROCEDURE_NAME AND a.ARGUMENT_NAME IS NOT NULL),
		       (SELECT COUNT(*) FROM ALL_ARGUMENTS a
		        WHERE a.OWNER = p.OWNER AND a.PACKAGE_NAME = p.OBJECT_NAME
		          AND a.OBJECT_NAME = p.PROCEDURE_NAME AND a.POSITION = 0)
		FROM ALL_PROCEDURES p
		WHERE p.OWNER IN (%s) AND p.OBJECT_TYPE = 'PACKAGE' AND p.PROCEDURE_NAME IS NOT NULL
		ORDER BY p.OWNER, p.OBJECT_NAME, p.PROCEDURE_NAME`, ph)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list package functions: %w", err)
	}
	defer rows.Close()

	var fns []metadata.PackageFunction
	for rows.Next() {
		var fn metadata.PackageFunction
		var returns int
		if err := rows.Scan(&fn.Schema, &fn.Package, &fn.Name, &fn.Arity, &returns); err != nil {
			return nil, fmt.Errorf("scan package function row: %w", err)
		}
		if returns > 0 {
			fn.Kind = metadata.KindFunction
		} else {
			fn.Kind = metadata.KindProcedure
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

// ListTypeMethods reads object-type methods and their parameters.
func (s *OracleSource) ListTypeMethods(ctx context.Context, schemas []string) ([]metadata.TypeMethod, error) {
	ph, args := schemaPlaceholders(schemas)
	query := fmt.Sprintf(`
		SELECT m.OWNER, m.TYPE_NAME, m.METHOD_NAME, m.METHOD_TYPE,
		       NVL(r.PARAM_NAME, ''), NVL(r.PARAM_TYPE_NAME, ''), NVL(r2.RESULT_TYPE_NAME, '')
		FROM ALL_TYPE_METHODS m
		LEFT JOIN ALL_METHOD_PARAMS r
		  ON r.OWNER = m.OWNER AND r.TYPE_NAME = m.TYPE_NAME
		 AND r.METHOD_NAME = m.METHOD_NAME AND r.METHOD_NO = m.METHOD_NO
		LEFT JOIN ALL_METHOD_RESULTS r2
		  ON r2.OWNER = m.OWNER AND r2.TYPE_NAME = m.TYPE_NAME
		 AND r2.METHOD_NAME = m.METHOD_NAME AND r2.METHOD_NO = m.METHOD_NO
		WHERE m.OWNER IN (%s)
		ORDER BY m.OWNER, m.TYPE_NAME, m.METHOD_NAME, r.PARAM_NO`, ph)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list type methods: %w", err)
	}
	defer rows.Close()

	var methods []metadata.TypeMethod
	var cur *metadata.TypeMethod
	for rows.Next() {
		var owner, typeName, method, methodType, paramName, paramType, resultType string
		if err := rows.Scan(&owner, &typeName, &method, &methodType, &paramName, &paramType, &resultType); err != nil {
			return nil, fmt.Errorf("scan type method row: %w", err)
		}
		key := strings.ToLower(owner + "." + typeName + "." + method)
		if cur == nil || strings.ToLower(cur.Schema+"."+cur.Type+"."+cur.Method) != key {
			m := metadata.TypeMethod{
				Schema:     strings.ToLower(owner),
				Type:       strings.ToLower(typeName),
				Method:     strings.ToLower(method),
				ReturnType: resultType,
			}
			if resultType == "" {
				m.Kind = metadata.KindProcedure
			} else {
				m.Kind = metadata.KindFunction
			}
			// SELF appears as the first parameter of member methods; its
			// absence marks a static method.
			m.Static = !strings.EqualFold(paramName, "SELF")
			methods = append(methods, m)
			cur = &methods[len(methods)-1]
		}
		if paramName != "" && !strings.EqualFold(paramName, "SELF") {
			cur.Params = append(cur.Params, metadata.MethodParam{
				Name:     strings.ToLower(paramName),
				DataType: paramType,
			})
		}
	}
	return methods, rows.Err()
}

// SourceText reads an object's source out of ALL_SOURCE, reassembled in
// line order.
func (s *OracleSource) SourceText(ctx context.Context, schema, objectType, name string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT TEXT FROM ALL_SOURCE
		WHERE OWNER = :1 AND TYPE = :2 AND NAME = :3
		ORDER BY LINE`,
		strings.ToUpper(schema), strings.ToUpper(objectType), strings.ToUpper(name))
	if err != nil {
		return "", fmt.Errorf("read source of %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", fmt.Errorf("scan source line: %w", err)
		}
		b.WriteString(line)
	}
	return b.String(), rows.Err()
}

// BuildIndex drives a Source through the metadata builder. Schemas keep
// caller order.
func BuildIndex(ctx context.Context, src Source, schemas []string) (*metadata.Index, error) {
	b := metadata.NewBuilder()
	for _, s := range schemas {
		b.AddSchema(s)
	}

	tables, err := src.ListTables(ctx, schemas)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		b.AddTable(t)
	}

	syns, err := src.ListSynonyms(ctx, schemas)
	if err != nil {
		return nil, err
	}
	for _, s := range syns {
		b.AddSynonym(s)
	}

	fns, err := src.ListPackageFunctions(ctx, schemas)
	if err != nil {
		return nil, err
	}
	for _, f := range fns {
		b.AddPackageFunction(f)
	}

	methods, err := src.ListTypeMethods(ctx, schemas)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		b.AddTypeMethod(m)
	}

	return b.Build(), nil
}
