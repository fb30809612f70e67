package transformer

import (
	"fmt"
	"strings"

	"github.com/Sayiza/orapgsync/metadata"
	"github.com/Sayiza/orapgsync/plsql"
	"github.com/shopspring/decimal"
)

// Package variables live in PostgreSQL session configuration under the
// key schema.pkg.var. The rewriter lazily emits, once per package, an
// idempotent initializer plus per-variable getters and setters; constants
// get a getter only.

// packageConfigKey is the session-config key for one variable.
func packageConfigKey(schema, pkg, name string) string {
	return schema + "." + pkg + "." + name
}

// lowerDefaultValue turns an Oracle default expression into the literal
// set_config argument: quoted strings are unquoted into the value, bare
// numerics preserved, SYSDATE becomes CURRENT_TIMESTAMP (as an expression,
// so the emitted argument is unquoted).
func lowerDefaultValue(oracleExpr string) (sqlArg string) {
	expr := strings.TrimSpace(oracleExpr)
	if expr == "" {
		return "''"
	}
	lower := strings.ToLower(expr)
	if lower == "sysdate" || lower == "systimestamp" {
		return "CURRENT_TIMESTAMP::TEXT"
	}
	if lower == "true" || lower == "false" || lower == "null" {
		return "'" + lower + "'"
	}
	if strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'") && len(expr) >= 2 {
		return expr
	}
	if d, err := decimal.NewFromString(expr); err == nil {
		return "'" + d.String() + "'"
	}
	// Any other expression is evaluated at initialization time.
	return "(" + expr + ")::TEXT"
}

// emitPackageHelpers produces the initializer and accessor DDLs for one
// package's variables, in spec order.
func (e *emitter) emitPackageHelpers(schema, pkg string, vars []metadata.PackageVariable) []string {
	if len(vars) == 0 {
		return nil
	}
	var helpers []string

	var b strings.Builder
	initKey := packageConfigKey(schema, pkg, "__initialized")
	b.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION %s.%s__initialize() RETURNS VOID AS $$\n", schema, pkg))
	b.WriteString("BEGIN\n")
	b.WriteString(fmt.Sprintf("  IF current_setting('%s', true) = 'true' THEN\n", initKey))
	b.WriteString("    RETURN;\n")
	b.WriteString("  END IF;\n")
	for _, v := range vars {
		value := "''"
		if v.Default != "" {
			value = lowerDefaultValue(v.Default)
		}
		b.WriteString(fmt.Sprintf("  PERFORM set_config('%s', %s, false);\n", packageConfigKey(schema, pkg, v.Name), value))
	}
	b.WriteString(fmt.Sprintf("  PERFORM set_config('%s', 'true', false);\n", initKey))
	b.WriteString("END;\n$$ LANGUAGE plpgsql;")
	helpers = append(helpers, b.String())

	for _, v := range vars {
		pgType := mapTypeName(typeNameFromRaw(v.DataType))
		key := packageConfigKey(schema, pkg, v.Name)

		var g strings.Builder
		g.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION %s.%s__get_%s() RETURNS %s AS $$\n", schema, pkg, v.Name, pgType))
		g.WriteString("BEGIN\n")
		g.WriteString(fmt.Sprintf("  PERFORM %s.%s__initialize();\n", schema, pkg))
		g.WriteString(fmt.Sprintf("  RETURN current_setting('%s')::%s;\n", key, pgType))
		g.WriteString("END;\n$$ LANGUAGE plpgsql;")
		helpers = append(helpers, g.String())

		if v.Constant {
			continue
		}
		var s strings.Builder
		s.WriteString(fmt.Sprintf("CREATE OR REPLACE FUNCTION %s.%s__set_%s(p_value %s) RETURNS VOID AS $$\n", schema, pkg, v.Name, pgType))
		s.WriteString("BEGIN\n")
		s.WriteString(fmt.Sprintf("  PERFORM %s.%s__initialize();\n", schema, pkg))
		s.WriteString(fmt.Sprintf("  PERFORM set_config('%s', p_value::TEXT, false);\n", key))
		s.WriteString("END;\n$$ LANGUAGE plpgsql;")
		helpers = append(helpers, s.String())
	}

	return helpers
}

// typeNameFromRaw rebuilds a TypeName from a raw datatype spelling so the
// shared type mapper applies to metadata-sourced types too.
func typeNameFromRaw(raw string) *plsql.TypeName {
	tn := &plsql.TypeName{Precision: -1, Scale: -1}
	raw = strings.TrimSpace(raw)
	name := raw
	if i := strings.IndexByte(raw, '('); i >= 0 {
		name = strings.TrimSpace(raw[:i])
		rest := raw[i+1:]
		if j := strings.IndexByte(rest, ')'); j >= 0 {
			nums := strings.Split(rest[:j], ",")
			if d, err := decimal.NewFromString(strings.TrimSpace(nums[0])); err == nil {
				tn.Precision = int(d.IntPart())
			}
			if len(nums) > 1 {
				if d, err := decimal.NewFromString(strings.TrimSpace(nums[1])); err == nil {
					tn.Scale = int(d.IntPart())
				}
			}
		}
	}
	tn.Parts = []plsql.Token{{Type: plsql.IDENT, Literal: name}}
	return tn
}

// packageVarsFromSpec extracts the ordered variable records (and type
// declarations) from a parsed package spec.
func packageVarsFromSpec(spec *plsql.PackageSpec, src string) ([]metadata.PackageVariable, []*plsql.TypeDecl) {
	var vars []metadata.PackageVariable
	var types []*plsql.TypeDecl
	for _, d := range spec.Decls {
		switch decl := d.(type) {
		case *plsql.VarDecl:
			v := metadata.PackageVariable{
				Name:     plsql.Ident(decl.Name),
				Constant: decl.Constant,
			}
			if decl.Type != nil {
				start, stop := decl.Type.Span()
				v.DataType = strings.TrimSpace(src[start:stop])
			}
			if decl.Default != nil {
				start, stop := decl.Default.Span()
				v.Default = strings.TrimSpace(src[start:stop])
			}
			vars = append(vars, v)
		case *plsql.TypeDecl:
			types = append(types, decl)
		}
	}
	return vars, types
}
