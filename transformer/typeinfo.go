package transformer

import (
	"strings"

	"github.com/Sayiza/orapgsync/metadata"
	"github.com/Sayiza/orapgsync/plsql"
)

// oracleTypeCategory classifies a raw Oracle datatype spelling.
func oracleTypeCategory(raw string) typeCategory {
	base := strings.ToLower(raw)
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)
	switch base {
	case "number", "integer", "int", "smallint", "float", "decimal", "numeric",
		"pls_integer", "binary_integer", "binary_float", "binary_double", "natural", "positive":
		return typeNumeric
	case "varchar2", "varchar", "char", "nvarchar2", "nchar", "clob", "nclob", "long", "rowid":
		return typeText
	case "date":
		return typeDate
	case "boolean":
		return typeBoolean
	}
	if strings.HasPrefix(base, "timestamp") {
		return typeTimestamp
	}
	return typeUnknown
}

// builtinReturnCategory covers the fixed table of Oracle builtins whose
// result category the analysis knows without metadata.
func builtinReturnCategory(name string) (typeCategory, bool) {
	switch name {
	case "sysdate", "systimestamp", "current_timestamp", "localtimestamp":
		return typeTimestamp, true
	case "to_number", "instr", "length", "lengthb", "mod", "abs", "ceil", "floor",
		"sign", "power", "sqrt", "count", "sum", "avg", "months_between", "ascii":
		return typeNumeric, true
	case "to_char", "upper", "lower", "initcap", "substr", "substrb", "trim",
		"ltrim", "rtrim", "lpad", "rpad", "replace", "translate", "concat",
		"chr", "sys_connect_by_path":
		return typeText, true
	case "to_date", "add_months", "last_day", "next_day":
		return typeDate, true
	case "to_timestamp":
		return typeTimestamp, true
	}
	return typeUnknown, false
}

// analyzeExprTypes walks an expression bottom-up, caching a typeInfo per
// non-terminal keyed by token position. It never mutates the tree and
// never emits; it only populates the frame's type cache.
func (e *emitter) analyzeExprTypes(f *frame, expr plsql.Expression) typeInfo {
	if expr == nil {
		return typeInfo{}
	}

	var ti typeInfo
	switch x := expr.(type) {
	case *plsql.NumberLiteral:
		ti = typeInfo{category: typeNumeric}
	case *plsql.StringLiteral:
		ti = typeInfo{category: typeText}
	case *plsql.NullLiteral:
		ti = typeInfo{category: typeUnknown, nullable: true}
	case *plsql.DateTimeLiteral:
		if x.Timestamp {
			ti = typeInfo{category: typeTimestamp}
		} else {
			ti = typeInfo{category: typeDate}
		}
	case *plsql.IntervalLiteral:
		ti = typeInfo{category: typeUnknown}
	case *plsql.ParenExpr:
		ti = e.analyzeExprTypes(f, x.Inner)
	case *plsql.PrefixExpr:
		inner := e.analyzeExprTypes(f, x.Operand)
		if x.Op.Type == plsql.NOT {
			ti = typeInfo{category: typeBoolean}
		} else {
			ti = inner
		}
	case *plsql.PriorExpr:
		ti = e.analyzeExprTypes(f, x.Operand)
	case *plsql.BinaryExpr:
		left := e.analyzeExprTypes(f, x.Left)
		right := e.analyzeExprTypes(f, x.Right)
		switch x.Op.Type {
		case plsql.CONCAT:
			ti = typeInfo{category: typeText, nullable: left.nullable || right.nullable}
		case plsql.PLUS, plsql.MINUS, plsql.ASTERISK, plsql.SLASH:
			// Date arithmetic keeps the date side's category.
			switch {
			case left.category == typeDate || left.category == typeTimestamp:
				ti = left
			case right.category == typeDate || right.category == typeTimestamp:
				ti = right
			default:
				ti = typeInfo{category: typeNumeric, nullable: left.nullable || right.nullable}
			}
		default:
			ti = typeInfo{category: typeBoolean}
		}
	case *plsql.IsNullExpr, *plsql.InExpr, *plsql.BetweenExpr, *plsql.LikeExpr, *plsql.ExistsExpr:
		e.analyzeTypeChildren(f, expr)
		ti = typeInfo{category: typeBoolean}
	case *plsql.CaseExpr:
		e.analyzeExprTypes(f, x.Operand)
		for _, w := range x.Whens {
			e.analyzeExprTypes(f, w.When)
		}
		if len(x.Whens) > 0 {
			ti = e.analyzeExprTypes(f, x.Whens[0].Then)
			for _, w := range x.Whens[1:] {
				e.analyzeExprTypes(f, w.Then)
			}
		}
		e.analyzeExprTypes(f, x.Else)
	case *plsql.ColumnRef:
		ti = e.columnRefType(x)
	case *plsql.FunctionCall:
		for _, a := range x.Args {
			e.analyzeExprTypes(f, a)
		}
		ti = e.functionCallType(f, x)
	case *plsql.SubqueryExpr, *plsql.Star, *plsql.BindRef:
		ti = typeInfo{category: typeUnknown}
	default:
		ti = typeInfo{category: typeUnknown}
	}

	f.types[cacheKey(expr)] = ti
	return ti
}

// analyzeTypeChildren descends into predicate operands.
func (e *emitter) analyzeTypeChildren(f *frame, expr plsql.Expression) {
	switch x := expr.(type) {
	case *plsql.IsNullExpr:
		e.analyzeExprTypes(f, x.Operand)
	case *plsql.InExpr:
		e.analyzeExprTypes(f, x.Operand)
		for _, item := range x.List {
			e.analyzeExprTypes(f, item)
		}
	case *plsql.BetweenExpr:
		e.analyzeExprTypes(f, x.Operand)
		e.analyzeExprTypes(f, x.Lo)
		e.analyzeExprTypes(f, x.Hi)
	case *plsql.LikeExpr:
		e.analyzeExprTypes(f, x.Operand)
		e.analyzeExprTypes(f, x.Pattern)
		e.analyzeExprTypes(f, x.Escape)
	}
}

// columnRefType resolves a column reference through the alias scopes and
// table metadata; anything unresolved is UNKNOWN.
func (e *emitter) columnRefType(ref *plsql.ColumnRef) typeInfo {
	if len(ref.Parts) == 1 {
		switch ref.Column() {
		case "sysdate", "systimestamp":
			return typeInfo{category: typeTimestamp}
		case "rownum", "level":
			return typeInfo{category: typeNumeric}
		}
		// Unqualified: try every visible table in the innermost frame out.
		for i := len(e.stack.frames) - 1; i >= 0; i-- {
			for _, b := range e.stack.frames[i].aliases {
				if col := findColumn(b, ref.Column()); col != nil {
					return typeInfo{category: oracleTypeCategory(col.DataType), nullable: col.Nullable}
				}
			}
		}
		return typeInfo{category: typeUnknown}
	}

	if b, ok := e.stack.lookupAlias(ref.Qualifier()); ok {
		if col := findColumn(b, ref.Column()); col != nil {
			return typeInfo{category: oracleTypeCategory(col.DataType), nullable: col.Nullable}
		}
	}
	return typeInfo{category: typeUnknown}
}

func findColumn(b tableBinding, name string) *metadata.Column {
	if b.table == nil {
		return nil
	}
	for i := range b.table.Columns {
		if b.table.Columns[i].Name == name {
			return &b.table.Columns[i]
		}
	}
	return nil
}

// functionCallType applies the builtin table, with the argument-dependent
// cases (NVL takes its first argument's type, TRUNC and ROUND follow a
// date argument) handled explicitly.
func (e *emitter) functionCallType(f *frame, call *plsql.FunctionCall) typeInfo {
	name := call.Path()
	switch name {
	case "nvl", "coalesce", "nvl2", "min", "max", "decode":
		if name == "decode" && len(call.Args) >= 3 {
			return e.typeOf(f, call.Args[2])
		}
		if len(call.Args) > 0 {
			return e.typeOf(f, call.Args[0])
		}
	case "trunc", "round":
		if len(call.Args) > 0 {
			arg := e.typeOf(f, call.Args[0])
			if arg.category == typeDate || arg.category == typeTimestamp {
				return typeInfo{category: typeDate}
			}
		}
		return typeInfo{category: typeNumeric}
	}
	if cat, ok := builtinReturnCategory(name); ok {
		return typeInfo{category: cat}
	}
	return typeInfo{category: typeUnknown}
}

// typeOf reads the cache, falling back to a fresh analysis.
func (e *emitter) typeOf(f *frame, expr plsql.Expression) typeInfo {
	if expr == nil {
		return typeInfo{}
	}
	if ti, ok := f.types[cacheKey(expr)]; ok {
		return ti
	}
	return e.analyzeExprTypes(f, expr)
}
