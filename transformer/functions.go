package transformer

import (
	"fmt"
	"strings"

	"github.com/Sayiza/orapgsync/plsql"
)

// emitFunctionCall rewrites Oracle builtins and resolves qualified call
// targets against the package-function and type-method indices.
func emitFunctionCall(e *emitter, n plsql.Node) (string, error) {
	call := n.(*plsql.FunctionCall)

	if len(call.Name) == 1 {
		return e.emitBuiltinOrPlainCall(call)
	}
	return e.emitQualifiedCall(call)
}

func (e *emitter) emitArgs(call *plsql.FunctionCall) ([]string, error) {
	args := make([]string, 0, len(call.Args))
	for _, a := range call.Args {
		s, err := e.emit(a)
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}
	return args, nil
}

func (e *emitter) emitBuiltinOrPlainCall(call *plsql.FunctionCall) (string, error) {
	name := call.Path()

	switch name {
	case "nvl":
		args, err := e.emitArgs(call)
		if err != nil {
			return "", err
		}
		return "COALESCE(" + strings.Join(args, ", ") + ")", nil

	case "nvl2":
		args, err := e.emitArgs(call)
		if err != nil {
			return "", err
		}
		if len(args) != 3 {
			return "", ErrUnsupportedConstruct.New("NVL2 requires three arguments")
		}
		return fmt.Sprintf("CASE WHEN %s IS NOT NULL THEN %s ELSE %s END", args[0], args[1], args[2]), nil

	case "decode":
		return e.emitDecode(call)

	case "instr":
		args, err := e.emitArgs(call)
		if err != nil {
			return "", err
		}
		if len(args) == 2 {
			return fmt.Sprintf("POSITION(%s IN %s)", args[1], args[0]), nil
		}
		// Three- and four-argument INSTR has no direct POSITION form.
		return "INSTR(" + strings.Join(args, ", ") + ")", nil

	case "to_number":
		args, err := e.emitArgs(call)
		if err != nil {
			return "", err
		}
		if len(args) == 1 {
			return castExpr(call.Args[0], args[0], "NUMERIC"), nil
		}
		return "TO_NUMBER(" + strings.Join(args, ", ") + ")", nil

	case "trunc":
		args, err := e.emitArgs(call)
		if err != nil {
			return "", err
		}
		if len(call.Args) == 1 {
			if f := e.stack.top(); f != nil {
				arg := e.typeOf(f, call.Args[0])
				if arg.category == typeDate || arg.category == typeTimestamp {
					return fmt.Sprintf("DATE_TRUNC('day', %s)::DATE", args[0]), nil
				}
			}
		}
		return "TRUNC(" + strings.Join(args, ", ") + ")", nil

	case "sysdate", "systimestamp":
		return "CURRENT_TIMESTAMP", nil

	case "count":
		if call.Star {
			return "COUNT(*)", nil
		}
	}

	// Everything else passes through with transformed arguments; TO_CHAR
	// lands here (PostgreSQL accepts the common format codes).
	if call.Star {
		return strings.ToUpper(name) + "(*)", nil
	}
	args, err := e.emitArgs(call)
	if err != nil {
		return "", err
	}
	prefix := ""
	if call.Distinct {
		prefix = "DISTINCT "
	}

	// Unqualified calls inside a package body resolve to siblings first.
	if e.pkg != nil {
		if _, ok := e.meta.PackageFunction(e.pkg.schema, e.pkg.name, name); ok {
			return fmt.Sprintf("%s.%s__%s(%s)", e.pkg.schema, e.pkg.name, name, prefix+strings.Join(args, ", ")), nil
		}
	}

	if isKnownBuiltin(name) {
		return strings.ToUpper(name) + "(" + prefix + strings.Join(args, ", ") + ")", nil
	}
	return pgIdent(call.Name[0].Literal) + "(" + prefix + strings.Join(args, ", ") + ")", nil
}

// castExpr appends a PostgreSQL cast, parenthesizing compound operands.
func castExpr(arg plsql.Expression, emitted, pgType string) string {
	switch arg.(type) {
	case *plsql.ColumnRef, *plsql.NumberLiteral, *plsql.StringLiteral, *plsql.ParenExpr, *plsql.FunctionCall, *plsql.BindRef:
		return emitted + "::" + pgType
	}
	return "(" + emitted + ")::" + pgType
}

func isKnownBuiltin(name string) bool {
	_, ok := builtinReturnCategory(name)
	if ok {
		return true
	}
	switch name {
	case "coalesce", "greatest", "least", "min", "max", "round", "nullif", "mod", "extract":
		return true
	}
	return false
}

// emitDecode lowers DECODE(e, k1, v1, ..., default) to a CASE expression.
func (e *emitter) emitDecode(call *plsql.FunctionCall) (string, error) {
	if len(call.Args) < 3 {
		return "", ErrUnsupportedConstruct.New("DECODE requires at least three arguments")
	}
	args, err := e.emitArgs(call)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString("CASE " + args[0])
	rest := args[1:]
	for len(rest) >= 2 {
		out.WriteString(" WHEN " + rest[0] + " THEN " + rest[1])
		rest = rest[2:]
	}
	if len(rest) == 1 {
		out.WriteString(" ELSE " + rest[0])
	}
	out.WriteString(" END")
	return out.String(), nil
}

// emitQualifiedCall resolves pkg.fn, schema.pkg.fn and var.method call
// shapes. Package functions flatten to schema.pkg__fn; object-type member
// methods to schema.type__method with the value as first argument.
func (e *emitter) emitQualifiedCall(call *plsql.FunctionCall) (string, error) {
	args, err := e.emitArgs(call)
	if err != nil {
		return "", err
	}

	if len(call.Name) == 2 {
		qualifier := plsql.Ident(call.Name[0])
		fn := plsql.Ident(call.Name[1])

		_, isPkgFn := e.meta.PackageFunction(e.schema, qualifier, fn)

		// var.method where var is a local variable of an object type.
		if typ, isVar := e.varTypes[qualifier]; isVar {
			if e.meta.HasType(e.schema, typ) {
				if _, ok := e.meta.TypeMethod(e.schema, typ, fn); !ok {
					return "", ErrMetadataMissing.New(fmt.Sprintf("method %s of type %s.%s", fn, e.schema, typ))
				}
			}
			if m, ok := e.meta.TypeMethod(e.schema, typ, fn); ok {
				if isPkgFn {
					return "", ErrAmbiguousReference.New(call.Path() + " matches both a package function and a type method")
				}
				if m.Static {
					return fmt.Sprintf("%s.%s__%s(%s)", e.schema, typ, fn, strings.Join(args, ", ")), nil
				}
				withSelf := append([]string{pgIdent(call.Name[0].Literal)}, args...)
				return fmt.Sprintf("%s.%s__%s(%s)", e.schema, typ, fn, strings.Join(withSelf, ", ")), nil
			}
		}

		if isPkgFn {
			return fmt.Sprintf("%s.%s__%s(%s)", e.schema, qualifier, fn, strings.Join(args, ", ")), nil
		}

		// schema.fn standalone calls pass through.
		return fmt.Sprintf("%s.%s(%s)", pgIdent(call.Name[0].Literal), pgIdent(call.Name[1].Literal), strings.Join(args, ", ")), nil
	}

	if len(call.Name) == 3 {
		schema := plsql.Ident(call.Name[0])
		pkg := plsql.Ident(call.Name[1])
		fn := plsql.Ident(call.Name[2])
		if _, ok := e.meta.PackageFunction(schema, pkg, fn); ok {
			return fmt.Sprintf("%s.%s__%s(%s)", schema, pkg, fn, strings.Join(args, ", ")), nil
		}
	}

	parts := make([]string, len(call.Name))
	for i, p := range call.Name {
		parts[i] = pgIdent(p.Literal)
	}
	return strings.Join(parts, ".") + "(" + strings.Join(args, ", ") + ")", nil
}
