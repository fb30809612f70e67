package transformer

import (
	"fmt"
	"strings"

	"github.com/Sayiza/orapgsync/metadata"
	"github.com/Sayiza/orapgsync/plsql"
)

// mapTypeName lowers an Oracle datatype reference to its PostgreSQL
// spelling. %TYPE and %ROWTYPE survive: PL/pgSQL understands both.
func mapTypeName(tn *plsql.TypeName) string {
	if tn == nil {
		return ""
	}
	if tn.Attr != "" {
		parts := make([]string, len(tn.Parts))
		for i, p := range tn.Parts {
			parts[i] = pgIdent(p.Literal)
		}
		return strings.Join(parts, ".") + "%" + strings.ToUpper(tn.Attr)
	}

	base := strings.ToLower(tn.Parts[len(tn.Parts)-1].Literal)
	if len(tn.Parts) > 1 {
		// pkg.rec_type and schema.type references pass through lowered.
		parts := make([]string, len(tn.Parts))
		for i, p := range tn.Parts {
			parts[i] = pgIdent(p.Literal)
		}
		return strings.Join(parts, ".")
	}

	switch base {
	case "number":
		if tn.Precision >= 0 && tn.Scale >= 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", tn.Precision, tn.Scale)
		}
		if tn.Precision >= 0 {
			return fmt.Sprintf("NUMERIC(%d)", tn.Precision)
		}
		return "NUMERIC"
	case "float", "binary_double":
		return "DOUBLE PRECISION"
	case "binary_float":
		return "REAL"
	case "integer", "int", "smallint", "pls_integer", "binary_integer", "natural", "positive":
		return "INTEGER"
	case "varchar2", "nvarchar2", "varchar":
		if tn.Precision >= 0 {
			return fmt.Sprintf("VARCHAR(%d)", tn.Precision)
		}
		return "TEXT"
	case "char", "nchar":
		if tn.Precision >= 0 {
			return fmt.Sprintf("CHAR(%d)", tn.Precision)
		}
		return "CHAR"
	case "clob", "nclob", "long":
		return "TEXT"
	case "blob", "raw":
		return "BYTEA"
	case "date":
		// Oracle DATE carries a time component.
		return "TIMESTAMP"
	case "boolean":
		return "BOOLEAN"
	}
	if strings.HasPrefix(base, "timestamp") {
		return "TIMESTAMP"
	}
	return strings.ToUpper(base)
}

// predefined exception condition names that differ between the dialects.
var exceptionNames = map[string]string{
	"no_data_found":    "NO_DATA_FOUND",
	"too_many_rows":    "TOO_MANY_ROWS",
	"dup_val_on_index": "unique_violation",
	"zero_divide":      "division_by_zero",
	"invalid_number":   "invalid_text_representation",
	"others":           "OTHERS",
}

func mapExceptionName(name string) string {
	if mapped, ok := exceptionNames[name]; ok {
		return mapped
	}
	return name
}

// ---------------------------------------------------------------------------
// Statements

func (e *emitter) emitStmts(stmts []plsql.Statement) (string, error) {
	var out strings.Builder
	for _, st := range stmts {
		s, err := e.emit(st)
		if err != nil {
			return "", err
		}
		if s == "" {
			continue
		}
		out.WriteString(e.indentStr())
		out.WriteString(s)
		out.WriteString("\n")
	}
	return out.String(), nil
}

func emitSelectStmt(e *emitter, n plsql.Node) (string, error) {
	s, err := e.emit(n.(*plsql.SelectStmt).Query)
	if err != nil {
		return "", err
	}
	return s + ";", nil
}

func emitInsertStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.InsertStmt)
	table, err := e.emitTableRef(st.Table)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("INSERT INTO " + table)
	if len(st.Columns) > 0 {
		cols := make([]string, len(st.Columns))
		for i, c := range st.Columns {
			cols[i] = pgIdent(c.Literal)
		}
		b.WriteString(" (" + strings.Join(cols, ", ") + ")")
	}
	if st.Query != nil {
		q, err := e.emit(st.Query)
		if err != nil {
			return "", err
		}
		b.WriteString(" " + q)
	} else {
		vals := make([]string, len(st.Values))
		for i, v := range st.Values {
			s, err := e.emit(v)
			if err != nil {
				return "", err
			}
			vals[i] = s
		}
		b.WriteString(" VALUES (" + strings.Join(vals, ", ") + ")")
	}
	b.WriteString(";")
	return b.String(), nil
}

func emitUpdateStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.UpdateStmt)
	table, err := e.emitTableRef(st.Table)
	if err != nil {
		return "", err
	}
	var sets []string
	for _, set := range st.Sets {
		val, err := e.emit(set.Value)
		if err != nil {
			return "", err
		}
		sets = append(sets, pgIdent(set.Column.Parts[len(set.Column.Parts)-1].Literal)+" = "+val)
	}
	out := "UPDATE " + table + " SET " + strings.Join(sets, ", ")
	if st.Where != nil {
		w, err := e.emit(st.Where)
		if err != nil {
			return "", err
		}
		out += " WHERE " + w
	}
	return out + ";", nil
}

func emitDeleteStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.DeleteStmt)
	table, err := e.emitTableRef(st.Table)
	if err != nil {
		return "", err
	}
	out := "DELETE FROM " + table
	if st.Where != nil {
		w, err := e.emit(st.Where)
		if err != nil {
			return "", err
		}
		out += " WHERE " + w
	}
	return out + ";", nil
}

// emitAssignStmt handles ordinary assignments and package-variable writes,
// which become setter calls.
func emitAssignStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.AssignStmt)
	value, err := e.emit(st.Value)
	if err != nil {
		return "", err
	}

	if ref, ok := st.Target.(*plsql.ColumnRef); ok {
		// pkg.var := e  and, inside the owning body, var := e.
		if len(ref.Parts) == 2 {
			qualifier := ref.Qualifier()
			if e.pkg != nil && qualifier == e.pkg.name {
				if v, ok := e.pkg.variable(ref.Column()); ok {
					return e.packageVarSetter(v, value), nil
				}
			}
			for _, v := range e.meta.PackageVariables(e.schema, qualifier) {
				if v.Name == ref.Column() {
					return fmt.Sprintf("PERFORM %s.%s__set_%s(%s);", e.schema, qualifier, v.Name, value), nil
				}
			}
		}
		if len(ref.Parts) == 1 && e.pkg != nil {
			if _, isLocal := e.varTypes[ref.Column()]; !isLocal {
				if v, ok := e.pkg.variable(ref.Column()); ok {
					return e.packageVarSetter(v, value), nil
				}
			}
		}
	}

	target, err := e.emit(st.Target)
	if err != nil {
		return "", err
	}
	return target + " := " + value + ";", nil
}

func (e *emitter) packageVarSetter(v *metadata.PackageVariable, value string) string {
	return fmt.Sprintf("PERFORM %s.%s__set_%s(%s);", e.pkg.schema, e.pkg.name, v.Name, value)
}

func emitIfStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.IfStmt)
	cond, err := e.emit(st.Cond)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("IF " + cond + " THEN\n")
	e.indent++
	body, err := e.emitStmts(st.Then)
	if err != nil {
		return "", err
	}
	b.WriteString(body)
	e.indent--

	for _, arm := range st.Elsifs {
		c, err := e.emit(arm.Cond)
		if err != nil {
			return "", err
		}
		b.WriteString(e.indentStr() + "ELSIF " + c + " THEN\n")
		e.indent++
		body, err := e.emitStmts(arm.Stmts)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
		e.indent--
	}

	if st.Else != nil {
		b.WriteString(e.indentStr() + "ELSE\n")
		e.indent++
		body, err := e.emitStmts(st.Else)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
		e.indent--
	}

	b.WriteString(e.indentStr() + "END IF;")
	return b.String(), nil
}

func emitLoopStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.LoopStmt)
	return e.emitLoopBody("LOOP", st.Stmts)
}

func (e *emitter) emitLoopBody(header string, stmts []plsql.Statement) (string, error) {
	var b strings.Builder
	b.WriteString(header + "\n")
	e.indent++
	body, err := e.emitStmts(stmts)
	if err != nil {
		return "", err
	}
	b.WriteString(body)
	e.indent--
	b.WriteString(e.indentStr() + "END LOOP;")
	return b.String(), nil
}

func emitWhileStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.WhileStmt)
	cond, err := e.emit(st.Cond)
	if err != nil {
		return "", err
	}
	return e.emitLoopBody("WHILE "+cond+" LOOP", st.Stmts)
}

func emitForStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.ForStmt)
	v := pgIdent(st.Var.Literal)

	switch {
	case st.Query != nil:
		q, err := e.emit(st.Query)
		if err != nil {
			return "", err
		}
		return e.emitLoopBody("FOR "+v+" IN "+q+" LOOP", st.Stmts)
	case st.Cursor != nil:
		// Explicit cursors keep their name; the declaration emits the
		// cursor in PL/pgSQL form.
		return e.emitLoopBody("FOR "+v+" IN "+pgIdent(st.Cursor.Literal)+" LOOP", st.Stmts)
	default:
		lo, err := e.emit(st.Lo)
		if err != nil {
			return "", err
		}
		hi, err := e.emit(st.Hi)
		if err != nil {
			return "", err
		}
		header := "FOR " + v + " IN "
		if st.Reverse {
			header += "REVERSE "
		}
		header += lo + ".." + hi + " LOOP"
		return e.emitLoopBody(header, st.Stmts)
	}
}

func emitExitStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.ExitStmt)
	if st.When != nil {
		cond, err := e.emit(st.When)
		if err != nil {
			return "", err
		}
		return "EXIT WHEN " + cond + ";", nil
	}
	return "EXIT;", nil
}

func emitContinueStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.ContinueStmt)
	if st.When != nil {
		cond, err := e.emit(st.When)
		if err != nil {
			return "", err
		}
		return "CONTINUE WHEN " + cond + ";", nil
	}
	return "CONTINUE;", nil
}

func emitReturnStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.ReturnStmt)
	if st.Value != nil {
		v, err := e.emit(st.Value)
		if err != nil {
			return "", err
		}
		return "RETURN " + v + ";", nil
	}
	return "RETURN;", nil
}

func emitNullStmt(e *emitter, n plsql.Node) (string, error) {
	return "NULL;", nil
}

func emitRaiseStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.RaiseStmt)
	if len(st.Name) == 0 {
		return "RAISE;", nil
	}
	name := mapExceptionName(plsql.Ident(st.Name[len(st.Name)-1]))
	return "RAISE " + name + ";", nil
}

// emitCallStmt lowers call statements to PERFORM, flattening package
// members to schema.pkg__proc.
func emitCallStmt(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.CallStmt)
	call, err := e.emit(st.Call)
	if err != nil {
		return "", err
	}
	return "PERFORM " + call + ";", nil
}

func emitDeclareBlock(e *emitter, n plsql.Node) (string, error) {
	st := n.(*plsql.DeclareBlock)
	var b strings.Builder
	if len(st.Decls) > 0 {
		b.WriteString("DECLARE\n")
		e.indent++
		decls, err := e.emitDeclarations(st.Decls)
		if err != nil {
			return "", err
		}
		b.WriteString(decls)
		e.indent--
		b.WriteString(e.indentStr())
	}
	block, err := e.emit(st.Block)
	if err != nil {
		return "", err
	}
	b.WriteString(block)
	return b.String(), nil
}

func emitBlock(e *emitter, n plsql.Node) (string, error) {
	blk := n.(*plsql.Block)
	var b strings.Builder
	b.WriteString("BEGIN\n")
	e.indent++
	body, err := e.emitStmts(blk.Stmts)
	if err != nil {
		return "", err
	}
	b.WriteString(body)
	e.indent--

	if len(blk.Handlers) > 0 {
		b.WriteString(e.indentStr() + "EXCEPTION\n")
		e.indent++
		for _, h := range blk.Handlers {
			names := make([]string, len(h.Names))
			for i, name := range h.Names {
				names[i] = mapExceptionName(name)
			}
			b.WriteString(e.indentStr() + "WHEN " + strings.Join(names, " OR ") + " THEN\n")
			e.indent++
			body, err := e.emitStmts(h.Stmts)
			if err != nil {
				return "", err
			}
			b.WriteString(body)
			e.indent--
		}
		e.indent--
	}

	b.WriteString(e.indentStr() + "END;")
	return b.String(), nil
}

// ---------------------------------------------------------------------------
// Subprograms

// emitSubprogram produces the CREATE OR REPLACE FUNCTION DDL for a
// standalone unit. Oracle procedures become functions returning void so
// call sites can lower to PERFORM. nameOverride, when non-empty, replaces
// the qualified output name (package flattening uses it).
func emitSubprogram(e *emitter, n plsql.Node) (string, error) {
	return e.emitSubprogramNamed(n.(*plsql.Subprogram), "")
}

func (e *emitter) emitSubprogramNamed(sub *plsql.Subprogram, nameOverride string) (string, error) {
	for _, p := range sub.Params {
		if p.Mode != plsql.ModeIn {
			return "", ErrUnsupportedConstruct.New("OUT parameter " + plsql.Ident(p.Name) + " in " + sub.SimpleName())
		}
	}

	name := nameOverride
	if name == "" {
		if len(sub.Name) == 2 {
			name = plsql.Ident(sub.Name[0]) + "." + plsql.Ident(sub.Name[1])
		} else {
			name = e.schema + "." + sub.SimpleName()
		}
	}

	// Record parameter and local variable types: they drive object-type
	// method resolution and shadow package variables.
	e.varTypes = make(map[string]string)
	for _, p := range sub.Params {
		if p.Type != nil {
			e.varTypes[plsql.Ident(p.Name)] = p.Type.Path()
		}
	}
	for _, d := range sub.Decls {
		if vd, ok := d.(*plsql.VarDecl); ok && vd.Type != nil {
			e.varTypes[plsql.Ident(vd.Name)] = vd.Type.Path()
		}
	}

	var b strings.Builder
	b.WriteString("CREATE OR REPLACE FUNCTION " + name + "(")
	for i, p := range sub.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(p.Name.Literal) + " " + mapTypeName(p.Type))
		if p.Default != nil {
			def, err := e.emit(p.Default)
			if err != nil {
				return "", err
			}
			b.WriteString(" DEFAULT " + def)
		}
	}
	b.WriteString(") RETURNS ")
	if sub.Procedure {
		b.WriteString("VOID")
	} else {
		b.WriteString(mapTypeName(sub.ReturnType))
	}
	b.WriteString(" AS $$\n")

	if len(sub.Decls) > 0 {
		b.WriteString("DECLARE\n")
		e.indent = 1
		decls, err := e.emitDeclarations(sub.Decls)
		if err != nil {
			return "", err
		}
		b.WriteString(decls)
		e.indent = 0
	}

	body, err := e.emit(sub.Body)
	if err != nil {
		return "", err
	}
	b.WriteString(body)
	b.WriteString("\n$$ LANGUAGE plpgsql;")
	return b.String(), nil
}

func (e *emitter) emitDeclarations(decls []plsql.Declaration) (string, error) {
	var b strings.Builder
	for _, d := range decls {
		switch decl := d.(type) {
		case *plsql.VarDecl:
			b.WriteString(e.indentStr() + pgIdent(decl.Name.Literal) + " ")
			if decl.Constant {
				b.WriteString("CONSTANT ")
			}
			b.WriteString(mapTypeName(decl.Type))
			if decl.Default != nil {
				def, err := e.emit(decl.Default)
				if err != nil {
					return "", err
				}
				b.WriteString(" := " + def)
			}
			b.WriteString(";\n")
		case *plsql.CursorDecl:
			q, err := e.emit(decl.Query)
			if err != nil {
				return "", err
			}
			b.WriteString(e.indentStr() + pgIdent(decl.Name.Literal) + " CURSOR FOR " + q + ";\n")
		case *plsql.TypeDecl:
			// PL/pgSQL has no local composite type declarations; the
			// record shape is recovered through RECORD variables.
			continue
		case *plsql.Subprogram:
			return "", ErrUnsupportedConstruct.New("nested subprogram " + decl.SimpleName())
		}
	}
	return b.String(), nil
}
