package transformer

import (
	"strings"

	"github.com/Sayiza/orapgsync/plsql"
)

// emitHierarchical rewrites a CONNECT BY query block into a recursive CTE.
// The anchor selects the START WITH rows with a level column (and a path
// array when SYS_CONNECT_BY_PATH is used); the recursive step joins the
// base table against the CTE on the CONNECT BY predicate with PRIOR
// rewritten to the CTE side.
func (e *emitter) emitHierarchical(qb *plsql.QueryBlock) (string, error) {
	if len(qb.From) != 1 || qb.From[0].Subquery != nil {
		return "", ErrUnsupportedConstruct.New("CONNECT BY over multiple tables")
	}

	var out string
	err := e.stack.withFrame(func(f *frame) error {
		e.registerFromTables(f, qb)

		table, err := e.emitTableRef(qb.From[0])
		if err != nil {
			return err
		}
		// The recursive step addresses the base table by its alias when
		// present, else by its name.
		qual := qb.From[0].Key()
		if qual == "" {
			return ErrUnsupportedConstruct.New("CONNECT BY over an unnamed table")
		}

		if qb.NoCycle {
			e.warnings = append(e.warnings, TransformError{
				Err:     ErrUnsupportedConstruct.New("NOCYCLE: recursive CTE emitted without cycle guards"),
				SQL:     e.rawText(qb),
				Warning: true,
			})
		}

		// Collect base columns: plain column references in the select
		// list, the path source column, and the PRIOR join columns.
		var baseCols []string
		seen := make(map[string]bool)
		addBase := func(col string) {
			if col != "" && !seen[col] {
				seen[col] = true
				baseCols = append(baseCols, col)
			}
		}

		pathCol := ""
		pathSep := ""
		usesPath := false
		for _, item := range qb.Items {
			switch x := item.Expr.(type) {
			case *plsql.ColumnRef:
				if len(x.Parts) == 1 && x.Column() != "level" {
					addBase(x.Column())
				}
			case *plsql.FunctionCall:
				if x.Path() == "sys_connect_by_path" && len(x.Args) == 2 {
					ref, okRef := x.Args[0].(*plsql.ColumnRef)
					sep, okSep := x.Args[1].(*plsql.StringLiteral)
					if !okRef || !okSep {
						return ErrUnsupportedConstruct.New("SYS_CONNECT_BY_PATH requires a column and a literal separator")
					}
					usesPath = true
					pathCol = ref.Column()
					pathSep = sep.Tok.Literal
					addBase(pathCol)
				}
			}
		}
		for _, col := range priorColumns(qb.ConnectBy) {
			addBase(col)
		}
		if len(baseCols) == 0 {
			return ErrUnsupportedConstruct.New("hierarchical query selects no plain columns")
		}

		var b strings.Builder
		b.WriteString("WITH RECURSIVE rec AS (SELECT ")
		b.WriteString(strings.Join(baseCols, ", "))
		b.WriteString(", 1 AS level")
		if usesPath {
			b.WriteString(", ARRAY[" + pathCol + "] AS path")
		}
		b.WriteString(" FROM " + table)
		if qb.StartWith != nil {
			cond, err := e.emit(qb.StartWith)
			if err != nil {
				return err
			}
			b.WriteString(" WHERE " + cond)
		}

		b.WriteString(" UNION ALL SELECT ")
		qualified := make([]string, len(baseCols))
		for i, col := range baseCols {
			qualified[i] = qual + "." + col
		}
		b.WriteString(strings.Join(qualified, ", "))
		b.WriteString(", rec.level + 1")
		if usesPath {
			b.WriteString(", rec.path || " + qual + "." + pathCol)
		}
		joinCond, err := e.connectCond(qb.ConnectBy, qual)
		if err != nil {
			return err
		}
		b.WriteString(" FROM " + table + " JOIN rec ON " + joinCond)
		b.WriteString(")")

		// Outer select projects the original items against the CTE.
		var items []string
		for _, item := range qb.Items {
			s, err := e.hierarchicalItem(item, pathSep)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
		b.WriteString(" SELECT " + strings.Join(items, ", ") + " FROM rec")

		if qb.Where != nil {
			cond, err := e.emit(qb.Where)
			if err != nil {
				return err
			}
			b.WriteString(" WHERE " + cond)
		}
		if len(qb.OrderBy) > 0 {
			s, err := e.emitOrderBy(qb.OrderBy)
			if err != nil {
				return err
			}
			b.WriteString(" ORDER BY " + s)
		}

		out = b.String()
		return nil
	})
	return out, err
}

func (e *emitter) hierarchicalItem(item plsql.SelectItem, pathSep string) (string, error) {
	var s string
	switch x := item.Expr.(type) {
	case *plsql.ColumnRef:
		if len(x.Parts) == 1 && x.Column() == "level" {
			s = "level"
		} else {
			s = x.Column()
		}
	case *plsql.FunctionCall:
		if x.Path() == "sys_connect_by_path" {
			s = "array_to_string(path," + pathSep + ")"
		} else {
			var err error
			s, err = e.emit(x)
			if err != nil {
				return "", err
			}
		}
	default:
		var err error
		s, err = e.emit(item.Expr)
		if err != nil {
			return "", err
		}
	}
	if item.Alias != nil {
		s += " AS " + pgIdent(item.Alias.Literal)
	}
	return s, nil
}

// priorColumns lists the columns under PRIOR in the CONNECT BY predicate;
// they must be projected through the CTE for the recursive join.
func priorColumns(cond plsql.Expression) []string {
	var cols []string
	walkExpr(cond, func(n plsql.Expression) {
		if pe, ok := n.(*plsql.PriorExpr); ok {
			if ref, ok := pe.Operand.(*plsql.ColumnRef); ok {
				cols = append(cols, ref.Column())
			}
		}
	})
	return cols
}

// connectCond rewrites the CONNECT BY predicate for the recursive join:
// PRIOR x references the CTE side (rec.x); plain columns the table side.
func (e *emitter) connectCond(cond plsql.Expression, qual string) (string, error) {
	switch x := cond.(type) {
	case *plsql.BinaryExpr:
		left, err := e.connectCond(x.Left, qual)
		if err != nil {
			return "", err
		}
		right, err := e.connectCond(x.Right, qual)
		if err != nil {
			return "", err
		}
		op := x.Op.Literal
		switch x.Op.Type {
		case plsql.NEQ:
			op = "<>"
		case plsql.AND:
			op = "AND"
		case plsql.OR:
			op = "OR"
		}
		return left + " " + op + " " + right, nil
	case *plsql.ParenExpr:
		inner, err := e.connectCond(x.Inner, qual)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *plsql.PriorExpr:
		ref, ok := x.Operand.(*plsql.ColumnRef)
		if !ok {
			return "", ErrUnsupportedConstruct.New("PRIOR over a non-column expression")
		}
		return "rec." + ref.Column(), nil
	case *plsql.ColumnRef:
		return qual + "." + x.Column(), nil
	default:
		return e.emit(cond)
	}
}
