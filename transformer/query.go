package transformer

import (
	"strings"

	"github.com/Sayiza/orapgsync/plsql"
)

func emitQueryExpr(e *emitter, n plsql.Node) (string, error) {
	q := n.(*plsql.QueryExpr)
	out, err := e.emit(q.First)
	if err != nil {
		return "", err
	}
	for _, part := range q.Compound {
		block, err := e.emit(part.Block)
		if err != nil {
			return "", err
		}
		var op string
		switch part.Op {
		case "union":
			op = "UNION"
		case "union all":
			op = "UNION ALL"
		case "minus":
			op = "EXCEPT"
		case "intersect":
			op = "INTERSECT"
		}
		out += " " + op + " " + block
	}
	return out, nil
}

// emitQueryBlock is the spine of the transform: analyze under a fresh
// context frame, emit FROM before the select list so aliases resolve,
// assemble the clauses, then pop the frame on every exit path.
func emitQueryBlock(e *emitter, n plsql.Node) (string, error) {
	qb := n.(*plsql.QueryBlock)

	// Hierarchical queries are rewritten wholesale.
	if qb.ConnectBy != nil {
		return e.emitHierarchical(qb)
	}

	var out string
	err := e.stack.withFrame(func(f *frame) error {
		fromDual := isDualOnly(qb)

		e.registerFromTables(f, qb)
		if err := e.analyzeOuterJoins(f, qb.Where); err != nil {
			return err
		}
		e.analyzeRownum(f)
		for _, item := range qb.Items {
			e.analyzeExprTypes(f, item.Expr)
		}
		for _, cond := range f.outer.kept {
			e.analyzeExprTypes(f, cond)
		}

		// FROM first: select-list expressions name-resolve against the
		// aliases registered here.
		var fromClause string
		if !fromDual && len(qb.From) > 0 {
			var err error
			fromClause, err = e.emitFromClause(f)
			if err != nil {
				return err
			}
		}

		items, err := e.emitSelectItems(qb)
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString("SELECT ")
		if qb.Distinct {
			b.WriteString("DISTINCT ")
		}
		b.WriteString(items)

		if len(qb.Into) > 0 {
			var targets []string
			for _, t := range qb.Into {
				s, err := e.emit(t)
				if err != nil {
					return err
				}
				targets = append(targets, s)
			}
			b.WriteString(" INTO " + strings.Join(targets, ", "))
		}

		if fromClause != "" {
			b.WriteString(" FROM " + fromClause)
		}

		if qb.Where != nil && len(f.outer.kept) > 0 {
			var conds []string
			for _, cond := range f.outer.kept {
				s, err := e.emit(cond)
				if err != nil {
					return err
				}
				conds = append(conds, s)
			}
			b.WriteString(" WHERE " + strings.Join(conds, " AND "))
		}

		if len(qb.GroupBy) > 0 {
			var parts []string
			for _, g := range qb.GroupBy {
				s, err := e.emit(g)
				if err != nil {
					return err
				}
				parts = append(parts, s)
			}
			b.WriteString(" GROUP BY " + strings.Join(parts, ", "))
			if qb.Having != nil {
				s, err := e.emit(qb.Having)
				if err != nil {
					return err
				}
				b.WriteString(" HAVING " + s)
			}
		}

		if len(qb.OrderBy) > 0 {
			s, err := e.emitOrderBy(qb.OrderBy)
			if err != nil {
				return err
			}
			b.WriteString(" ORDER BY " + s)
		}

		switch f.rownum.kind {
		case rownumSimpleLimit:
			b.WriteString(" LIMIT " + f.rownum.n)
		case rownumRange:
			// ROWNUM counts output rows, so a range starting above one
			// never matches in Oracle either.
			if f.rownum.lo == "1" || strings.HasPrefix(f.rownum.lo, "0") {
				b.WriteString(" LIMIT " + f.rownum.hi)
			} else {
				b.WriteString(" LIMIT 0")
			}
		}

		out = b.String()
		return nil
	})
	return out, err
}

// isDualOnly reports whether the single FROM entry is DUAL or SYS.DUAL;
// the FROM clause is then suppressed in output.
func isDualOnly(qb *plsql.QueryBlock) bool {
	if len(qb.From) != 1 || qb.From[0].Subquery != nil {
		return false
	}
	ref := qb.From[0]
	if plsql.Ident(ref.Name) != "dual" {
		return false
	}
	return ref.Schema == nil || plsql.Ident(*ref.Schema) == "sys"
}

func (e *emitter) emitSelectItems(qb *plsql.QueryBlock) (string, error) {
	var parts []string
	for _, item := range qb.Items {
		s, err := e.emit(item.Expr)
		if err != nil {
			return "", err
		}
		if item.Alias != nil {
			s += " " + pgIdent(item.Alias.Literal)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

func (e *emitter) emitOrderBy(items []plsql.OrderItem) (string, error) {
	var parts []string
	for _, item := range items {
		s, err := e.emit(item.Expr)
		if err != nil {
			return "", err
		}
		if item.Desc {
			s += " DESC"
		}
		if item.NullsFirst {
			s += " NULLS FIRST"
		}
		if item.NullsLast {
			s += " NULLS LAST"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

// emitFromClause assembles the FROM list. With outer joins present the
// comma list becomes ANSI JOIN syntax anchored at the first registered
// table; without them the Oracle comma form is preserved.
func (e *emitter) emitFromClause(f *frame) (string, error) {
	if len(f.outer.joins) == 0 {
		var parts []string
		for _, entry := range f.outer.tables {
			s, err := e.emitTableRef(entry.ref)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil
	}

	placed := make(map[string]bool)
	first := f.outer.tables[0]
	out, err := e.emitTableRef(first.ref)
	if err != nil {
		return "", err
	}
	placed[first.key] = true

	for _, join := range f.outer.joins {
		var newKey string
		var kw string
		switch {
		case placed[join.anchorKey] && placed[join.otherKey]:
			// Both sides already placed: the conditions go back to WHERE.
			f.outer.kept = append(f.outer.kept, join.conds...)
			continue
		case placed[join.anchorKey]:
			// The optional side joins in.
			newKey = join.otherKey
			kw = "LEFT JOIN"
		case placed[join.otherKey]:
			// The required side joins in.
			newKey = join.anchorKey
			kw = "RIGHT JOIN"
		default:
			return "", ErrUnsupportedConstruct.New("outer join chain does not connect to the leading table")
		}

		entry, ok := f.outer.byKey[newKey]
		if !ok {
			return "", ErrUnsupportedConstruct.New("outer join references unknown table " + newKey)
		}
		ref, err := e.emitTableRef(entry.ref)
		if err != nil {
			return "", err
		}
		var conds []string
		for _, cond := range join.conds {
			s, err := e.emit(cond)
			if err != nil {
				return "", err
			}
			conds = append(conds, s)
		}
		out += " " + kw + " " + ref + " ON (" + strings.Join(conds, " AND ") + ")"
		placed[newKey] = true
	}

	// Tables participating in no join are cross joined.
	for _, entry := range f.outer.tables {
		if placed[entry.key] {
			continue
		}
		s, err := e.emitTableRef(entry.ref)
		if err != nil {
			return "", err
		}
		out += " CROSS JOIN " + s
	}

	return out, nil
}

// emitTableRef emits one FROM entry, applying synonym substitution to
// unqualified table names.
func (e *emitter) emitTableRef(ref *plsql.TableRef) (string, error) {
	var out string
	switch {
	case ref.Subquery != nil:
		sub, err := e.emit(ref.Subquery)
		if err != nil {
			return "", err
		}
		out = "(" + sub + ")"
	case ref.Schema != nil:
		out = pgIdent(ref.Schema.Literal) + "." + pgIdent(ref.Name.Literal)
	default:
		name := plsql.Ident(ref.Name)
		targetSchema, targetName := e.meta.ResolveSynonym(e.schema, name)
		if targetSchema != e.schema || targetName != name {
			out = targetSchema + "." + targetName
		} else {
			out = pgIdent(ref.Name.Literal)
		}
	}
	if ref.DBLink != nil {
		// Database links have no PostgreSQL equivalent here; the suffix
		// passes through for the operator to resolve.
		out += "@" + pgIdent(ref.DBLink.Literal)
	}
	if ref.Alias != nil {
		out += " " + pgIdent(ref.Alias.Literal)
	}
	return out, nil
}
