package transformer

import (
	"github.com/Sayiza/orapgsync/plsql"
	"github.com/shopspring/decimal"
)

// The analysis visitors run before any emission for a query block: they
// walk the tree without mutating it and populate the frame pushed for the
// block. Emit happens strictly afterwards.

// registerFromTables binds every FROM entry into the frame's alias scope
// and the outer-join context, resolving synonyms against the metadata
// index.
func (e *emitter) registerFromTables(f *frame, qb *plsql.QueryBlock) {
	for _, ref := range qb.From {
		f.outer.register(ref)
		key := ref.Key()
		if key == "" {
			continue
		}
		binding := tableBinding{}
		if ref.Subquery == nil {
			schema := e.schema
			if ref.Schema != nil {
				schema = plsql.Ident(*ref.Schema)
			}
			name := plsql.Ident(ref.Name)
			if ref.Schema == nil {
				schema, name = e.meta.ResolveSynonym(schema, name)
			}
			binding.schema = schema
			binding.name = name
			if t, ok := e.meta.Table(schema, name); ok {
				binding.table = t
			}
		}
		f.aliases[key] = binding
	}
}

// analyzeOuterJoins walks the WHERE AND-chain looking for (+) markers and
// splits conditions into joins and kept conditions.
func (e *emitter) analyzeOuterJoins(f *frame, where plsql.Expression) error {
	if where == nil {
		return nil
	}
	for _, cond := range splitAndChain(where) {
		if err := e.classifyCondition(f, cond); err != nil {
			return err
		}
	}
	return nil
}

// splitAndChain flattens a top-level AND chain; OR-combined subtrees stay
// whole so they are kept (and later transformed) as units.
func splitAndChain(expr plsql.Expression) []plsql.Expression {
	if be, ok := expr.(*plsql.BinaryExpr); ok && be.Op.Type == plsql.AND {
		return append(splitAndChain(be.Left), splitAndChain(be.Right)...)
	}
	return []plsql.Expression{expr}
}

func (e *emitter) classifyCondition(f *frame, cond plsql.Expression) error {
	if !containsOuterJoinMarker(cond) {
		f.outer.kept = append(f.outer.kept, cond)
		return nil
	}

	be, ok := stripParens(cond).(*plsql.BinaryExpr)
	if !ok || be.Op.Type != plsql.EQ {
		// (+) inside IN/BETWEEN/LIKE, OR subtrees, or with any operator
		// other than equality.
		return ErrUnsupportedConstruct.New("(+) outer join marker requires a simple equality: " + e.rawText(cond))
	}
	if containsSubquery(be.Left) || containsSubquery(be.Right) {
		return ErrUnsupportedConstruct.New("(+) combined with a subquery: " + e.rawText(cond))
	}

	leftRef := outerMarkedRef(be.Left)
	rightRef := outerMarkedRef(be.Right)
	if leftRef != nil && rightRef != nil {
		return ErrUnsupportedConstruct.New("(+) on both sides: " + e.rawText(cond))
	}

	leftKey := sideTableKey(be.Left)
	rightKey := sideTableKey(be.Right)
	if leftKey == "" || rightKey == "" {
		return ErrUnsupportedConstruct.New("cannot derive table for (+) condition: " + e.rawText(cond))
	}

	if rightRef != nil {
		// marker on the right: LEFT JOIN from the left table to the right
		f.outer.addJoin(leftKey, rightKey, joinLeft, cond)
	} else {
		f.outer.addJoin(rightKey, leftKey, joinRight, cond)
	}
	return nil
}

func stripParens(expr plsql.Expression) plsql.Expression {
	for {
		pe, ok := expr.(*plsql.ParenExpr)
		if !ok {
			return expr
		}
		expr = pe.Inner
	}
}

func containsOuterJoinMarker(expr plsql.Expression) bool {
	found := false
	walkExpr(expr, func(n plsql.Expression) {
		if ref, ok := n.(*plsql.ColumnRef); ok && ref.OuterJoin {
			found = true
		}
	})
	return found
}

func containsSubquery(expr plsql.Expression) bool {
	found := false
	walkExpr(expr, func(n plsql.Expression) {
		switch n.(type) {
		case *plsql.SubqueryExpr, *plsql.ExistsExpr:
			found = true
		}
	})
	return found
}

// outerMarkedRef returns the (+)-marked column reference on one side of a
// condition, if any.
func outerMarkedRef(expr plsql.Expression) *plsql.ColumnRef {
	var marked *plsql.ColumnRef
	walkExpr(expr, func(n plsql.Expression) {
		if ref, ok := n.(*plsql.ColumnRef); ok && ref.OuterJoin {
			marked = ref
		}
	})
	return marked
}

// sideTableKey derives the table key from the first dot-qualifier found on
// one side of a join condition.
func sideTableKey(expr plsql.Expression) string {
	key := ""
	walkExpr(expr, func(n plsql.Expression) {
		if key != "" {
			return
		}
		if ref, ok := n.(*plsql.ColumnRef); ok {
			if q := ref.Qualifier(); q != "" {
				key = q
			}
		}
	})
	return key
}

// walkExpr applies fn to expr and every nested expression.
func walkExpr(expr plsql.Expression, fn func(plsql.Expression)) {
	if expr == nil {
		return
	}
	fn(expr)
	switch x := expr.(type) {
	case *plsql.ParenExpr:
		walkExpr(x.Inner, fn)
	case *plsql.PrefixExpr:
		walkExpr(x.Operand, fn)
	case *plsql.PriorExpr:
		walkExpr(x.Operand, fn)
	case *plsql.BinaryExpr:
		walkExpr(x.Left, fn)
		walkExpr(x.Right, fn)
	case *plsql.IsNullExpr:
		walkExpr(x.Operand, fn)
	case *plsql.InExpr:
		walkExpr(x.Operand, fn)
		for _, item := range x.List {
			walkExpr(item, fn)
		}
	case *plsql.BetweenExpr:
		walkExpr(x.Operand, fn)
		walkExpr(x.Lo, fn)
		walkExpr(x.Hi, fn)
	case *plsql.LikeExpr:
		walkExpr(x.Operand, fn)
		walkExpr(x.Pattern, fn)
		walkExpr(x.Escape, fn)
	case *plsql.FunctionCall:
		for _, a := range x.Args {
			walkExpr(a, fn)
		}
	case *plsql.CaseExpr:
		walkExpr(x.Operand, fn)
		for _, w := range x.Whens {
			walkExpr(w.When, fn)
			walkExpr(w.Then, fn)
		}
		walkExpr(x.Else, fn)
	}
}

// analyzeRownum recognizes the ROWNUM shapes mappable to LIMIT in the kept
// AND-chain and suppresses the matched conditions. Any other ROWNUM use
// disables the optimization and every condition passes through unchanged.
func (e *emitter) analyzeRownum(f *frame) {
	var kept []plsql.Expression
	ctx := &rownumContext{}

	for _, cond := range f.outer.kept {
		if !mentionsRownum(cond) {
			kept = append(kept, cond)
			continue
		}
		if limit, ok := recognizeRownumLimit(cond); ok && ctx.kind == rownumNone {
			ctx.kind = rownumSimpleLimit
			ctx.n = limit
			continue
		}
		if lo, hi, ok := recognizeRownumRange(cond); ok && ctx.kind == rownumNone {
			ctx.kind = rownumRange
			ctx.lo, ctx.hi = lo, hi
			continue
		}
		// Unrecognized shape: give up on the whole optimization.
		f.rownum.kind = rownumNone
		return
	}

	*f.rownum = *ctx
	if ctx.kind != rownumNone {
		f.outer.kept = kept
	}
}

func mentionsRownum(expr plsql.Expression) bool {
	found := false
	walkExpr(expr, func(n plsql.Expression) {
		if ref, ok := n.(*plsql.ColumnRef); ok && len(ref.Parts) == 1 && ref.Column() == "rownum" {
			found = true
		}
	})
	return found
}

// recognizeRownumLimit matches ROWNUM <= N, ROWNUM < N and ROWNUM = 1.
func recognizeRownumLimit(cond plsql.Expression) (string, bool) {
	be, ok := stripParens(cond).(*plsql.BinaryExpr)
	if !ok {
		return "", false
	}
	ref, ok := stripParens(be.Left).(*plsql.ColumnRef)
	if !ok || len(ref.Parts) != 1 || ref.Column() != "rownum" {
		return "", false
	}
	num, ok := stripParens(be.Right).(*plsql.NumberLiteral)
	if !ok {
		return "", false
	}
	n, err := decimal.NewFromString(num.Tok.Literal)
	if err != nil {
		return "", false
	}

	switch be.Op.Type {
	case plsql.LTE:
		return n.String(), true
	case plsql.LT:
		return n.Sub(decimal.New(1, 0)).String(), true
	case plsql.EQ:
		if n.Equal(decimal.New(1, 0)) {
			return "1", true
		}
	}
	return "", false
}

// recognizeRownumRange matches ROWNUM BETWEEN lo AND hi.
func recognizeRownumRange(cond plsql.Expression) (string, string, bool) {
	bt, ok := stripParens(cond).(*plsql.BetweenExpr)
	if !ok || bt.Not {
		return "", "", false
	}
	ref, ok := stripParens(bt.Operand).(*plsql.ColumnRef)
	if !ok || len(ref.Parts) != 1 || ref.Column() != "rownum" {
		return "", "", false
	}
	lo, ok := stripParens(bt.Lo).(*plsql.NumberLiteral)
	if !ok {
		return "", "", false
	}
	hi, ok := stripParens(bt.Hi).(*plsql.NumberLiteral)
	if !ok {
		return "", "", false
	}
	loDec, err1 := decimal.NewFromString(lo.Tok.Literal)
	hiDec, err2 := decimal.NewFromString(hi.Tok.Literal)
	if err1 != nil || err2 != nil {
		return "", "", false
	}
	return loDec.String(), hiDec.String(), true
}

// rawText slices the original (comment-stripped) source for a node, for
// error messages and raw-condition matching.
func (e *emitter) rawText(n plsql.Node) string {
	start, stop := n.Span()
	if start < 0 || stop > len(e.src) || start > stop {
		return ""
	}
	return e.src[start:stop]
}
