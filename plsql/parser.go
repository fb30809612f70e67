package plsql

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is one parser diagnostic. Pos is a byte offset into the
// stripped source.
type ParseError struct {
	Pos     int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

// Parser is a permissive recursive-descent parser for the Oracle subset
// this system rewrites. It records errors and keeps going where it can;
// callers receive a partial tree plus the error list and decide whether
// to proceed.
type Parser struct {
	toks []Token
	pos  int
	errs []ParseError
}

// ParseSelect parses a SELECT statement (a view body).
func ParseSelect(source string) (*QueryExpr, []ParseError) {
	p := newParser(source)
	q := p.parseQueryExpr()
	p.accept(SEMICOLON)
	p.expectEOF()
	return q, p.errs
}

// ParseFunctionOrProcedure parses a standalone function or procedure,
// with or without the CREATE [OR REPLACE] prefix.
func ParseFunctionOrProcedure(source string) (*Subprogram, []ParseError) {
	p := newParser(source)
	p.acceptCreateOrReplace()
	sub := p.parseSubprogram(true)
	p.accept(SEMICOLON)
	p.accept(SLASH)
	p.expectEOF()
	return sub, p.errs
}

// ParsePackageSpec parses CREATE [OR REPLACE] PACKAGE name IS ... END.
func ParsePackageSpec(source string) (*PackageSpec, []ParseError) {
	p := newParser(source)
	p.acceptCreateOrReplace()
	spec := p.parsePackageSpec()
	p.accept(SLASH)
	p.expectEOF()
	return spec, p.errs
}

// ParsePackageBody parses CREATE [OR REPLACE] PACKAGE BODY name IS ... END.
func ParsePackageBody(source string) (*PackageBody, []ParseError) {
	p := newParser(source)
	p.acceptCreateOrReplace()
	body := p.parsePackageBody()
	p.accept(SLASH)
	p.expectEOF()
	return body, p.errs
}

func newParser(source string) *Parser {
	stripped := StripComments(source)
	return &Parser{toks: NewLexer(stripped).Tokens()}
}

// ---------------------------------------------------------------------------
// Token plumbing

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) peek() Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) curIs(tt TokenType) bool { return p.cur().Type == tt }

func (p *Parser) accept(tt TokenType) bool {
	if p.curIs(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType, what string) Token {
	if p.curIs(tt) {
		return p.advance()
	}
	p.errorf("expected %s, found %q", what, p.cur().Literal)
	return p.cur()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errs = append(p.errs, ParseError{Pos: p.cur().Start, Message: fmt.Sprintf(format, args...)})
}

func (p *Parser) expectEOF() {
	if !p.curIs(EOF) {
		p.errorf("unexpected trailing input %q", p.cur().Literal)
	}
}

func (p *Parser) acceptCreateOrReplace() {
	if p.accept(CREATE) {
		if p.accept(OR) {
			p.expect(REPLACE, "REPLACE")
		}
	}
}

// identLike reports whether the current token can serve as a name. A few
// keywords double as legal Oracle identifiers (REPLACE the builtin, etc.).
func (p *Parser) identLike() bool {
	switch p.cur().Type {
	case IDENT, REPLACE, FIRST, LAST, MAP, BODY, RECORD, SELF, MEMBER, STATIC:
		return true
	}
	return false
}

func (p *Parser) identToken(what string) Token {
	if p.identLike() {
		return p.advance()
	}
	p.errorf("expected %s, found %q", what, p.cur().Literal)
	return p.advance()
}

// parseQualifiedName reads name (DOT name)*.
func (p *Parser) parseQualifiedName(what string) []Token {
	parts := []Token{p.identToken(what)}
	for p.accept(DOT) {
		parts = append(parts, p.identToken(what))
	}
	return parts
}

// ---------------------------------------------------------------------------
// Queries

func (p *Parser) parseQueryExpr() *QueryExpr {
	start := p.cur().Start
	q := &QueryExpr{First: p.parseQueryBlock()}
	for {
		var op string
		switch p.cur().Type {
		case UNION:
			p.advance()
			op = "union"
			if p.accept(ALL) {
				op = "union all"
			}
		case MINUS_KW:
			p.advance()
			op = "minus"
		case INTERSECT:
			p.advance()
			op = "intersect"
		default:
			q.span = span{start, p.prevStop(start)}
			return q
		}
		q.Compound = append(q.Compound, CompoundPart{Op: op, Block: p.parseQueryBlock()})
	}
}

func (p *Parser) prevStop(fallback int) int {
	if p.pos > 0 {
		return p.toks[p.pos-1].Stop
	}
	return fallback
}

func (p *Parser) parseQueryBlock() *QueryBlock {
	start := p.cur().Start
	qb := &QueryBlock{}
	p.expect(SELECT, "SELECT")
	qb.Distinct = p.accept(DISTINCT)

	qb.Items = append(qb.Items, p.parseSelectItem())
	for p.accept(COMMA) {
		qb.Items = append(qb.Items, p.parseSelectItem())
	}

	if p.accept(INTO) {
		qb.Into = append(qb.Into, p.parseExpr())
		for p.accept(COMMA) {
			qb.Into = append(qb.Into, p.parseExpr())
		}
	}

	if p.accept(FROM) {
		qb.From = append(qb.From, p.parseTableRef())
		for p.accept(COMMA) {
			qb.From = append(qb.From, p.parseTableRef())
		}
	}

	if p.accept(WHERE) {
		qb.Where = p.parseExpr()
	}

	// START WITH and CONNECT BY may appear in either order.
	for {
		if p.curIs(START) {
			p.advance()
			p.expect(WITH, "WITH")
			qb.StartWith = p.parseExpr()
			continue
		}
		if p.curIs(CONNECT) {
			p.advance()
			p.expect(BY, "BY")
			qb.NoCycle = p.accept(NOCYCLE)
			qb.ConnectBy = p.parseExpr()
			continue
		}
		break
	}

	if p.curIs(GROUP) {
		p.advance()
		p.expect(BY, "BY")
		qb.GroupBy = append(qb.GroupBy, p.parseExpr())
		for p.accept(COMMA) {
			qb.GroupBy = append(qb.GroupBy, p.parseExpr())
		}
		if p.accept(HAVING) {
			qb.Having = p.parseExpr()
		}
	}

	if p.curIs(ORDER) {
		p.advance()
		p.expect(BY, "BY")
		qb.OrderBy = append(qb.OrderBy, p.parseOrderItem())
		for p.accept(COMMA) {
			qb.OrderBy = append(qb.OrderBy, p.parseOrderItem())
		}
	}

	qb.span = span{start, p.prevStop(start)}
	return qb
}

func (p *Parser) parseSelectItem() SelectItem {
	start := p.cur().Start
	if p.curIs(ASTERISK) {
		t := p.advance()
		return SelectItem{Expr: &Star{span: span{t.Start, t.Stop}}}
	}
	// t.* qualified star
	if p.identLike() && p.peek().Type == DOT {
		if p.pos+2 < len(p.toks) && p.toks[p.pos+2].Type == ASTERISK {
			tab := p.advance()
			p.advance() // .
			star := p.advance()
			return SelectItem{Expr: &Star{span: span{start, star.Stop}, Table: &tab}}
		}
	}
	item := SelectItem{Expr: p.parseExpr()}
	if p.accept(AS) {
		a := p.identToken("column alias")
		item.Alias = &a
	} else if p.identLike() {
		a := p.advance()
		item.Alias = &a
	}
	return item
}

func (p *Parser) parseTableRef() *TableRef {
	start := p.cur().Start
	ref := &TableRef{}
	if p.accept(LPAREN) {
		ref.Subquery = p.parseQueryExpr()
		p.expect(RPAREN, ")")
	} else {
		first := p.identToken("table name")
		if p.accept(DOT) {
			ref.Schema = &first
			ref.Name = p.identToken("table name")
		} else {
			ref.Name = first
		}
		if p.accept(ATSIGN) {
			link := p.identToken("database link")
			ref.DBLink = &link
		}
	}
	if p.identLike() {
		a := p.advance()
		ref.Alias = &a
	}
	ref.span = span{start, p.prevStop(start)}
	return ref
}

func (p *Parser) parseOrderItem() OrderItem {
	item := OrderItem{Expr: p.parseExpr()}
	if p.accept(DESC) {
		item.Desc = true
	} else {
		p.accept(ASC)
	}
	if p.accept(NULLS) {
		if p.accept(FIRST) {
			item.NullsFirst = true
		} else {
			p.expect(LAST, "FIRST or LAST")
			item.NullsLast = true
		}
	}
	return item
}

// ---------------------------------------------------------------------------
// Expressions

func (p *Parser) parseExpr() Expression {
	return p.parseOr()
}

func (p *Parser) parseOr() Expression {
	left := p.parseAnd()
	for p.curIs(OR) {
		op := p.advance()
		right := p.parseAnd()
		left = p.binary(left, op, right)
	}
	return left
}

func (p *Parser) parseAnd() Expression {
	left := p.parseNot()
	for p.curIs(AND) {
		op := p.advance()
		right := p.parseNot()
		left = p.binary(left, op, right)
	}
	return left
}

func (p *Parser) parseNot() Expression {
	if p.curIs(NOT) {
		op := p.advance()
		operand := p.parseNot()
		_, stop := operand.Span()
		return &PrefixExpr{span: span{op.Start, stop}, Op: op, Operand: operand}
	}
	return p.parsePredicate()
}

func (p *Parser) parsePredicate() Expression {
	left := p.parseAdditive()

	switch p.cur().Type {
	case EQ, NEQ, LT, GT, LTE, GTE:
		op := p.advance()
		right := p.parseAdditive()
		return p.binary(left, op, right)
	case IS:
		p.advance()
		not := p.accept(NOT)
		p.expect(NULL_KW, "NULL")
		lstart, _ := left.Span()
		return &IsNullExpr{span: span{lstart, p.prevStop(lstart)}, Operand: left, Not: not}
	}

	not := false
	if p.curIs(NOT) {
		switch p.peek().Type {
		case IN, BETWEEN, LIKE:
			p.advance()
			not = true
		}
	}

	switch p.cur().Type {
	case IN:
		p.advance()
		p.expect(LPAREN, "(")
		lstart, _ := left.Span()
		in := &InExpr{Operand: left, Not: not}
		if p.curIs(SELECT) {
			in.Subquery = p.parseQueryExpr()
		} else {
			in.List = append(in.List, p.parseExpr())
			for p.accept(COMMA) {
				in.List = append(in.List, p.parseExpr())
			}
		}
		p.expect(RPAREN, ")")
		in.span = span{lstart, p.prevStop(lstart)}
		return in
	case BETWEEN:
		p.advance()
		lo := p.parseAdditive()
		p.expect(AND, "AND")
		hi := p.parseAdditive()
		lstart, _ := left.Span()
		return &BetweenExpr{span: span{lstart, p.prevStop(lstart)}, Operand: left, Not: not, Lo: lo, Hi: hi}
	case LIKE:
		p.advance()
		pattern := p.parseAdditive()
		like := &LikeExpr{Operand: left, Not: not, Pattern: pattern}
		if p.accept(ESCAPE) {
			like.Escape = p.parseAdditive()
		}
		lstart, _ := left.Span()
		like.span = span{lstart, p.prevStop(lstart)}
		return like
	}

	return left
}

func (p *Parser) parseAdditive() Expression {
	left := p.parseMultiplicative()
	for {
		switch p.cur().Type {
		case PLUS, MINUS, CONCAT:
			op := p.advance()
			right := p.parseMultiplicative()
			left = p.binary(left, op, right)
		default:
			return left
		}
	}
}

func (p *Parser) parseMultiplicative() Expression {
	left := p.parseUnary()
	for {
		switch p.cur().Type {
		case ASTERISK, SLASH:
			op := p.advance()
			right := p.parseUnary()
			left = p.binary(left, op, right)
		default:
			return left
		}
	}
}

func (p *Parser) parseUnary() Expression {
	switch p.cur().Type {
	case MINUS, PLUS:
		op := p.advance()
		operand := p.parseUnary()
		_, stop := operand.Span()
		return &PrefixExpr{span: span{op.Start, stop}, Op: op, Operand: operand}
	case PRIOR:
		op := p.advance()
		operand := p.parseUnary()
		_, stop := operand.Span()
		return &PriorExpr{span: span{op.Start, stop}, Operand: operand}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Expression {
	t := p.cur()

	switch t.Type {
	case NUMBER:
		p.advance()
		return &NumberLiteral{span: span{t.Start, t.Stop}, Tok: t}
	case STRING:
		p.advance()
		return &StringLiteral{span: span{t.Start, t.Stop}, Tok: t}
	case NULL_KW:
		p.advance()
		return &NullLiteral{span: span{t.Start, t.Stop}}
	case BIND:
		p.advance()
		b := &BindRef{span: span{t.Start, t.Stop}, Name: t}
		if p.curIs(DOT) && p.peek().Type == IDENT {
			p.advance()
			col := p.advance()
			b.Column = &col
			b.span = span{t.Start, col.Stop}
		}
		return b
	case DATE_KW, TIMESTAMP_KW:
		if p.peek().Type == STRING {
			p.advance()
			val := p.advance()
			return &DateTimeLiteral{span: span{t.Start, val.Stop}, Timestamp: t.Type == TIMESTAMP_KW, Value: val}
		}
		// DATE or TIMESTAMP used as a plain name (a column called DATE is
		// illegal in Oracle, but tolerated here).
		return p.parseNameExpr()
	case INTERVAL:
		return p.parseIntervalLiteral()
	case CASE:
		return p.parseCaseExpr()
	case EXISTS:
		p.advance()
		p.expect(LPAREN, "(")
		sub := p.parseQueryExpr()
		end := p.expect(RPAREN, ")")
		return &ExistsExpr{span: span{t.Start, end.Stop}, Subquery: sub}
	case LPAREN:
		p.advance()
		if p.curIs(SELECT) {
			sub := p.parseQueryExpr()
			end := p.expect(RPAREN, ")")
			return &SubqueryExpr{span: span{t.Start, end.Stop}, Query: sub}
		}
		inner := p.parseExpr()
		end := p.expect(RPAREN, ")")
		return &ParenExpr{span: span{t.Start, end.Stop}, Inner: inner}
	case LEVEL_KW:
		p.advance()
		return &ColumnRef{span: span{t.Start, t.Stop}, Parts: []Token{t}}
	case ASTERISK:
		p.advance()
		return &Star{span: span{t.Start, t.Stop}}
	}

	if p.identLike() {
		return p.parseNameExpr()
	}

	p.errorf("unexpected token %q in expression", t.Literal)
	p.advance()
	return &NullLiteral{span: span{t.Start, t.Stop}}
}

// parseNameExpr parses an identifier chain that resolves to a column
// reference or a function call.
func (p *Parser) parseNameExpr() Expression {
	start := p.cur().Start
	parts := []Token{p.advance()}
	for p.curIs(DOT) && (p.peek().Type == IDENT || p.tokenIdentLike(p.peek())) {
		p.advance()
		parts = append(parts, p.advance())
	}

	if p.curIs(LPAREN) {
		return p.parseCallTail(start, parts)
	}

	ref := &ColumnRef{Parts: parts}
	stop := parts[len(parts)-1].Stop
	if p.curIs(OUTERJOIN) {
		oj := p.advance()
		ref.OuterJoin = true
		stop = oj.Stop
	}
	ref.span = span{start, stop}
	return ref
}

func (p *Parser) tokenIdentLike(t Token) bool {
	switch t.Type {
	case IDENT, REPLACE, FIRST, LAST, MAP, BODY, RECORD, SELF, MEMBER, STATIC:
		return true
	}
	return false
}

func (p *Parser) parseCallTail(start int, name []Token) Expression {
	p.expect(LPAREN, "(")
	call := &FunctionCall{Name: name}
	if p.curIs(ASTERISK) {
		p.advance()
		call.Star = true
	} else if !p.curIs(RPAREN) {
		call.Distinct = p.accept(DISTINCT)
		call.Args = append(call.Args, p.parseExpr())
		for p.accept(COMMA) {
			call.Args = append(call.Args, p.parseExpr())
		}
	}
	end := p.expect(RPAREN, ")")
	call.span = span{start, end.Stop}
	return call
}

func (p *Parser) parseIntervalLiteral() Expression {
	start := p.advance() // INTERVAL
	var b strings.Builder
	b.WriteString("INTERVAL")
	stop := start.Stop
	// Consume the literal and its unit words verbatim.
	if p.curIs(STRING) {
		v := p.advance()
		b.WriteString(" " + v.Literal)
		stop = v.Stop
	}
	for p.curIs(IDENT) || p.curIs(LPAREN) || p.curIs(RPAREN) || p.curIs(NUMBER) {
		v := p.advance()
		b.WriteString(" " + v.Literal)
		stop = v.Stop
		if v.Type == IDENT && strings.EqualFold(v.Literal, "second") {
			break
		}
		if v.Type == IDENT && !p.curIs(LPAREN) && !p.curIs(IDENT) {
			break
		}
	}
	return &IntervalLiteral{span: span{start.Start, stop}, Raw: b.String()}
}

func (p *Parser) parseCaseExpr() Expression {
	start := p.advance() // CASE
	c := &CaseExpr{}
	if !p.curIs(WHEN) {
		c.Operand = p.parseExpr()
	}
	for p.accept(WHEN) {
		when := p.parseExpr()
		p.expect(THEN, "THEN")
		then := p.parseExpr()
		c.Whens = append(c.Whens, CaseWhen{When: when, Then: then})
	}
	if p.accept(ELSE) {
		c.Else = p.parseExpr()
	}
	end := p.expect(END, "END")
	c.span = span{start.Start, end.Stop}
	return c
}

func (p *Parser) binary(left Expression, op Token, right Expression) Expression {
	lstart, _ := left.Span()
	_, rstop := right.Span()
	return &BinaryExpr{span: span{lstart, rstop}, Left: left, Op: op, Right: right}
}

// ---------------------------------------------------------------------------
// PL/SQL subprograms

// parseSubprogram parses FUNCTION|PROCEDURE name [(params)] [RETURN type]
// IS|AS decls BEGIN ... END [name]. standalone allows a qualified name.
func (p *Parser) parseSubprogram(standalone bool) *Subprogram {
	start := p.cur().Start
	sub := &Subprogram{}
	switch p.cur().Type {
	case PROCEDURE:
		p.advance()
		sub.Procedure = true
	case FUNCTION:
		p.advance()
	default:
		p.errorf("expected FUNCTION or PROCEDURE, found %q", p.cur().Literal)
		p.advance()
	}

	if standalone {
		sub.Name = p.parseQualifiedName("subprogram name")
	} else {
		sub.Name = []Token{p.identToken("subprogram name")}
	}

	if p.curIs(LPAREN) {
		sub.Params = p.parseParams()
	}
	if p.accept(RETURN) {
		sub.ReturnType = p.parseTypeName()
	}

	if !p.accept(IS) && !p.accept(AS) {
		p.errorf("expected IS or AS, found %q", p.cur().Literal)
	}

	// Tolerate a stray DECLARE after IS; it shows up when anonymous
	// blocks are wrapped as procedures for parsing.
	p.accept(DECLARE)

	sub.Decls = p.parseDeclarations()
	sub.Body = p.parseBlock()
	p.acceptEndName()
	sub.span = span{start, p.prevStop(start)}
	return sub
}

func (p *Parser) parseParams() []*Param {
	p.expect(LPAREN, "(")
	var params []*Param
	if !p.curIs(RPAREN) {
		params = append(params, p.parseParam())
		for p.accept(COMMA) {
			params = append(params, p.parseParam())
		}
	}
	p.expect(RPAREN, ")")
	return params
}

func (p *Parser) parseParam() *Param {
	start := p.cur().Start
	prm := &Param{Name: p.identToken("parameter name")}
	// Mode words: IN, OUT, IN OUT.
	if p.accept(IN) {
		if p.accept(OUT) {
			prm.Mode = ModeInOut
		}
	} else if p.accept(OUT) {
		prm.Mode = ModeOut
	}
	p.accept(NOCOPY)
	prm.Type = p.parseTypeName()
	if p.accept(ASSIGN) || p.accept(DEFAULT_KW) {
		prm.Default = p.parseExpr()
	}
	prm.span = span{start, p.prevStop(start)}
	return prm
}

func (p *Parser) parseTypeName() *TypeName {
	start := p.cur().Start
	tn := &TypeName{Precision: -1, Scale: -1}
	tn.Parts = []Token{p.identTokenOrTypeWord()}
	for p.curIs(DOT) {
		p.advance()
		tn.Parts = append(tn.Parts, p.identTokenOrTypeWord())
	}
	if p.accept(LPAREN) {
		num := p.expect(NUMBER, "precision")
		tn.Precision = atoiSafe(num.Literal)
		if p.accept(COMMA) {
			num = p.expect(NUMBER, "scale")
			tn.Scale = atoiSafe(num.Literal)
		}
		// VARCHAR2(30 CHAR) length semantics are irrelevant after mapping.
		p.accept(IDENT)
		p.expect(RPAREN, ")")
	}
	if p.accept(PERCENT) {
		// %TYPE lexes as the TYPE keyword; %ROWTYPE as a plain identifier.
		switch p.cur().Type {
		case TYPE_KW, IDENT:
			attr := p.advance()
			tn.Attr = strings.ToLower(attr.Literal)
		default:
			p.errorf("expected TYPE or ROWTYPE, found %q", p.cur().Literal)
		}
	}
	tn.span = span{start, p.prevStop(start)}
	return tn
}

// identTokenOrTypeWord also admits keywords that name types (DATE,
// TIMESTAMP, INTERVAL).
func (p *Parser) identTokenOrTypeWord() Token {
	switch p.cur().Type {
	case IDENT, DATE_KW, TIMESTAMP_KW, INTERVAL:
		return p.advance()
	}
	return p.identToken("type name")
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// parseDeclarations reads declare-section entries until BEGIN (or END,
// on malformed input).
func (p *Parser) parseDeclarations() []Declaration {
	var decls []Declaration
	for {
		switch p.cur().Type {
		case BEGIN, END, EOF:
			return decls
		case TYPE_KW:
			decls = append(decls, p.parseTypeDecl())
		case CURSOR:
			decls = append(decls, p.parseCursorDecl())
		case FUNCTION, PROCEDURE:
			sub := p.parseSubprogram(false)
			p.accept(SEMICOLON)
			decls = append(decls, sub)
		case PRAGMA:
			// PRAGMA directives carry no PostgreSQL meaning; skip to ';'.
			p.skipToSemicolon()
		default:
			if !p.identLike() {
				p.errorf("unexpected token %q in declare section", p.cur().Literal)
				p.skipToSemicolon()
				continue
			}
			decls = append(decls, p.parseVarDecl())
		}
	}
}

func (p *Parser) parseVarDecl() Declaration {
	start := p.cur().Start
	d := &VarDecl{Name: p.identToken("variable name")}
	d.Constant = p.accept(CONSTANT)
	d.Type = p.parseTypeName()
	if p.accept(ASSIGN) || p.accept(DEFAULT_KW) {
		d.Default = p.parseExpr()
	}
	p.expect(SEMICOLON, ";")
	d.span = span{start, p.prevStop(start)}
	return d
}

func (p *Parser) parseTypeDecl() Declaration {
	start := p.advance().Start // TYPE
	d := &TypeDecl{Limit: -1, Name: p.identToken("type name")}
	p.expect(IS, "IS")

	switch p.cur().Type {
	case RECORD:
		p.advance()
		p.expect(LPAREN, "(")
		d.Kind = TypeRecord
		d.Fields = append(d.Fields, p.parseRecordField())
		for p.accept(COMMA) {
			d.Fields = append(d.Fields, p.parseRecordField())
		}
		p.expect(RPAREN, ")")
	case TABLE:
		p.advance()
		p.expect(OF, "OF")
		d.Kind = TypeTableOf
		d.Elem = p.parseTypeName()
		if p.accept(INDEX) {
			p.expect(BY, "BY")
			d.Kind = TypeIndexBy
			d.Index = p.parseTypeName()
		}
	case VARRAY:
		p.advance()
		p.expect(LPAREN, "(")
		num := p.expect(NUMBER, "varray limit")
		d.Limit = atoiSafe(num.Literal)
		p.expect(RPAREN, ")")
		p.expect(OF, "OF")
		d.Kind = TypeVarray
		d.Elem = p.parseTypeName()
	default:
		p.errorf("unsupported type declaration %q", p.cur().Literal)
		p.skipToSemicolon()
		d.span = span{start, p.prevStop(start)}
		return d
	}

	p.expect(SEMICOLON, ";")
	d.span = span{start, p.prevStop(start)}
	return d
}

func (p *Parser) parseRecordField() RecordField {
	return RecordField{Name: p.identToken("field name"), Type: p.parseTypeName()}
}

func (p *Parser) parseCursorDecl() Declaration {
	start := p.advance().Start // CURSOR
	d := &CursorDecl{Name: p.identToken("cursor name")}
	p.expect(IS, "IS")
	d.Query = p.parseQueryExpr()
	p.expect(SEMICOLON, ";")
	d.span = span{start, p.prevStop(start)}
	return d
}

func (p *Parser) skipToSemicolon() {
	for !p.curIs(SEMICOLON) && !p.curIs(EOF) {
		p.advance()
	}
	p.accept(SEMICOLON)
}

// ---------------------------------------------------------------------------
// Blocks and statements

// parseBlock parses BEGIN stmts [EXCEPTION handlers] END.
func (p *Parser) parseBlock() *Block {
	start := p.cur().Start
	b := &Block{}
	p.expect(BEGIN, "BEGIN")
	b.Stmts = p.parseStatements()
	if p.accept(EXCEPTION) {
		for p.curIs(WHEN) {
			b.Handlers = append(b.Handlers, p.parseHandler())
		}
	}
	p.expect(END, "END")
	b.span = span{start, p.prevStop(start)}
	return b
}

func (p *Parser) parseHandler() *Handler {
	start := p.advance().Start // WHEN
	h := &Handler{}
	h.Names = append(h.Names, strings.ToLower(p.identToken("exception name").Literal))
	for p.accept(OR) {
		h.Names = append(h.Names, strings.ToLower(p.identToken("exception name").Literal))
	}
	p.expect(THEN, "THEN")
	h.Stmts = p.parseStatements()
	h.span = span{start, p.prevStop(start)}
	return h
}

// parseStatements reads statements until a block terminator.
func (p *Parser) parseStatements() []Statement {
	var stmts []Statement
	for {
		switch p.cur().Type {
		case END, EXCEPTION, ELSIF, ELSE, WHEN, EOF:
			return stmts
		}
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
}

func (p *Parser) parseStatement() Statement {
	start := p.cur().Start

	switch p.cur().Type {
	case IF:
		return p.parseIfStmt()
	case LOOP:
		p.advance()
		stmts := p.parseStatements()
		p.expect(END, "END")
		p.expect(LOOP, "LOOP")
		p.expect(SEMICOLON, ";")
		return &LoopStmt{span: span{start, p.prevStop(start)}, Stmts: stmts}
	case WHILE:
		p.advance()
		cond := p.parseExpr()
		p.expect(LOOP, "LOOP")
		stmts := p.parseStatements()
		p.expect(END, "END")
		p.expect(LOOP, "LOOP")
		p.expect(SEMICOLON, ";")
		return &WhileStmt{span: span{start, p.prevStop(start)}, Cond: cond, Stmts: stmts}
	case FOR:
		return p.parseForStmt()
	case EXIT:
		p.advance()
		st := &ExitStmt{}
		if p.accept(WHEN) {
			st.When = p.parseExpr()
		}
		p.expect(SEMICOLON, ";")
		st.span = span{start, p.prevStop(start)}
		return st
	case CONTINUE:
		p.advance()
		st := &ContinueStmt{}
		if p.accept(WHEN) {
			st.When = p.parseExpr()
		}
		p.expect(SEMICOLON, ";")
		st.span = span{start, p.prevStop(start)}
		return st
	case RETURN:
		p.advance()
		st := &ReturnStmt{}
		if !p.curIs(SEMICOLON) {
			st.Value = p.parseExpr()
		}
		p.expect(SEMICOLON, ";")
		st.span = span{start, p.prevStop(start)}
		return st
	case NULL_KW:
		p.advance()
		p.expect(SEMICOLON, ";")
		return &NullStmt{span: span{start, p.prevStop(start)}}
	case RAISE:
		p.advance()
		st := &RaiseStmt{}
		if p.identLike() {
			st.Name = p.parseQualifiedName("exception name")
		}
		p.expect(SEMICOLON, ";")
		st.span = span{start, p.prevStop(start)}
		return st
	case BEGIN, DECLARE:
		return p.parseDeclareBlock()
	case SELECT:
		q := p.parseQueryExpr()
		p.expect(SEMICOLON, ";")
		return &SelectStmt{span: span{start, p.prevStop(start)}, Query: q}
	case INSERT:
		return p.parseInsertStmt()
	case UPDATE:
		return p.parseUpdateStmt()
	case DELETE:
		return p.parseDeleteStmt()
	}

	if p.identLike() || p.curIs(BIND) {
		return p.parseAssignOrCall()
	}

	p.errorf("unexpected token %q at statement start", p.cur().Literal)
	p.skipToSemicolon()
	return nil
}

func (p *Parser) parseIfStmt() Statement {
	start := p.advance().Start // IF
	st := &IfStmt{Cond: p.parseExpr()}
	p.expect(THEN, "THEN")
	st.Then = p.parseStatements()
	for p.curIs(ELSIF) {
		p.advance()
		arm := ElsifArm{Cond: p.parseExpr()}
		p.expect(THEN, "THEN")
		arm.Stmts = p.parseStatements()
		st.Elsifs = append(st.Elsifs, arm)
	}
	if p.accept(ELSE) {
		st.Else = p.parseStatements()
	}
	p.expect(END, "END")
	p.expect(IF, "IF")
	p.expect(SEMICOLON, ";")
	st.span = span{start, p.prevStop(start)}
	return st
}

func (p *Parser) parseForStmt() Statement {
	start := p.advance().Start // FOR
	st := &ForStmt{Var: p.identToken("loop variable")}
	p.expect(IN, "IN")
	st.Reverse = p.accept(REVERSE)
	if p.curIs(LPAREN) && p.peek().Type == SELECT {
		p.advance()
		st.Query = p.parseQueryExpr()
		p.expect(RPAREN, ")")
	} else {
		lo := p.parseAdditive()
		if p.accept(DOTDOT) {
			st.Lo = lo
			st.Hi = p.parseAdditive()
		} else if ref, ok := lo.(*ColumnRef); ok && len(ref.Parts) == 1 {
			st.Cursor = &ref.Parts[0]
		} else {
			p.errorf("expected range or cursor name in FOR loop")
		}
	}
	p.expect(LOOP, "LOOP")
	st.Stmts = p.parseStatements()
	p.expect(END, "END")
	p.expect(LOOP, "LOOP")
	p.expect(SEMICOLON, ";")
	st.span = span{start, p.prevStop(start)}
	return st
}

func (p *Parser) parseDeclareBlock() Statement {
	start := p.cur().Start
	db := &DeclareBlock{}
	if p.accept(DECLARE) {
		db.Decls = p.parseDeclarations()
	}
	db.Block = p.parseBlock()
	p.acceptEndName()
	p.accept(SEMICOLON)
	db.span = span{start, p.prevStop(start)}
	return db
}

// acceptEndName consumes the optional repeated name after END.
func (p *Parser) acceptEndName() {
	if p.identLike() {
		p.advance()
	}
}

func (p *Parser) parseAssignOrCall() Statement {
	start := p.cur().Start
	expr := p.parseNameOrBind()

	if p.accept(ASSIGN) {
		value := p.parseExpr()
		p.expect(SEMICOLON, ";")
		return &AssignStmt{span: span{start, p.prevStop(start)}, Target: expr, Value: value}
	}

	p.expect(SEMICOLON, ";")
	switch e := expr.(type) {
	case *FunctionCall:
		return &CallStmt{span: span{start, p.prevStop(start)}, Call: e}
	case *ColumnRef:
		// A bare name as a statement is a no-argument procedure call.
		call := &FunctionCall{span: e.span, Name: e.Parts}
		return &CallStmt{span: span{start, p.prevStop(start)}, Call: call}
	default:
		p.errorf("expected assignment or call statement")
		return nil
	}
}

func (p *Parser) parseNameOrBind() Expression {
	if p.curIs(BIND) {
		return p.parsePrimary()
	}
	return p.parseNameExpr()
}

func (p *Parser) parseInsertStmt() Statement {
	start := p.advance().Start // INSERT
	p.expect(INTO, "INTO")
	st := &InsertStmt{Table: p.parseTableRef()}
	if p.curIs(LPAREN) && p.peek().Type != SELECT {
		p.advance()
		st.Columns = append(st.Columns, p.identToken("column name"))
		for p.accept(COMMA) {
			st.Columns = append(st.Columns, p.identToken("column name"))
		}
		p.expect(RPAREN, ")")
	}
	if p.accept(VALUES) {
		p.expect(LPAREN, "(")
		st.Values = append(st.Values, p.parseExpr())
		for p.accept(COMMA) {
			st.Values = append(st.Values, p.parseExpr())
		}
		p.expect(RPAREN, ")")
	} else {
		st.Query = p.parseQueryExpr()
	}
	p.expect(SEMICOLON, ";")
	st.span = span{start, p.prevStop(start)}
	return st
}

func (p *Parser) parseUpdateStmt() Statement {
	start := p.advance().Start // UPDATE
	st := &UpdateStmt{Table: p.parseTableRef()}
	p.expect(SET, "SET")
	st.Sets = append(st.Sets, p.parseUpdateSet())
	for p.accept(COMMA) {
		st.Sets = append(st.Sets, p.parseUpdateSet())
	}
	if p.accept(WHERE) {
		st.Where = p.parseExpr()
	}
	p.expect(SEMICOLON, ";")
	st.span = span{start, p.prevStop(start)}
	return st
}

func (p *Parser) parseUpdateSet() UpdateSet {
	start := p.cur().Start
	parts := []Token{p.identToken("column name")}
	for p.accept(DOT) {
		parts = append(parts, p.identToken("column name"))
	}
	col := &ColumnRef{span: span{start, parts[len(parts)-1].Stop}, Parts: parts}
	p.expect(EQ, "=")
	return UpdateSet{Column: col, Value: p.parseExpr()}
}

func (p *Parser) parseDeleteStmt() Statement {
	start := p.advance().Start // DELETE
	p.accept(FROM)
	st := &DeleteStmt{Table: p.parseTableRef()}
	if p.accept(WHERE) {
		st.Where = p.parseExpr()
	}
	p.expect(SEMICOLON, ";")
	st.span = span{start, p.prevStop(start)}
	return st
}

// ---------------------------------------------------------------------------
// Packages

func (p *Parser) parsePackageSpec() *PackageSpec {
	start := p.cur().Start
	spec := &PackageSpec{}
	p.expect(PACKAGE, "PACKAGE")
	spec.Name = p.parseQualifiedName("package name")
	if !p.accept(IS) && !p.accept(AS) {
		p.errorf("expected IS or AS, found %q", p.cur().Literal)
	}

	for !p.curIs(END) && !p.curIs(EOF) {
		switch p.cur().Type {
		case FUNCTION, PROCEDURE:
			spec.Sigs = append(spec.Sigs, p.parseSubprogramSig())
		case TYPE_KW:
			spec.Decls = append(spec.Decls, p.parseTypeDecl())
		case CURSOR:
			spec.Decls = append(spec.Decls, p.parseCursorDecl())
		case PRAGMA:
			p.skipToSemicolon()
		default:
			if p.identLike() {
				spec.Decls = append(spec.Decls, p.parseVarDecl())
			} else {
				p.errorf("unexpected token %q in package spec", p.cur().Literal)
				p.skipToSemicolon()
			}
		}
	}
	p.expect(END, "END")
	p.acceptEndName()
	p.accept(SEMICOLON)
	spec.span = span{start, p.prevStop(start)}
	return spec
}

func (p *Parser) parseSubprogramSig() *SubprogramSig {
	start := p.cur().Start
	sig := &SubprogramSig{Procedure: p.curIs(PROCEDURE)}
	p.advance()
	sig.Name = p.identToken("subprogram name")
	if p.curIs(LPAREN) {
		sig.Params = p.parseParams()
	}
	if p.accept(RETURN) {
		sig.ReturnType = p.parseTypeName()
	}
	p.expect(SEMICOLON, ";")
	sig.span = span{start, p.prevStop(start)}
	return sig
}

func (p *Parser) parsePackageBody() *PackageBody {
	start := p.cur().Start
	body := &PackageBody{}
	p.expect(PACKAGE, "PACKAGE")
	p.expect(BODY, "BODY")
	body.Name = p.parseQualifiedName("package name")
	if !p.accept(IS) && !p.accept(AS) {
		p.errorf("expected IS or AS, found %q", p.cur().Literal)
	}

	for !p.curIs(END) && !p.curIs(EOF) && !p.curIs(BEGIN) {
		switch p.cur().Type {
		case FUNCTION, PROCEDURE:
			sub := p.parseSubprogram(false)
			p.accept(SEMICOLON)
			body.Subprograms = append(body.Subprograms, sub)
		case TYPE_KW:
			body.Decls = append(body.Decls, p.parseTypeDecl())
		case CURSOR:
			body.Decls = append(body.Decls, p.parseCursorDecl())
		case PRAGMA:
			p.skipToSemicolon()
		default:
			if p.identLike() {
				body.Decls = append(body.Decls, p.parseVarDecl())
			} else {
				p.errorf("unexpected token %q in package body", p.cur().Literal)
				p.skipToSemicolon()
			}
		}
	}

	// Optional package initialization block; its END is the package's END.
	if p.curIs(BEGIN) {
		body.Init = p.parseBlock()
		p.acceptEndName()
		p.accept(SEMICOLON)
		body.span = span{start, p.prevStop(start)}
		return body
	}

	p.expect(END, "END")
	p.acceptEndName()
	p.accept(SEMICOLON)
	body.span = span{start, p.prevStop(start)}
	return body
}
