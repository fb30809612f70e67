package transformer

import (
	"fmt"

	"github.com/Sayiza/orapgsync/metadata"
	"github.com/Sayiza/orapgsync/plsql"
)

// joinSide marks which side of an ANSI join the optional table lands on.
type joinSide int

const (
	joinLeft joinSide = iota // LEFT JOIN: marker was on the right
	joinRight
)

// joinSpec is one merged join between a table pair. Conds holds the AST
// condition nodes; they are emitted (and therefore transformed) when the
// FROM clause is assembled, not at analysis time.
type joinSpec struct {
	anchorKey string // table key on the required side
	otherKey  string
	side      joinSide
	conds     []plsql.Expression
}

// tableEntry is one registered FROM table.
type tableEntry struct {
	key string // alias if present, else table name (lowercase)
	ref *plsql.TableRef
}

// outerJoinContext collects what the outer-join analysis discovers in one
// query block: registered tables in insertion order, merged joins, and the
// WHERE conditions to keep.
type outerJoinContext struct {
	tables []*tableEntry
	byKey  map[string]*tableEntry
	joins  []*joinSpec
	kept   []plsql.Expression
}

func newOuterJoinContext() *outerJoinContext {
	return &outerJoinContext{byKey: make(map[string]*tableEntry)}
}

func (c *outerJoinContext) register(ref *plsql.TableRef) {
	key := ref.Key()
	entry := &tableEntry{key: key, ref: ref}
	c.tables = append(c.tables, entry)
	if key != "" {
		c.byKey[key] = entry
	}
}

// addJoin merges a condition into an existing join for the same table pair
// or records a new one.
func (c *outerJoinContext) addJoin(anchor, other string, side joinSide, cond plsql.Expression) {
	for _, j := range c.joins {
		if j.anchorKey == anchor && j.otherKey == other && j.side == side {
			j.conds = append(j.conds, cond)
			return
		}
	}
	c.joins = append(c.joins, &joinSpec{anchorKey: anchor, otherKey: other, side: side, conds: []plsql.Expression{cond}})
}

// rownumKind tags the recognized ROWNUM shapes.
type rownumKind int

const (
	rownumNone rownumKind = iota
	rownumSimpleLimit
	rownumRange
)

// rownumContext records the recognized ROWNUM limit for a query block.
type rownumContext struct {
	kind rownumKind
	n    string // limit for simple_limit
	lo   string // for range
	hi   string
}

// typeCategory classifies an expression for type-directed rewrites.
type typeCategory int

const (
	typeUnknown typeCategory = iota
	typeNumeric
	typeText
	typeDate
	typeTimestamp
	typeBoolean
)

// typeInfo is one type-cache entry.
type typeInfo struct {
	category typeCategory
	nullable bool
}

// typeCache maps "start:stop" node keys to inferred types.
type typeCache map[string]typeInfo

// cacheKey derives the type-cache key from a node's token positions.
func cacheKey(n plsql.Node) string {
	start, stop := n.Span()
	return fmt.Sprintf("%d:%d", start, stop)
}

// tableBinding resolves a FROM alias to its table metadata, when known.
type tableBinding struct {
	schema string
	name   string
	table  *metadata.Table // nil when the index has no entry
}

// frame is one context-stack level, owning all per-query-block state.
type frame struct {
	outer   *outerJoinContext
	rownum  *rownumContext
	types   typeCache
	aliases map[string]tableBinding
}

// contextStack holds one frame per query-block nesting level. Frames are
// pushed on entering a query block and must be popped on every exit path.
type contextStack struct {
	frames []*frame
}

func (s *contextStack) push() *frame {
	f := &frame{
		outer:   newOuterJoinContext(),
		rownum:  &rownumContext{},
		types:   make(typeCache),
		aliases: make(map[string]tableBinding),
	}
	s.frames = append(s.frames, f)
	return f
}

func (s *contextStack) pop() {
	if len(s.frames) == 0 {
		panic(ErrInternalInvariant.New("context pop on empty stack"))
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// top returns the current frame, or nil outside any query block.
func (s *contextStack) top() *frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *contextStack) depth() int { return len(s.frames) }

// withFrame pushes a frame, runs fn, and pops on every exit path,
// including panics out of fn. This is the scoped-acquisition guarantee the
// rest of the transformer relies on.
func (s *contextStack) withFrame(fn func(f *frame) error) error {
	f := s.push()
	defer s.pop()
	return fn(f)
}

// lookupAlias searches frames innermost-out so subqueries can reference
// enclosing FROM tables.
func (s *contextStack) lookupAlias(key string) (tableBinding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i].aliases[key]; ok {
			return b, true
		}
	}
	return tableBinding{}, false
}

// packageContext is active only while a package body is being rewritten.
type packageContext struct {
	schema string
	name   string
	vars   []metadata.PackageVariable // spec order, lowercased
	varSet map[string]*metadata.PackageVariable
	types  []*plsql.TypeDecl

	bodySource     string
	helpersEmitted bool
}

func (p *packageContext) variable(name string) (*metadata.PackageVariable, bool) {
	v, ok := p.varSet[name]
	return v, ok
}
