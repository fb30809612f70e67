package transformer

import (
	"strings"

	"github.com/Sayiza/orapgsync/plsql"
)

// methodSlice is one method's source extent inside a type body.
type methodSlice struct {
	static bool
	ctor   bool
	start  int // offset of FUNCTION/PROCEDURE (past the MEMBER/STATIC word)
	stop   int
}

// sliceTypeBody is the lightweight boundary scanner: it lexes the
// comment-stripped body and cuts it at top-level MEMBER/STATIC/CONSTRUCTOR
// headers, with no full reparse. Each slice ends right before the next
// header (or before the body's closing END).
func sliceTypeBody(stripped string) []methodSlice {
	toks := plsql.NewLexer(stripped).Tokens()

	var slices []methodSlice
	for i := 0; i < len(toks); i++ {
		switch toks[i].Type {
		case plsql.MEMBER, plsql.STATIC, plsql.CONSTRUCTOR:
			next := toks[i+1]
			if next.Type != plsql.FUNCTION && next.Type != plsql.PROCEDURE {
				continue
			}
			if len(slices) > 0 {
				slices[len(slices)-1].stop = toks[i].Start
			}
			slices = append(slices, methodSlice{
				static: toks[i].Type == plsql.STATIC,
				ctor:   toks[i].Type == plsql.CONSTRUCTOR,
				start:  next.Start,
			})
		}
	}
	if len(slices) == 0 {
		return nil
	}

	// The last slice ends before the body's final END token.
	lastEnd := len(stripped)
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].Type == plsql.END {
			lastEnd = toks[i].Start
			break
		}
	}
	slices[len(slices)-1].stop = lastEnd
	return slices
}

// TypeMethodResult is one transformed object-type method.
type TypeMethodResult struct {
	QualifiedName string // schema.type__method
	DDL           string
}

// transformTypeBody slices a type body into per-method source and
// transforms each method independently into a top-level function named
// schema.type__method. Member methods receive a synthetic first parameter
// of the object-type value. Errors never stop the batch.
func (e *emitter) transformTypeBody(schema, typeName, bodySource string) ([]TypeMethodResult, []TransformError) {
	schema = strings.ToLower(schema)
	typeName = strings.ToLower(typeName)
	stripped := plsql.StripComments(bodySource)

	slices := sliceTypeBody(stripped)
	if len(slices) == 0 {
		return nil, []TransformError{{
			Err:    ErrParse.New("no methods found in type body"),
			Object: schema + "." + typeName,
			SQL:    bodySource,
		}}
	}

	var results []TypeMethodResult
	var errs []TransformError
	for _, sl := range slices {
		src := strings.TrimSpace(stripped[sl.start:sl.stop])
		src = strings.TrimSuffix(strings.TrimSpace(src), ";") + ";"

		if sl.ctor {
			errs = append(errs, TransformError{
				Err:    ErrUnsupportedConstruct.New("constructor function"),
				Object: schema + "." + typeName,
				SQL:    src,
			})
			continue
		}

		sub, parseErrs := plsql.ParseFunctionOrProcedure(src)
		if len(parseErrs) > 0 {
			errs = append(errs, TransformError{
				Err:    ErrParse.New(parseErrs[0].Error()),
				Object: schema + "." + typeName,
				SQL:    src,
			})
			continue
		}

		if !sl.static {
			selfParam := &plsql.Param{
				Name: plsql.Token{Type: plsql.IDENT, Literal: "self"},
				Type: &plsql.TypeName{
					Parts: []plsql.Token{
						{Type: plsql.IDENT, Literal: schema},
						{Type: plsql.IDENT, Literal: typeName},
					},
					Precision: -1, Scale: -1,
				},
			}
			sub.Params = append([]*plsql.Param{selfParam}, sub.Params...)
		}

		qualified := schema + "." + typeName + "__" + sub.SimpleName()
		e.src = src
		e.indent = 0
		ddl, err := e.emitSubprogramNamed(sub, qualified)
		if err != nil {
			errs = append(errs, TransformError{Err: err, Object: qualified, SQL: src})
			continue
		}
		results = append(results, TypeMethodResult{QualifiedName: qualified, DDL: ddl})
	}
	return results, errs
}
