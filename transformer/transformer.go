package transformer

import (
	"fmt"
	"strings"

	"github.com/Sayiza/orapgsync/metadata"
	"github.com/Sayiza/orapgsync/plsql"
)

// Transformer rewrites Oracle source into PostgreSQL. One Transformer
// serves one job; it is stateless across invocations apart from the
// shared frozen metadata index, so invocations may run on parallel
// workers.
type Transformer struct {
	meta *metadata.Index
}

// New returns a transformer over a built metadata index.
func New(meta *metadata.Index) *Transformer {
	return &Transformer{meta: meta}
}

// Result is the outcome of a single-output entry point.
type Result struct {
	PostgresSQL string
	Errors      []TransformError
}

// TriggerResult carries the two DDLs a trigger lowers to; the caller must
// apply FunctionDDL first.
type TriggerResult struct {
	FunctionDDL string
	TriggerDDL  string
	Errors      []TransformError
}

// PackageFunctionResult is one flattened package member.
type PackageFunctionResult struct {
	QualifiedName string // schema.pkg__fn
	DDL           string
}

// PackageResult is the outcome of a package-body transform. Helpers hold
// the variable accessor DDLs and must be applied before Functions.
type PackageResult struct {
	Functions []PackageFunctionResult
	Helpers   []string
	Errors    []TransformError
}

// TypeBodyResult is the outcome of a type-body transform.
type TypeBodyResult struct {
	Methods []TypeMethodResult
	Errors  []TransformError
}

// run wires an emitter for one invocation, recovering panics into
// InternalInvariantViolation and enforcing the empty-stack postcondition.
func (t *Transformer) run(schema, input string, fn func(e *emitter) error) (errs []TransformError, warnings []TransformError) {
	stripped := plsql.StripComments(input)
	e := newEmitter(schema, t.meta, stripped)

	func() {
		defer func() {
			if r := recover(); r != nil {
				errs = append(errs, TransformError{
					Err: ErrInternalInvariant.New(fmt.Sprintf("%v", r)),
					SQL: input,
				})
			}
		}()
		if err := fn(e); err != nil {
			errs = append(errs, TransformError{Err: err, SQL: input})
		}
	}()

	if e.stack.depth() != 0 {
		errs = append(errs, TransformError{
			Err: ErrInternalInvariant.New(fmt.Sprintf("context stack depth %d after invocation", e.stack.depth())),
			SQL: input,
		})
	}
	return errs, e.warnings
}

// TransformView rewrites a view's SELECT body.
func (t *Transformer) TransformView(oracleSQL, currentSchema string) Result {
	var res Result
	errs, warnings := t.run(currentSchema, oracleSQL, func(e *emitter) error {
		q, parseErrs := plsql.ParseSelect(e.src)
		if len(parseErrs) > 0 {
			return ErrParse.New(parseErrs[0].Error())
		}
		out, err := e.emit(q)
		if err != nil {
			return err
		}
		res.PostgresSQL = out
		return nil
	})
	res.Errors = append(errs, warnings...)
	return res
}

// TransformFunctionOrProcedure rewrites a standalone function or
// procedure into its CREATE OR REPLACE FUNCTION DDL.
func (t *Transformer) TransformFunctionOrProcedure(oracleSource, currentSchema string) Result {
	var res Result
	errs, warnings := t.run(currentSchema, oracleSource, func(e *emitter) error {
		sub, parseErrs := plsql.ParseFunctionOrProcedure(e.src)
		if len(parseErrs) > 0 {
			return ErrParse.New(parseErrs[0].Error())
		}
		out, err := e.emit(sub)
		if err != nil {
			return err
		}
		res.PostgresSQL = out
		return nil
	})
	res.Errors = append(errs, warnings...)
	return res
}

// TransformTrigger rewrites a trigger record into its function + trigger
// DDL pair.
func (t *Transformer) TransformTrigger(rec TriggerRecord) TriggerResult {
	var res TriggerResult
	errs, warnings := t.run(rec.Schema, rec.Body, func(e *emitter) error {
		fnDDL, trgDDL, err := e.transformTrigger(rec)
		if err != nil {
			return err
		}
		res.FunctionDDL = fnDDL
		res.TriggerDDL = trgDDL
		return nil
	})
	for i := range errs {
		if errs[i].Object == "" {
			errs[i].Object = strings.ToLower(rec.Schema) + "." + strings.ToLower(rec.Name)
		}
	}
	res.Errors = append(errs, warnings...)
	return res
}

// TransformPackageBody flattens a package body into one function per
// member plus the variable accessor helpers. Every member is attempted;
// the result carries partial successes alongside the errors.
func (t *Transformer) TransformPackageBody(schema, packageName, specSource, bodySource string) PackageResult {
	var res PackageResult
	schema = strings.ToLower(schema)
	packageName = strings.ToLower(packageName)
	object := schema + "." + packageName

	errs, warnings := t.run(schema, bodySource, func(e *emitter) error {
		specStripped := plsql.StripComments(specSource)
		spec, specErrs := plsql.ParsePackageSpec(specStripped)
		if len(specErrs) > 0 {
			return ErrParse.New("package spec: " + specErrs[0].Error())
		}

		body, bodyErrs := plsql.ParsePackageBody(e.src)
		if len(bodyErrs) > 0 {
			return ErrParse.New("package body: " + bodyErrs[0].Error())
		}

		vars, types := packageVarsFromSpec(spec, specStripped)
		pc := &packageContext{
			schema:     schema,
			name:       packageName,
			vars:       vars,
			varSet:     make(map[string]*metadata.PackageVariable, len(vars)),
			types:      types,
			bodySource: e.src,
		}
		for i := range vars {
			pc.varSet[vars[i].Name] = &vars[i]
		}
		e.pkg = pc

		// Helpers are emitted once per package, ahead of all members,
		// whenever the spec declares variables.
		if len(vars) > 0 && !pc.helpersEmitted {
			res.Helpers = e.emitPackageHelpers(schema, packageName, vars)
			pc.helpersEmitted = true
		}

		for _, sub := range body.Subprograms {
			qualified := fmt.Sprintf("%s.%s__%s", schema, packageName, sub.SimpleName())
			e.indent = 0
			ddl, err := e.emitSubprogramNamed(sub, qualified)
			if err != nil {
				res.Errors = append(res.Errors, TransformError{
					Err:    err,
					Object: qualified,
					SQL:    t.sliceSource(e.src, sub),
				})
				continue
			}
			res.Functions = append(res.Functions, PackageFunctionResult{QualifiedName: qualified, DDL: ddl})
		}
		return nil
	})
	for i := range errs {
		if errs[i].Object == "" {
			errs[i].Object = object
		}
	}
	res.Errors = append(res.Errors, errs...)
	res.Errors = append(res.Errors, warnings...)
	return res
}

// TransformTypeBody flattens an object-type body into one function per
// method.
func (t *Transformer) TransformTypeBody(schema, typeName, bodySource string) TypeBodyResult {
	var res TypeBodyResult
	errs, warnings := t.run(schema, bodySource, func(e *emitter) error {
		methods, methodErrs := e.transformTypeBody(schema, typeName, bodySource)
		res.Methods = methods
		res.Errors = append(res.Errors, methodErrs...)
		return nil
	})
	for i := range errs {
		if errs[i].Object == "" {
			errs[i].Object = strings.ToLower(schema) + "." + strings.ToLower(typeName)
		}
	}
	res.Errors = append(res.Errors, errs...)
	res.Errors = append(res.Errors, warnings...)
	return res
}

// sliceSource extracts a subprogram's own text for error reporting.
func (t *Transformer) sliceSource(src string, n plsql.Node) string {
	start, stop := n.Span()
	if start < 0 || stop > len(src) || start >= stop {
		return src
	}
	return src[start:stop]
}
