// Package transformer rewrites Oracle SQL and PL/SQL into PostgreSQL.
package transformer

import (
	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrParse wraps parser diagnostics.
	ErrParse = errors.NewKind("parse: %s")

	// ErrUnsupportedConstruct marks input that parsed but cannot be
	// rewritten (non-equality (+), OUT parameters, both-sided (+), ...).
	ErrUnsupportedConstruct = errors.NewKind("unsupported construct: %s")

	// ErrAmbiguousReference marks a name resolving to multiple targets.
	ErrAmbiguousReference = errors.NewKind("ambiguous reference: %s")

	// ErrMetadataMissing marks a rewrite that required an index entry
	// that is absent. Pass-through references never raise it.
	ErrMetadataMissing = errors.NewKind("metadata missing: %s")

	// ErrInternalInvariant is fatal to an invocation: push/pop imbalance,
	// corrupt type-cache key, or a panic escaping an emit function.
	ErrInternalInvariant = errors.NewKind("internal invariant violated: %s")
)

// TransformError is one collected diagnostic. Errors are returned, never
// thrown across the entry-point boundary.
type TransformError struct {
	Err     error
	Object  string // trigger/package/type name for operator triage
	SQL     string // the offending input text
	Warning bool   // true for design notes that do not fail the object
}

func (t TransformError) Error() string {
	if t.Object != "" {
		return t.Object + ": " + t.Err.Error()
	}
	return t.Err.Error()
}

// Unwrap exposes the kind for errors.Is checks.
func (t TransformError) Unwrap() error { return t.Err }
