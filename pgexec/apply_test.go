package pgexec

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeExecer records executed SQL and fails on marked statements.
type fakeExecer struct {
	executed []string
	failOn   map[string]error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err, ok := f.failOn[sql]; ok {
		return pgconn.CommandTag{}, err
	}
	f.executed = append(f.executed, sql)
	return pgconn.CommandTag{}, nil
}

func TestApply_PreservesOrder(t *testing.T) {
	fake := &fakeExecer{}
	a := NewApplier(fake)

	stmts := []Statement{
		{Object: "hr.t_func", SQL: "CREATE FUNCTION f"},
		{Object: "hr.t", SQL: "CREATE TRIGGER t"},
	}
	if errs := a.Apply(context.Background(), stmts); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(fake.executed) != 2 || fake.executed[0] != "CREATE FUNCTION f" {
		t.Errorf("order not preserved: %v", fake.executed)
	}
}

func TestApply_CollectsFailuresAndContinues(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakeExecer{failOn: map[string]error{"BAD": boom}}
	a := NewApplier(fake)

	stmts := []Statement{
		{Object: "a", SQL: "GOOD1"},
		{Object: "b", SQL: "BAD"},
		{Object: "c", SQL: "GOOD2"},
	}
	errs := a.Apply(context.Background(), stmts)
	if len(errs) != 1 || errs[0].Object != "b" {
		t.Fatalf("errors = %v", errs)
	}
	if len(fake.executed) != 2 {
		t.Errorf("batch did not continue past the failure: %v", fake.executed)
	}
}
