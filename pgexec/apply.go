// Package pgexec applies emitted DDL to PostgreSQL. Statements run in the
// caller's order — trigger functions before their triggers, package
// helpers before package bodies — and failures are collected per
// statement without aborting the batch.
package pgexec

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// Statement is one DDL to execute, tagged with the object it belongs to
// for error reporting.
type Statement struct {
	Object string
	SQL    string
}

// ApplyError is one failed statement.
type ApplyError struct {
	Object string
	SQL    string
	Err    error
}

func (e ApplyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Object, e.Err)
}

// Execer is the slice of pgx.Conn the applier needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Applier executes DDL batches.
type Applier struct {
	conn Execer
	log  *logrus.Entry
}

// Connect opens a PostgreSQL connection from a pgx DSN or URL.
func Connect(ctx context.Context, dsn string) (*Applier, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewApplier(conn), nil
}

// NewApplier wraps an existing connection.
func NewApplier(conn Execer) *Applier {
	return &Applier{
		conn: conn,
		log:  logrus.WithField("component", "pgexec"),
	}
}

// Apply runs every statement in order. A failure is recorded and the
// batch continues; the job completes with a non-zero error count but
// still lands the successful objects.
func (a *Applier) Apply(ctx context.Context, stmts []Statement) []ApplyError {
	var errs []ApplyError
	for _, st := range stmts {
		if _, err := a.conn.Exec(ctx, st.SQL); err != nil {
			a.log.WithField("object", st.Object).WithError(err).Error("ddl failed")
			errs = append(errs, ApplyError{Object: st.Object, SQL: st.SQL, Err: err})
			continue
		}
		a.log.WithField("object", st.Object).Debug("ddl applied")
	}
	return errs
}
