package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// Conn is one database session. Statements run on the same underlying
// connection, so volatile and temporary tables survive between calls.
//
// With autocommit on (the default) every statement commits on its own. With
// autocommit off, the first statement opens a transaction that lasts until
// Commit, Rollback, SetAutocommit(true) or Close.
type Conn struct {
	dialect    string
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	autocommit bool
	logger     *slog.Logger
}

func newConn(ctx context.Context, dialect string, db *sql.DB, logger *slog.Logger) (*Conn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}
	return &Conn{
		dialect:    dialect,
		db:         db,
		conn:       conn,
		autocommit: true,
		logger:     logger,
	}, nil
}

// Dialect returns the dialect the session was opened with.
func (c *Conn) Dialect() string {
	return c.dialect
}

// Autocommit reports whether each statement commits on its own.
func (c *Conn) Autocommit() bool {
	return c.autocommit
}

// SetAutocommit switches commit mode. Turning autocommit on commits any
// pending transaction first.
func (c *Conn) SetAutocommit(on bool) error {
	if on && c.tx != nil {
		if err := c.Commit(); err != nil {
			return err
		}
	}
	c.autocommit = on
	return nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *Conn) target(ctx context.Context) (execQuerier, error) {
	if c.autocommit {
		return c.conn, nil
	}
	if c.tx == nil {
		tx, err := c.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		c.tx = tx
	}
	return c.tx, nil
}

// Exec runs a statement and returns the number of affected rows, or -1 when
// the driver does not report it.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	t, err := c.target(ctx)
	if err != nil {
		return 0, err
	}

	c.logger.Debug("exec", "dialect", c.dialect, "sql", query)
	res, err := t.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// Query runs a statement and collects all of its rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	t, err := c.target(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("query", "dialect", c.dialect, "sql", query)
	rows, err := t.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	return scanResult(rows)
}

// Commit commits the pending transaction, if any.
func (c *Conn) Commit() error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback discards the pending transaction, if any.
func (c *Conn) Rollback() error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

// Close rolls back any pending transaction and releases the session.
func (c *Conn) Close() error {
	var errs []error
	if err := c.Rollback(); err != nil {
		errs = append(errs, err)
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}
