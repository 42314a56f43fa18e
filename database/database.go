// Package database connects to the named Teradata and Redshift databases from
// the configuration file and runs SQL against them. SQL text is stripped of
// comments and split into statements before it reaches the driver; the
// drivers themselves own the wire protocol and connection handling.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gurre/dskit/config"
	"github.com/gurre/dskit/logging"
	"github.com/gurre/dskit/secret"
	"github.com/gurre/dskit/sqltext"
)

// ErrNoStatements is returned when SQL text holds nothing but comments and whitespace.
var ErrNoStatements = errors.New("no SQL statements")

// Client runs SQL against one configured database.
type Client struct {
	cfg     config.DatabaseConfig
	secrets secret.Store
	open    Opener
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSecrets sets the store used to resolve the entry's secret.
func WithSecrets(s secret.Store) Option {
	return func(c *Client) { c.secrets = s }
}

// WithLogger sets the logger used for statements and connection events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithOpener replaces the function that opens the database handle.
func WithOpener(o Opener) Option {
	return func(c *Client) { c.open = o }
}

// New creates a Client for cfg.
func New(cfg config.DatabaseConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	c := &Client{cfg: cfg, open: Open}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("dialect", cfg.Dialect)
	return c, nil
}

// NewFromConfig creates a Client for the database registered under key.
func NewFromConfig(cfg *config.Config, key string, opts ...Option) (*Client, error) {
	db, err := cfg.Database(key)
	if err != nil {
		return nil, err
	}
	return New(db, opts...)
}

// resolve overlays the entry's secret, if any, onto the configured fields.
func (c *Client) resolve(ctx context.Context) (config.DatabaseConfig, error) {
	if c.cfg.Secret == "" {
		return c.cfg, nil
	}
	if c.secrets == nil {
		return config.DatabaseConfig{}, fmt.Errorf("database secret %s configured but no secret store given", c.cfg.Secret)
	}

	fields, err := c.secrets.Get(ctx, c.cfg.Secret)
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("failed to resolve database secret: %w", err)
	}
	resolved, err := c.cfg.Merge(fields)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	if resolved.Host == "" {
		return config.DatabaseConfig{}, fmt.Errorf("database secret %s has no host", c.cfg.Secret)
	}
	return resolved, nil
}

// Connect opens a new session. The caller owns the returned Conn and must Close it.
//
// Example:
//
//	conn, err := client.Connect(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	cfg, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	db, err := c.open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	conn, err := newConn(ctx, cfg.Dialect, db, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("connected", "host", cfg.Host)
	return conn, nil
}

// ExecOptions controls Execute.
type ExecOptions struct {
	// ReturnData runs the final statement as a query and returns its rows.
	ReturnData bool
	// Transaction runs every statement in one transaction, committed at the end.
	Transaction bool
}

// Execute strips comments from sqlText, splits it into statements and runs
// them in order on a single session, which is closed before returning.
// Without ReturnData the result carries only the total affected row count.
//
// Example:
//
//	res, err := client.Execute(ctx, script, database.ExecOptions{ReturnData: true})
func (c *Client) Execute(ctx context.Context, sqlText string, opts ExecOptions) (res *Result, err error) {
	stmts := sqltext.Statements(sqlText)
	if len(stmts) == 0 {
		return nil, ErrNoStatements
	}

	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			res, err = nil, closeErr
		}
	}()

	if opts.Transaction {
		if err := conn.SetAutocommit(false); err != nil {
			return nil, err
		}
	}

	return runStatements(ctx, conn, stmts, opts.ReturnData)
}

func runStatements(ctx context.Context, conn *Conn, stmts []string, returnData bool) (*Result, error) {
	var affected int64
	for i, stmt := range stmts {
		if returnData && i == len(stmts)-1 {
			res, err := conn.Query(ctx, stmt)
			if err != nil {
				_ = conn.Rollback()
				return nil, fmt.Errorf("statement %d: %w", i+1, err)
			}
			if err := conn.Commit(); err != nil {
				return nil, err
			}
			return res, nil
		}

		n, err := conn.Exec(ctx, stmt)
		if err != nil {
			_ = conn.Rollback()
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
		if n > 0 {
			affected += n
		}
	}

	if err := conn.Commit(); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: affected}, nil
}

// GetData runs sqlText and returns the rows of its final statement. Any
// statements before it are executed first on the same session.
//
// Example:
//
//	data, err := client.GetData(ctx, "select top 10 * from sandbox.sales")
//	fmt.Println(data.Len())
func (c *Client) GetData(ctx context.Context, sqlText string) (*Result, error) {
	return c.Execute(ctx, sqlText, ExecOptions{ReturnData: true})
}
