package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gurre/dskit/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// TeradataDriverName is the database/sql driver name registered by the
// Teradata SQL Driver for Go. The application links the driver; this package
// only opens connections through it.
const TeradataDriverName = "teradatasql"

// Opener opens a *sql.DB for a resolved database entry.
type Opener func(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error)

// Open opens cfg with the driver for its dialect.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Dialect {
	case config.DialectTeradata:
		params, err := TeradataParams(cfg)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(TeradataDriverName, params)
		if err != nil {
			return nil, fmt.Errorf("failed to open teradata connection: %w", err)
		}
		return db, nil

	case config.DialectRedshift:
		connConfig, err := RedshiftConfig(cfg)
		if err != nil {
			return nil, err
		}
		return stdlib.OpenDB(*connConfig), nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
}

// TeradataParams renders cfg as the JSON connection parameters the Teradata
// driver expects. Options are passed through unchanged and win over the
// named fields.
func TeradataParams(cfg config.DatabaseConfig) (string, error) {
	params := map[string]string{
		"host": cfg.Host,
	}
	if cfg.Port != 0 {
		params["dbs_port"] = strconv.Itoa(cfg.Port)
	}
	if cfg.User != "" {
		params["user"] = cfg.User
	}
	if cfg.Password != "" {
		params["password"] = cfg.Password
	}
	if cfg.Database != "" {
		params["database"] = cfg.Database
	}
	for k, v := range cfg.Options {
		params[k] = v
	}

	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode teradata parameters: %w", err)
	}
	return string(data), nil
}

// RedshiftConfig builds a pgx connection config for cfg. Options become
// connection string parameters (for example sslmode). Queries use the simple
// protocol, which Redshift handles more reliably than prepared statements.
func RedshiftConfig(cfg config.DatabaseConfig) (*pgx.ConnConfig, error) {
	port := cfg.Port
	if port == 0 {
		port = config.DefaultRedshiftPort
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()

	connConfig, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("invalid redshift connection settings: %w", err)
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return connConfig, nil
}
