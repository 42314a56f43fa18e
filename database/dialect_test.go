package database

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/gurre/dskit/config"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeradataParams(t *testing.T) {
	cfg := config.DatabaseConfig{
		Dialect:  config.DialectTeradata,
		Host:     "td.example.com",
		Port:     1025,
		User:     "analyst",
		Password: "pw",
		Database: "sandbox",
		Options:  map[string]string{"logmech": "LDAP", "tmode": "ANSI"},
	}

	params, err := TeradataParams(cfg)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(params), &got))
	assert.Equal(t, map[string]string{
		"host":     "td.example.com",
		"dbs_port": "1025",
		"user":     "analyst",
		"password": "pw",
		"database": "sandbox",
		"logmech":  "LDAP",
		"tmode":    "ANSI",
	}, got)
}

func TestTeradataParamsOmitsEmpty(t *testing.T) {
	params, err := TeradataParams(config.DatabaseConfig{Dialect: config.DialectTeradata, Host: "td"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"td"}`, params)
}

func TestRedshiftConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Dialect:  config.DialectRedshift,
		Host:     "rs.example.com",
		User:     "etl",
		Password: "p@ss word",
		Database: "analytics",
		Options:  map[string]string{"sslmode": "disable"},
	}

	cc, err := RedshiftConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "rs.example.com", cc.Host)
	assert.Equal(t, uint16(config.DefaultRedshiftPort), cc.Port)
	assert.Equal(t, "etl", cc.User)
	assert.Equal(t, "p@ss word", cc.Password)
	assert.Equal(t, "analytics", cc.Database)
	assert.Nil(t, cc.TLSConfig)
	assert.Equal(t, pgx.QueryExecModeSimpleProtocol, cc.DefaultQueryExecMode)
}

func TestOpenUnsupportedDialect(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Dialect: "oracle", Host: "h"})
	assert.ErrorContains(t, err, "unsupported dialect")
}

func TestOpenRedshiftIsLazy(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{
		Dialect: config.DialectRedshift,
		Host:    "127.0.0.1",
		Port:    1,
		Options: map[string]string{"sslmode": "disable"},
	})
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
