package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gurre/dskit/config"
	"github.com/gurre/dskit/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var teradataCfg = config.DatabaseConfig{
	Dialect:  config.DialectTeradata,
	Host:     "td.example.com",
	Port:     config.DefaultTeradataPort,
	User:     "analyst",
	Password: "pw",
}

// newMockClient returns a Client whose connections go to sqlmock. The opener
// records the resolved config it was called with.
func newMockClient(t *testing.T, cfg config.DatabaseConfig, opts ...Option) (*Client, sqlmock.Sqlmock, *config.DatabaseConfig) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	var opened config.DatabaseConfig
	opener := func(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
		opened = c
		return db, nil
	}

	client, err := New(cfg, append(opts, WithOpener(opener))...)
	require.NoError(t, err)
	return client, mock, &opened
}

func TestGetData(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	rows := sqlmock.NewRows([]string{"id", "name"})
	for i := 0; i < 10; i++ {
		rows.AddRow(int64(i), []byte("row"))
	}
	mock.ExpectQuery("select top 10 * from sandbox.sales").WillReturnRows(rows)
	mock.ExpectClose()

	data, err := client.GetData(context.Background(), "-- sample\nselect top 10 * from sandbox.sales;\n")
	require.NoError(t, err)
	assert.Equal(t, 10, data.Len())
	assert.Equal(t, []string{"id", "name"}, data.Columns)
	assert.Equal(t, "row", data.Rows[0][1], "byte slices are returned as strings")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteReturnData(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	create := "create volatile table tmp as (select * from sandbox.sales) with data on commit preserve rows"
	mock.ExpectExec(create).WillReturnResult(sqlmock.NewResult(0, 10))
	rows := sqlmock.NewRows([]string{"id"})
	for i := 0; i < 10; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery("select * from tmp").WillReturnRows(rows)
	mock.ExpectClose()

	script := "/* build a sample */\n" + create + ";\nselect * from tmp;\n"
	data, err := client.Execute(context.Background(), script, ExecOptions{ReturnData: true})
	require.NoError(t, err)
	assert.Equal(t, 10, data.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteCountsAffectedRows(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	mock.ExpectExec("delete from t where a = 1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("delete from t where a = 2").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectClose()

	res, err := client.Execute(context.Background(), "delete from t where a = 1; delete from t where a = 2;", ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.RowsAffected)
	assert.Zero(t, res.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTransactionCommits(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	mock.ExpectBegin()
	mock.ExpectExec("insert into t values (1)").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into t values (2)").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	_, err := client.Execute(context.Background(), "insert into t values (1);\ninsert into t values (2);", ExecOptions{Transaction: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTransactionRollsBackOnError(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	boom := errors.New("syntax error")
	mock.ExpectBegin()
	mock.ExpectExec("insert into t values (1)").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into t valuez (2)").WillReturnError(boom)
	mock.ExpectRollback()
	mock.ExpectClose()

	_, err := client.Execute(context.Background(), "insert into t values (1); insert into t valuez (2);", ExecOptions{Transaction: true})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "statement 2")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteNoStatements(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	_, err := client.Execute(context.Background(), "-- nothing to do\n/* at all */", ExecOptions{})
	assert.ErrorIs(t, err, ErrNoStatements)
	require.NoError(t, mock.ExpectationsWereMet(), "no connection is opened for empty input")
}

func TestExecuteKeepsLiteralCommentMarkers(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	mock.ExpectQuery("select '--x' as a, '/*y*/' as b").
		WillReturnRows(sqlmock.NewRows([]string{"a", "b"}).AddRow("--x", "/*y*/"))
	mock.ExpectClose()

	data, err := client.GetData(context.Background(), "select '--x' as a, '/*y*/' as b -- trailing")
	require.NoError(t, err)
	assert.Equal(t, []any{"--x", "/*y*/"}, data.Rows[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectAutocommit(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)
	ctx := context.Background()

	conn, err := client.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, conn.Autocommit())
	assert.Equal(t, config.DialectTeradata, conn.Dialect())

	mock.ExpectBegin()
	mock.ExpectExec("update t set a = 1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	mock.ExpectClose()

	require.NoError(t, conn.SetAutocommit(false))
	assert.False(t, conn.Autocommit())

	n, err := conn.Exec(ctx, "update t set a = 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Switching back on commits the open transaction.
	require.NoError(t, conn.SetAutocommit(true))
	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectResolvesSecret(t *testing.T) {
	store := secret.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "prod/redshift", map[string]string{
		"host":     "rs.example.com",
		"username": "etl",
		"password": "pw",
		"dbname":   "analytics",
	}))

	cfg := config.DatabaseConfig{Dialect: config.DialectRedshift, Secret: "prod/redshift"}
	client, mock, opened := newMockClient(t, cfg, WithSecrets(store))
	mock.ExpectClose()

	conn, err := client.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Equal(t, "rs.example.com", opened.Host)
	assert.Equal(t, "etl", opened.User)
	assert.Equal(t, "analytics", opened.Database)
	assert.Equal(t, config.DefaultRedshiftPort, opened.Port)
}

func TestConnectSecretErrors(t *testing.T) {
	cfg := config.DatabaseConfig{Dialect: config.DialectRedshift, Secret: "prod/redshift"}

	client, _, _ := newMockClient(t, cfg)
	_, err := client.Connect(context.Background())
	assert.Error(t, err, "a secret without a store cannot be resolved")

	client, _, _ = newMockClient(t, cfg, WithSecrets(secret.NewMemoryStore()))
	_, err = client.Connect(context.Background())
	assert.ErrorIs(t, err, secret.ErrNotFound)
}

func TestClientErrorPropagates(t *testing.T) {
	client, mock, _ := newMockClient(t, teradataCfg)

	boom := errors.New("[Error 3807] Object 'nope' does not exist")
	mock.ExpectQuery("select * from nope").WillReturnError(boom)
	mock.ExpectClose()

	_, err := client.GetData(context.Background(), "select * from nope")
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"teradata": teradataCfg}}

	_, err := NewFromConfig(cfg, "teradata")
	require.NoError(t, err)

	_, err = NewFromConfig(cfg, "missing")
	assert.ErrorIs(t, err, config.ErrUnknownDatabase)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(config.DatabaseConfig{Dialect: "oracle", Host: "h"})
	assert.Error(t, err)
}
