package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gurre/dskit/database"
	"github.com/gurre/dskit/sqltext"
	"github.com/gurre/dskit/storage"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Output formats for query results.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

// sqlSource is SQL given inline or by file. A file may be a local path or an
// s3:// URI.
type sqlSource struct {
	sql  string
	file string
}

func (s *sqlSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.sql, "sql", "", "SQL text to run")
	cmd.Flags().StringVar(&s.file, "file", "", "Local path or s3:// URI of a SQL file")
	cmd.MarkFlagsMutuallyExclusive("sql", "file")
	cmd.MarkFlagsOneRequired("sql", "file")
}

func (a *app) readSQL(ctx context.Context, src sqlSource) (string, error) {
	if src.sql != "" {
		return src.sql, nil
	}
	if !storage.IsURI(src.file) {
		return sqltext.ReadFile(src.file)
	}

	bucket, key, err := storage.ParseURI(src.file)
	if err != nil {
		return "", err
	}
	client, err := a.storage(ctx)
	if err != nil {
		return "", err
	}
	return client.ReadText(ctx, bucket, key)
}

func newQueryCmd(a *app) *cobra.Command {
	var src sqlSource
	var format string

	cmd := &cobra.Command{
		Use:   "query <database>",
		Short: "Run SQL and print the rows of the final statement",
		Example: `  dskit query teradata --sql "select top 10 * from sandbox.sales"
  dskit query redshift --file s3://data-scientist-share/sql/daily.sql -o csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := a.readSQL(ctx, src)
			if err != nil {
				return err
			}
			client, err := a.database(ctx, args[0])
			if err != nil {
				return err
			}

			start := time.Now()
			res, err := client.GetData(ctx, text)
			if err != nil {
				return err
			}
			a.logger.Info("query finished", "database", args[0], "rows", res.Len(), "duration", time.Since(start))
			return writeResult(cmd.OutOrStdout(), res, format)
		},
	}
	src.register(cmd)
	registerFormat(cmd, &format)
	return cmd
}

func newExecCmd(a *app) *cobra.Command {
	var src sqlSource
	var opts database.ExecOptions
	var format string

	cmd := &cobra.Command{
		Use:   "exec <database>",
		Short: "Run one or more SQL statements",
		Long: `Run every statement of a SQL script on one session. Comments are stripped
and the script is split on ";" before it is sent to the database.`,
		Example: `  dskit exec teradata --file build_sample.sql --return-data
  dskit exec redshift --sql "delete from stage.events where day < current_date - 30" --transaction`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := a.readSQL(ctx, src)
			if err != nil {
				return err
			}
			client, err := a.database(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := client.Execute(ctx, text, opts)
			if err != nil {
				return err
			}
			if opts.ReturnData {
				return writeResult(cmd.OutOrStdout(), res, format)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("%d rows affected", res.RowsAffected))
			return err
		},
	}
	src.register(cmd)
	registerFormat(cmd, &format)
	cmd.Flags().BoolVar(&opts.ReturnData, "return-data", false, "Print the rows of the final statement")
	cmd.Flags().BoolVar(&opts.Transaction, "transaction", false, "Run all statements in one transaction")
	return cmd
}

func newDatabasesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the databases in the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := pterm.TableData{{"Name", "Dialect", "Host", "Port", "Secret"}}
			for _, key := range a.cfg.DatabaseKeys() {
				db := a.cfg.Databases[key]
				data = append(data, []string{key, db.Dialect, db.Host, strconv.Itoa(db.Port), db.Secret})
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
}

var errInvalidFormat = errors.New("output format must be table, json or csv")

func registerFormat(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "output", "o", formatTable, "Output format (table|json|csv)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		switch *format {
		case formatTable, formatJSON, formatCSV:
			return nil
		}
		return errInvalidFormat
	}
}

func writeResult(w io.Writer, res *database.Result, format string) error {
	switch format {
	case formatTable:
		data := pterm.TableData{res.Columns}
		for _, row := range res.Rows {
			line := make([]string, len(row))
			for i, v := range row {
				line[i] = cell(v)
			}
			data = append(data, line)
		}
		return renderTable(w, data)

	case formatJSON:
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err

	case formatCSV:
		return res.WriteCSV(w)
	}
	return errInvalidFormat
}

func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
