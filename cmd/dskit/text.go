package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/gurre/dskit/sqltext"
	"github.com/spf13/cobra"
)

func newStripCmd(a *app) *cobra.Command {
	var split bool

	cmd := &cobra.Command{
		Use:   "strip [file]",
		Short: "Remove SQL comments",
		Long: `Print SQL with every "--" line comment and "/* */" block comment removed.
Comment markers inside quoted literals are kept. Reads standard input when no
file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			text, err := sqltext.Read(in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if split {
				for _, stmt := range sqltext.Statements(text) {
					fmt.Fprintf(out, "%s;\n", stmt)
				}
				return nil
			}
			_, err = io.WriteString(out, text)
			return err
		},
	}
	cmd.Flags().BoolVar(&split, "statements", false, "Print each statement terminated by \";\" instead")
	return cmd
}

func newSecretCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "secret <name>",
		Short: "Show the field names of a secret",
		Long: `Fetch a secret from the configured backend and print its field names.
Values are never printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.secretFields(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return nil
		},
	}
}

func (a *app) secretFields(ctx context.Context, name string) ([]string, error) {
	store, err := a.secretStore(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return names, nil
}
