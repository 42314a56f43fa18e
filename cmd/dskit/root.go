package main

import (
	"github.com/gurre/dskit/config"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dskit",
		Short: "Data science toolkit for Teradata, Redshift and S3",
		Long: `dskit runs SQL against the databases named in the configuration file and
moves files between the local disk and S3 buckets.

Database entries, the AWS region and the secret backend are read from
~/config.yaml unless --config points elsewhere.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags().Changed("config"), cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "Path to the YAML configuration file")
	flags.StringVar(&a.region, "region", "", "AWS region (overrides the configuration file)")
	flags.StringVar(&a.profile, "profile", "", "AWS shared config profile")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (text|json)")

	root.AddCommand(
		newQueryCmd(a),
		newExecCmd(a),
		newDatabasesCmd(a),
		newUploadCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newStripCmd(a),
		newSecretCmd(a),
	)
	return root
}
