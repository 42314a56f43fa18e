package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gurre/dskit/access"
	"github.com/gurre/dskit/storage"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newUploadCmd(a *app) *cobra.Command {
	var dests, files []string
	var preflight bool

	cmd := &cobra.Command{
		Use:   "upload <bucket>",
		Short: "Upload local files to an S3 bucket",
		Long: `Upload one or more local files. --dest and --file may each be repeated.
When both are repeated they pair up in order; a single value on either side is
used for every entry of the other. A destination ending in "/" is a folder and
receives the file under its own name.`,
		Example: `  dskit upload data-scientist-share --dest data/test/ --file abc2.txt
  dskit upload data-scientist-share --dest data/test/ --dest data/test1/ --file abc2.txt --file sales_events.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bucket := args[0]
			dest := storage.OneOrManyOf(dests)
			local := storage.OneOrManyOf(files)

			if preflight {
				transfers, err := storage.Plan(dest, local)
				if err != nil {
					return err
				}
				svc, err := a.loadAWS(ctx)
				if err != nil {
					return err
				}
				keys := make([]string, len(transfers))
				for i, t := range transfers {
					keys[i] = t.Key
				}
				if err := access.NewChecker(svc.IAM, svc.STS).CanPut(ctx, bucket, keys); err != nil {
					return err
				}
			}

			client, err := a.storage(ctx)
			if err != nil {
				return err
			}
			if _, err := client.Upload(ctx, bucket, dest, local); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pterm.Success.Sprintf("uploaded %d file(s) to s3://%s", max(dest.Len(), local.Len()), bucket))
			fmt.Fprintln(out, client.Metrics().GenerateReport())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&dests, "dest", nil, "Destination key or folder (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "Local file to upload (repeatable)")
	cmd.Flags().BoolVar(&preflight, "preflight", false, "Check s3:PutObject permission before uploading")
	_ = cmd.MarkFlagRequired("dest")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var filter storage.Filter
	var keysOnly bool

	cmd := &cobra.Command{
		Use:     "ls <bucket>",
		Short:   "List objects in an S3 bucket",
		Example: `  dskit ls data-scientist-share --prefix nordypy --suffix .csv --keys`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.storage(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if keysOnly {
				for key, err := range client.ListKeys(ctx, args[0], filter) {
					if err != nil {
						return err
					}
					fmt.Fprintln(out, key)
				}
				return nil
			}

			data := [][]string{{"Key", "Size", "Last Modified"}}
			for obj, err := range client.ListObjects(ctx, args[0], filter) {
				if err != nil {
					return err
				}
				var size, modified string
				if obj.Size != nil {
					size = strconv.FormatInt(*obj.Size, 10)
				}
				if obj.LastModified != nil {
					modified = obj.LastModified.UTC().Format(time.RFC3339)
				}
				data = append(data, []string{*obj.Key, size, modified})
			}
			return renderTable(out, data)
		},
	}
	cmd.Flags().StringVar(&filter.Prefix, "prefix", "", "Only list keys starting with this prefix")
	cmd.Flags().StringVar(&filter.Suffix, "suffix", "", "Only list keys ending with this suffix")
	cmd.Flags().BoolVar(&keysOnly, "keys", false, "Print keys only, one per line")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "get <bucket> <key> <local-path>",
		Short:   "Download an object to a local file",
		Example: `  dskit get data-scientist-share data/test/abc2.txt ./abc2.txt`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.storage(ctx)
			if err != nil {
				return err
			}
			if err := client.Download(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("downloaded s3://%s/%s to %s", args[0], args[1], args[2]))
			return nil
		},
	}
}
