package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/viant/visual-archive/archive"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Index every image in the source directory",
	Long: `Embed, normalize and tag every .png/.jpg/.jpeg file in the source
directory, then replace the persisted archive.

Files that cannot be read or embedded are skipped and listed. A missing
source directory is created and nothing is written.

Examples:
  visarchive build
  visarchive build --source ./art`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, err := cmd.Flags().GetString("source")
		if err != nil {
			return fmt.Errorf("failed to read 'source' flag: %w", err)
		}
		if source == "" {
			source = globalConfig.Archive.SourceDir
		}

		store, closeStore, err := openStore(ctx, globalConfig)
		if err != nil {
			return err
		}
		defer closeStore()
		emb, err := newEmbedder(globalConfig, logger)
		if err != nil {
			return err
		}

		builder := archive.NewBuilder(store, emb,
			archive.WithLabels(globalConfig.Embedder.Labels),
			archive.WithLogger(logger),
		)
		report, err := builder.Build(ctx, source)
		if report != nil {
			printReport(cmd, report)
		}
		return err
	},
}

func printReport(cmd *cobra.Command, r *archive.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, r.Message())
	if r.Status == archive.StatusBuilt {
		tags := make([]string, 0, len(r.Tags))
		for tag := range r.Tags {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			fmt.Fprintf(out, "  %-12s %d\n", tag, r.Tags[tag])
		}
	}
	if verbose {
		for _, f := range r.Failures {
			fmt.Fprintf(out, "  skipped %s\n", f.Error())
		}
	}
}

func init() {
	buildCmd.Flags().String("source", "", "image source directory (default from config)")
	rootCmd.AddCommand(buildCmd)
}
