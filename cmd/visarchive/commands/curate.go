package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viant/visual-archive/curator"
	"github.com/viant/visual-archive/embedder"
)

var curateCmd = &cobra.Command{
	Use:   "curate <image>",
	Short: "Describe the closest archived works",
	Long: `Ask the curator about an image. The reply names the dominant style
among the closest works and the best match, followed by the matches.

Example:
  visarchive curate sketch.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		img, err := embedder.ReadImage(args[0])
		if err != nil {
			return err
		}
		// A missing archive is part of the conversation, not a failure.
		engine, _, closeStore, err := openEngine(ctx, globalConfig, logger, true)
		if err != nil {
			return err
		}
		defer closeStore()

		cur := curator.New(engine, curator.WithTopK(globalConfig.Query.CompactTopK))
		finding, err := cur.Process(ctx, img)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cur.Respond(finding))
		if len(finding.Matches) == 0 {
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return printMatches(cmd.OutOrStdout(), finding.Matches)
	},
}

func init() {
	rootCmd.AddCommand(curateCmd)
}
