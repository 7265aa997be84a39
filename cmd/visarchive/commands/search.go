package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/viant/visual-archive/embedder"
	"github.com/viant/visual-archive/query"
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Rank archived images by similarity",
	Long: `Embed the given image and list the most similar archived images.

The closest --k images are retrieved first; --tag then keeps only images
carrying one of the given tags, so filtering can return fewer than k.

Examples:
  visarchive search query.jpg
  visarchive search query.jpg --tag Sketch --tag Abstract
  visarchive search query.jpg --k 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tags, err := cmd.Flags().GetStringSlice("tag")
		if err != nil {
			return fmt.Errorf("failed to read 'tag' flag: %w", err)
		}
		k, err := cmd.Flags().GetInt("k")
		if err != nil {
			return fmt.Errorf("failed to read 'k' flag: %w", err)
		}
		if k == 0 {
			k = globalConfig.Query.TopK
		}
		if k < 0 {
			return fmt.Errorf("--k must be positive, got %d", k)
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		img, err := embedder.ReadImage(args[0])
		if err != nil {
			return err
		}
		engine, _, closeStore, err := openEngine(ctx, globalConfig, logger, false)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := engine.Search(ctx, img, query.Options{TopK: k, Tags: tags})
		if err != nil {
			return describe(err)
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dominant style: %s\n\n", res.DominantStyle)
		return printMatches(cmd.OutOrStdout(), res.Matches)
	},
}

func printMatches(w io.Writer, matches []query.Match) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFILE\tTAG\tARTIST\tYEAR\tSIMILARITY")
	for i, m := range matches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f%%\n", i+1, m.Filename, m.Tag, m.Artist, m.Year, m.ScorePercent)
	}
	return tw.Flush()
}

func init() {
	searchCmd.Flags().StringSlice("tag", nil, "keep only matches with this tag (repeatable)")
	searchCmd.Flags().Int("k", 0, "number of candidates to retrieve (default from config)")
	searchCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(searchCmd)
}
