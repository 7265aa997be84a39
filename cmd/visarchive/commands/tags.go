package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tags present in the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, _, closeStore, err := openEngine(cmd.Context(), globalConfig, logger, false)
		if err != nil {
			return err
		}
		defer closeStore()
		tags, err := engine.Tags()
		if err != nil {
			return describe(err)
		}
		for _, tag := range tags {
			fmt.Fprintln(cmd.OutOrStdout(), tag)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}
