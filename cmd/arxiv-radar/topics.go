package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scholarstream/arxiv-radar/internal/config"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List configured topics",
	RunE:  runTopics,
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}

func runTopics(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	for _, t := range cfg.Topics {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", t.Name, t.Label)
		fmt.Fprintf(cmd.OutOrStdout(), "  categories: %s\n", strings.Join(t.Query.Categories, ", "))
		if len(t.Query.Include) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  include: %s\n", strings.Join(t.Query.Include, ", "))
		}
		if len(t.Query.Exclude) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  exclude: %s\n", strings.Join(t.Query.Exclude, ", "))
		}
	}
	return nil
}
