package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "arxiv-radar",
	Short: "Topic-driven arXiv paper digest pipeline",
	Long: `arxiv-radar discovers new arXiv papers for configured topics, scores
them for relevance, analyzes the interesting ones with an LLM, and publishes
the results to a GitHub repository as a quick table and detailed reports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default: ./config.yaml)")
}
