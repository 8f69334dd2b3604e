package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/deusflow/pilbarawatch/internal/config"
	"github.com/deusflow/pilbarawatch/internal/logger"
)

var buildInfo = struct {
	version, commit, date string
}{"dev", "none", "unknown"}

var (
	flagEnv        string
	flagVocabulary string
)

var rootCmd = &cobra.Command{
	Use:   "pilbarawatch",
	Short: "Pilbara union and iron ore news aggregator",
	Long: `pilbarawatch collects union activity and iron ore market news for the
Pilbara region, ranks it, and serves it to the dashboard as JSON.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&flagVocabulary, "vocabulary", "", "vocabulary YAML (overrides VOCABULARY_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(quotesCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pilbarawatch %s (commit: %s, built: %s)\n",
			buildInfo.version, buildInfo.commit, buildInfo.date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	buildInfo.version = v
	buildInfo.commit = c
	buildInfo.date = d
}

// loadConfig reads and validates the configuration and sets up logging on
// stderr so command output on stdout stays machine readable.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(flagEnv)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagVocabulary != "" {
		cfg.VocabularyPath = flagVocabulary
	}
	logger.InitWriter(os.Stderr, cfg.Debug, cfg.LogFormat)
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
