package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/pilbarawatch/internal/app"
	"github.com/deusflow/pilbarawatch/internal/config"
	"github.com/deusflow/pilbarawatch/internal/logger"
	"github.com/deusflow/pilbarawatch/internal/news"
	"github.com/deusflow/pilbarawatch/internal/observability"
	"github.com/deusflow/pilbarawatch/internal/posts"
	"github.com/deusflow/pilbarawatch/internal/vocab"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and refresh feeds on a timer",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.InitTracer(cfg, buildInfo.version)
	defer observability.ShutdownTracer()

	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("Starting pilbarawatch", "version", buildInfo.version, "addr", cfg.ListenAddr)
	return svc.Run(ctx)
}

var fetchCmd = &cobra.Command{
	Use:       "fetch <topic>",
	Short:     "Fetch one topic and print its feed items as JSON",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(news.TopicUnion), string(news.TopicMarket)},
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, err := news.ParseTopic(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		items, err := svc.Items(cmd.Context(), topic)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", topic, err)
		}
		return writeJSON(cmd.OutOrStdout(), items)
	},
}

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Print the iron ore price and watchlist quotes as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		return writeJSON(cmd.OutOrStdout(), svc.Snapshot(cmd.Context()))
	},
}

// postsCmd only reads local files, so it does not require API credentials.
var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Parse the union posts file and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagEnv != "" {
			if err := godotenv.Load(flagEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("reading %s: %w", flagEnv, err)
			}
		}
		cfg := config.FromEnv()
		if flagVocabulary != "" {
			cfg.VocabularyPath = flagVocabulary
		}
		logger.InitWriter(os.Stderr, cfg.Debug, cfg.LogFormat)

		v, err := vocab.Load(cfg.VocabularyPath)
		if err != nil {
			return err
		}
		list, err := posts.Load(cfg.PostsPath, v.Labels)
		if err != nil {
			return fmt.Errorf("loading posts: %w", err)
		}
		if list == nil {
			list = []posts.Post{}
		}
		return writeJSON(cmd.OutOrStdout(), list)
	},
}
