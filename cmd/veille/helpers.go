package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/veille-labs/veille/internal/feed"
	"github.com/veille-labs/veille/pkg/veille"
	"github.com/veille-labs/veille/pkg/veille/config"
)

// commandContext carries the persistent flag values shared by every
// subcommand.
type commandContext struct {
	configPath *string
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	return config.Load(*c.configPath)
}

// openPipeline loads the configuration and assembles the pipeline plus
// the logger the subcommand should keep using.
func (c *commandContext) openPipeline(ctx context.Context) (*veille.Pipeline, *slog.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg.Logging)

	p, err := veille.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}

func newLogger(cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// loadFeeds reads every JSONL feed file and flattens the documents into
// the posts the pipeline ingests.
func loadFeeds(paths []string, logger *slog.Logger) ([]veille.RawPost, error) {
	var posts []veille.RawPost
	for _, path := range paths {
		docs, err := feed.LoadFromJSONL(path, logger)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			posts = append(posts, veille.RawPost{
				URL:       d.URL,
				Title:     d.Title,
				Body:      d.Body,
				Author:    d.Author,
				Platform:  d.Platform,
				CreatedAt: d.CreatedAt,
			})
		}
	}
	return posts, nil
}
