package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ragbot/internal/channel"
	"ragbot/internal/config"
	"ragbot/internal/embedding"
	"ragbot/internal/index"
	"ragbot/internal/provider"
	"ragbot/internal/querylog"
	"ragbot/internal/rag"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the Telegram bot over the built index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, idx, manifest, err := newAnswerService(cfg)
			if err != nil {
				return err
			}

			var qlog rag.InteractionLogger
			if cfg.QueryLog.Enabled {
				store, err := querylog.NewStore(cfg.QueryLog.DBPath, logger)
				if err != nil {
					return fmt.Errorf("open query log: %w", err)
				}
				defer store.Close()
				qlog = store
			}

			serveCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			errCh := make(chan error, 2)
			running := 0

			if cfg.Channels.Web.Enabled {
				web := channel.NewWeb(channel.WebConfig{
					Host:     cfg.Channels.Web.Host,
					Port:     cfg.Channels.Web.Port,
					Service:  svc,
					QueryLog: qlog,
					Status: func() (int, string) {
						return idx.Size(), manifest.EmbeddingModel
					},
					Logger: logger,
				})
				running++
				go func() { errCh <- web.Start(serveCtx) }()
			}

			if cfg.Channels.Telegram.Enabled {
				tg := channel.NewTelegram(channel.TelegramConfig{
					Token:     cfg.Channels.Telegram.Token,
					AllowFrom: cfg.Channels.Telegram.AllowFrom,
					ParseMode: cfg.Channels.Telegram.ParseMode,
					Service:   svc,
					QueryLog:  qlog,
					Logger:    logger,
				})
				running++
				go func() { errCh <- tg.Start(serveCtx) }()
			}

			if running == 0 {
				return fmt.Errorf("no channel enabled, nothing to serve")
			}

			logger.Info("serving", "chunks", idx.Size(), "model", manifest.EmbeddingModel)

			// First channel failure stops the rest; on shutdown wait for all.
			var firstErr error
			for i := 0; i < running; i++ {
				if err := <-errCh; err != nil && firstErr == nil {
					firstErr = err
					cancel()
				}
			}
			return firstErr
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			idx, manifest, err := index.Load(cfg.Index.Dir)
			if err != nil {
				logger.Warn("index not loadable", "dir", cfg.Index.Dir, "error", err)
			} else {
				logger.Info("index",
					"dir", cfg.Index.Dir, "chunks", idx.Size(),
					"dimension", manifest.Dimension, "metric", manifest.Metric,
					"model", manifest.EmbeddingModel, "built_at", manifest.BuiltAt)
			}

			prov, err := provider.New(cfg.LLM, logger)
			if err != nil {
				logger.Warn("provider", "error", err)
				return nil
			}
			if err := prov.Healthy(cmd.Context()); err != nil {
				logger.Warn("provider", "name", prov.Name(), "healthy", false, "error", err)
			} else {
				logger.Info("provider", "name", prov.Name(), "healthy", true)
			}
			return nil
		},
	}
}

// newAnswerService loads the index artifacts and wires the full answer
// pipeline. Fails fast on an inconsistent or missing index.
func newAnswerService(cfg *config.Config) (*rag.Service, *index.Flat, index.Manifest, error) {
	idx, manifest, err := index.Load(cfg.Index.Dir)
	if err != nil {
		return nil, nil, manifest, fmt.Errorf("load index from %s: %w", cfg.Index.Dir, err)
	}

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, nil, manifest, err
	}

	retriever, err := rag.NewRetriever(rag.RetrieverConfig{
		Embedder: embedder,
		Index:    idx,
		Manifest: manifest,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, manifest, err
	}

	prov, err := provider.New(cfg.LLM, logger)
	if err != nil {
		return nil, nil, manifest, err
	}

	svc := rag.NewService(rag.ServiceConfig{
		Retriever: retriever,
		Assembler: rag.NewAssembler(prov, logger),
		TopK:      cfg.Retrieval.TopK,
		Logger:    logger,
	})
	return svc, idx, manifest, nil
}
