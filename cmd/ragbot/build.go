package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ragbot/internal/chunker"
	"ragbot/internal/config"
	"ragbot/internal/crawler"
	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/index"
	"ragbot/internal/rag"
)

func crawlCmd() *cobra.Command {
	var profilePath string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured site into the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if profilePath == "" {
				profilePath = cfg.Crawler.Profile
			}
			if profilePath == "" {
				return fmt.Errorf("no site profile: set crawler.profile or pass --profile")
			}
			profile, err := crawler.LoadProfile(profilePath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			timeout := time.Duration(cfg.Crawler.TimeoutSeconds) * time.Second
			var fetcher crawler.Fetcher
			if cfg.Crawler.UseBrowser {
				bf := crawler.NewBrowserFetcher(ctx, crawler.BrowserConfig{
					UserAgent: cfg.Crawler.UserAgent,
					Timeout:   timeout,
					Logger:    logger,
				})
				defer bf.Close()
				fetcher = bf
			} else {
				fetcher = crawler.NewHTTPFetcher(cfg.Crawler.UserAgent, timeout)
			}

			c, err := crawler.New(crawler.Config{
				Fetcher:           fetcher,
				Profile:           profile,
				DataDir:           cfg.General.DataDir,
				RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
				Logger:            logger,
			})
			if err != nil {
				return err
			}

			stats, err := c.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("crawl done",
				"fetched", stats.Fetched, "saved", stats.Saved,
				"binaries", stats.Binaries, "failed", stats.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "site profile YAML (default: crawler.profile from config)")
	return cmd
}

func buildCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Chunk, deduplicate and embed crawled pages into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var docs []domain.Document
			if inputPath != "" {
				docs, err = crawler.LoadDump(inputPath)
			} else {
				docs, err = crawler.LoadDocuments(cfg.General.DataDir)
			}
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no documents to index, run 'ragbot crawl' first")
			}

			builder, err := newBuilder(cfg)
			if err != nil {
				return err
			}

			start := time.Now()
			stats, err := builder.BuildAndSave(ctx, docs, cfg.Index.Dir)
			if err != nil {
				return err
			}
			logger.Info("index written",
				"dir", cfg.Index.Dir,
				"documents", stats.Documents, "chunks", stats.Chunks,
				"duplicates", stats.Duplicates, "dimension", stats.Dimension,
				"took", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "build from a crawl dump JSON file instead of the data directory")
	return cmd
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question on the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, _, _, err := newAnswerService(cfg)
			if err != nil {
				return err
			}

			answer, err := svc.Answer(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(answer.Answer)
			if len(answer.Sources) > 0 {
				fmt.Println()
				for _, s := range answer.Sources {
					fmt.Printf("🔗 %s\n", s.URL)
				}
			}
			return nil
		},
	}
}

func newChunker(cfg *config.Config) *chunker.Chunker {
	policy := chunker.PolicySize
	if cfg.Chunking.Policy == "sentences" {
		policy = chunker.PolicySentences
	}
	return chunker.New(chunker.Config{
		Policy:            policy,
		MaxSize:           cfg.Chunking.MaxSize,
		MinLength:         cfg.Chunking.MinLength,
		SentencesPerChunk: cfg.Chunking.SentencesPerChunk,
	})
}

func newBuilder(cfg *config.Config) (*rag.Builder, error) {
	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	return rag.NewBuilder(rag.BuilderConfig{
		Chunker:   newChunker(cfg),
		Embedder:  embedder,
		Metric:    index.Metric(cfg.Index.Metric),
		Normalize: cfg.Embedding.Normalize,
		Logger:    logger,
	})
}
