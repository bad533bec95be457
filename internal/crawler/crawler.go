// Package crawler fetches a site's content pages and stores them as raw
// HTML plus cleaned text with provenance metadata, ready for the index
// build.
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ragbot/internal/domain"
)

// Fetcher retrieves one URL. Implementations: plain HTTP and a headless
// browser for JS-rendered pages.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (body []byte, contentType string, err error)
}

// Crawler walks a site section by section, breadth first, staying on the
// profile's host and inside each section's path prefix.
type Crawler struct {
	fetcher Fetcher
	profile Profile
	rawDir  string
	textDir string
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Config struct {
	Fetcher Fetcher
	Profile Profile
	// DataDir receives raw/ and clean/ subdirectories.
	DataDir           string
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Stats summarizes one crawl run.
type Stats struct {
	Fetched  int
	Saved    int
	Binaries int
	Failed   int
}

func New(cfg Config) (*Crawler, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("crawler needs a fetcher")
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	rps := cfg.Profile.RequestsPerSecond
	if rps <= 0 {
		rps = cfg.RequestsPerSecond
	}
	if rps <= 0 {
		rps = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Crawler{
		fetcher: cfg.Fetcher,
		profile: cfg.Profile,
		rawDir:  filepath.Join(cfg.DataDir, "raw"),
		textDir: filepath.Join(cfg.DataDir, "clean"),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  cfg.Logger,
	}, nil
}

// Run crawls every section of the profile. Individual page failures are
// logged and skipped; the run fails only on setup errors or context
// cancellation.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, dir := range []string{c.rawDir, c.textDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("create data directory: %w", err)
		}
	}

	for _, section := range c.profile.Sections {
		if err := c.crawlSection(ctx, section, &stats); err != nil {
			return stats, err
		}
	}

	c.logger.Info("crawl finished",
		"fetched", stats.Fetched, "saved", stats.Saved,
		"binaries", stats.Binaries, "failed", stats.Failed)
	return stats, nil
}

func (c *Crawler) crawlSection(ctx context.Context, section string, stats *Stats) error {
	visited := map[string]bool{}
	queue := []string{section}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if visited[path] || c.profile.Excluded(path) {
			continue
		}
		visited[path] = true

		if c.profile.MaxPages > 0 && stats.Fetched >= c.profile.MaxPages {
			c.logger.Warn("page cap reached", "section", section, "max", c.profile.MaxPages)
			return nil
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		pageURL := strings.TrimRight(c.profile.BaseURL, "/") + path
		stats.Fetched++
		body, contentType, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("fetch failed", "url", pageURL, "error", err)
			stats.Failed++
			continue
		}

		links, err := c.savePage(path, pageURL, contentType, body, stats)
		if err != nil {
			c.logger.Warn("save failed", "url", pageURL, "error", err)
			stats.Failed++
			continue
		}
		queue = append(queue, links...)
	}
	return nil
}

// savePage persists one fetched page and returns the in-section links found
// on it. Binary documents (PDF, DOCX) are kept raw for provenance but not
// extracted.
func (c *Crawler) savePage(path, pageURL, contentType string, body []byte, stats *Stats) ([]string, error) {
	name := sanitizeFilename(path)

	if ext := binaryExt(path, contentType); ext != "" {
		if !strings.HasSuffix(name, ext) {
			name += ext
		}
		if err := os.WriteFile(filepath.Join(c.rawDir, name), body, 0o644); err != nil {
			return nil, err
		}
		stats.Binaries++
		return nil, nil
	}

	rawPath := filepath.Join(c.rawDir, name+".html")
	if err := os.WriteFile(rawPath, body, 0o644); err != nil {
		return nil, err
	}

	text := ExtractText(string(body))
	if err := os.WriteFile(filepath.Join(c.textDir, name+".txt"), []byte(text), 0o644); err != nil {
		return nil, err
	}

	meta := pageMeta{URL: pageURL, Path: rawPath, Timestamp: time.Now()}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(c.textDir, name+".meta.json"), data, 0o644); err != nil {
		return nil, err
	}
	stats.Saved++

	section := sectionOf(path, c.profile.Sections)
	return ExtractLinks(string(body), section), nil
}

// pageMeta is the sidecar provenance record written next to each cleaned
// text file.
type pageMeta struct {
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// sanitizeFilename turns a URL path into a flat file name: "/company/faq"
// becomes "company_faq", "/" becomes "home".
func sanitizeFilename(path string) string {
	name := strings.Trim(path, "/")
	if name == "" {
		return "home"
	}
	name = strings.ReplaceAll(name, "/", "_")
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

func sectionOf(path string, sections []string) string {
	best := "/"
	for _, s := range sections {
		if strings.HasPrefix(path, s) && len(s) > len(best) {
			best = s
		}
	}
	return best
}

func binaryExt(path, contentType string) string {
	switch {
	case strings.Contains(contentType, "application/pdf") || strings.HasSuffix(path, ".pdf"):
		return ".pdf"
	case strings.Contains(contentType, "officedocument.wordprocessingml.document") || strings.HasSuffix(path, ".docx"):
		return ".docx"
	}
	return ""
}

// LoadDocuments reads every cleaned text file with its metadata sidecar
// from a crawl data directory into documents for the index build. Text
// files without a sidecar are kept with unknown provenance.
func LoadDocuments(dataDir string) ([]domain.Document, error) {
	textDir := filepath.Join(dataDir, "clean")
	entries, err := os.ReadDir(textDir)
	if err != nil {
		return nil, fmt.Errorf("read crawl data: %w", err)
	}

	var docs []domain.Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		text, err := os.ReadFile(filepath.Join(textDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if len(strings.TrimSpace(string(text))) == 0 {
			continue
		}

		doc := domain.Document{
			Text:      string(text),
			SourceURL: "unknown",
			FetchedAt: time.Now(),
		}
		metaPath := filepath.Join(textDir, strings.TrimSuffix(e.Name(), ".txt")+".meta.json")
		if data, err := os.ReadFile(metaPath); err == nil {
			var meta pageMeta
			if err := json.Unmarshal(data, &meta); err == nil {
				doc.SourceURL = meta.URL
				doc.Path = meta.Path
				doc.FetchedAt = meta.Timestamp
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadDump reads a crawl dump file: a JSON array of objects with url, text
// and an optional timestamp. Entries with empty text are skipped.
func LoadDump(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	var entries []domain.Document
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse dump %s: %w", path, err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, d := range entries {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		if d.SourceURL == "" {
			d.SourceURL = "unknown"
		}
		if d.FetchedAt.IsZero() {
			d.FetchedAt = time.Now()
		}
		docs = append(docs, d)
	}
	return docs, nil
}
