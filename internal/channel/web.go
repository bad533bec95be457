// Package channel implements the user-facing transports: the HTTP API and
// the Telegram bot. Both route questions to the answer service and record
// interactions in the query log.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/rag"
)

const (
	maxBodySize = 1 << 20
	// Search result text is capped so one giant chunk cannot blow up the
	// response.
	maxResultTextLen = 1000
)

// Web serves the HTTP API: GET /ask, POST /search and GET /healthz.
type Web struct {
	host    string
	port    int
	service domain.AnswerService
	qlog    rag.InteractionLogger
	status  StatusFunc
	logger  *slog.Logger
	server  *http.Server
}

// StatusFunc reports index health for the /healthz endpoint.
type StatusFunc func() (size int, model string)

type WebConfig struct {
	Host     string
	Port     int
	Service  domain.AnswerService
	QueryLog rag.InteractionLogger
	Status   StatusFunc
	Logger   *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8004
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Web{
		host:    cfg.Host,
		port:    cfg.Port,
		service: cfg.Service,
		qlog:    cfg.QueryLog,
		status:  cfg.Status,
		logger:  cfg.Logger,
	}
}

func (w *Web) Name() string { return "web" }

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (w *Web) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:    addr,
		Handler: corsMiddleware(w.routes()),
	}

	w.logger.Info("http api started", "addr", "http://"+addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Web) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ask", w.handleAsk)
	mux.HandleFunc("POST /search", w.handleSearch)
	mux.HandleFunc("GET /healthz", w.handleHealthz)
	return mux
}

type sourceJSON struct {
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

type askResponse struct {
	Answer  string       `json:"answer"`
	Sources []sourceJSON `json:"sources"`
}

// handleAsk answers a user question. An invalid query is not an HTTP error:
// the user gets a deterministic message and no sources.
func (w *Web) handleAsk(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	answer, err := w.service.Answer(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			writeJSON(rw, http.StatusOK, askResponse{Answer: rag.MsgInvalidQuery, Sources: []sourceJSON{}})
			return
		}
		w.logger.Error("ask failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "internal error")
		return
	}

	if w.qlog != nil {
		w.qlog.Log(r.Context(), "api", "", query, answer)
	}

	sources := make([]sourceJSON, 0, len(answer.Sources))
	for _, s := range answer.Sources {
		sources = append(sources, sourceJSON{URL: s.URL, Timestamp: s.Timestamp})
	}
	writeJSON(rw, http.StatusOK, askResponse{Answer: answer.Answer, Sources: sources})
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResult struct {
	Text  string  `json:"text"`
	URL   string  `json:"url"`
	Score float32 `json:"score"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
}

// handleSearch returns the raw ranked chunks without LLM generation.
func (w *Web) handleSearch(rw http.ResponseWriter, r *http.Request) {
	var req searchRequest
	body := http.MaxBytesReader(rw, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid JSON body")
		return
	}

	chunks, err := w.service.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			writeError(rw, http.StatusBadRequest, "query is not meaningful")
			return
		}
		w.logger.Error("search failed", "error", err)
		writeError(rw, http.StatusInternalServerError, "internal error")
		return
	}

	results := make([]searchResult, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, searchResult{
			Text:  truncateRunes(c.Chunk.Text, maxResultTextLen),
			URL:   c.Chunk.SourceURL,
			Score: c.Score,
		})
	}
	writeJSON(rw, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}

func (w *Web) handleHealthz(rw http.ResponseWriter, _ *http.Request) {
	size, model := 0, ""
	if w.status != nil {
		size, model = w.status()
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":          "ok",
		"chunks":          size,
		"embedding_model": model,
	})
}

// errorEnvelope is the error shape for all non-200 responses.
type errorEnvelope struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeError(rw http.ResponseWriter, code int, msg string) {
	writeJSON(rw, code, errorEnvelope{Error: msg, Code: code})
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(code)
	json.NewEncoder(rw).Encode(v)
}

// corsMiddleware allows any origin; the API is public read-only.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
