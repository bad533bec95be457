package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragbot/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gigaFixture struct {
	oauthCalls int
	chatCalls  int
	expiresIn  int
	answer     string
	chatStatus int
	lastBody   gigaRequest
}

func newGigaServer(t *testing.T, fx *gigaFixture) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth", func(w http.ResponseWriter, r *http.Request) {
		fx.oauthCalls++
		if r.Header.Get("RqUID") == "" {
			t.Error("oauth request missing RqUID header")
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			t.Errorf("oauth Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("scope") != "GIGACHAT_API_PERS" {
			t.Errorf("oauth scope = %q", r.PostForm.Get("scope"))
		}
		json.NewEncoder(w).Encode(oauthResponse{AccessToken: "tok-1", ExpiresIn: fx.expiresIn})
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		fx.chatCalls++
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("chat Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&fx.lastBody)
		if fx.chatStatus != 0 {
			w.WriteHeader(fx.chatStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": fx.answer}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGigaClient(t *testing.T, srv *httptest.Server) *GigaChat {
	t.Helper()
	g, err := NewGigaChat(GigaChatConfig{
		AuthKey:      "Basic dGVzdDpzZWNyZXQ=",
		OAuthURL:     srv.URL + "/oauth",
		APIURL:       srv.URL + "/chat",
		SystemPrompt: "Ты помощник по инвестициям.",
		Temperature:  0.3,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGigaChat_GenerateAndTokenCache(t *testing.T) {
	fx := &gigaFixture{expiresIn: 1800, answer: "  Пай — это доля в фонде.  "}
	g := newGigaClient(t, newGigaServer(t, fx))

	got, err := g.Generate(context.Background(), "что такое пай?", "- пай это доля\n")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Пай — это доля в фонде." {
		t.Fatalf("answer = %q", got)
	}
	if fx.lastBody.Model != "GigaChat:latest" || fx.lastBody.MaxTokens != 1000 {
		t.Fatalf("request body = %+v", fx.lastBody)
	}
	if len(fx.lastBody.Messages) != 2 || fx.lastBody.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", fx.lastBody.Messages)
	}
	if !strings.Contains(fx.lastBody.Messages[1].Content, "Контекст:\n- пай это доля") {
		t.Fatalf("user message = %q", fx.lastBody.Messages[1].Content)
	}

	// Second call reuses the cached token.
	if _, err := g.Generate(context.Background(), "как вернуть средства?", ""); err != nil {
		t.Fatal(err)
	}
	if fx.oauthCalls != 1 {
		t.Fatalf("oauth calls = %d, want 1 (token must be cached)", fx.oauthCalls)
	}
	if fx.chatCalls != 2 {
		t.Fatalf("chat calls = %d", fx.chatCalls)
	}
}

func TestGigaChat_TokenRefreshedNearExpiry(t *testing.T) {
	// expires_in below the refresh margin forces a new token per call.
	fx := &gigaFixture{expiresIn: 10, answer: "ответ"}
	g := newGigaClient(t, newGigaServer(t, fx))

	for i := 0; i < 2; i++ {
		if _, err := g.Generate(context.Background(), "что такое пай?", ""); err != nil {
			t.Fatal(err)
		}
	}
	if fx.oauthCalls != 2 {
		t.Fatalf("oauth calls = %d, want 2", fx.oauthCalls)
	}
}

func TestGigaChat_GenerationFailureSurfaces(t *testing.T) {
	fx := &gigaFixture{expiresIn: 1800, chatStatus: http.StatusBadRequest}
	g := newGigaClient(t, newGigaServer(t, fx))

	if _, err := g.Generate(context.Background(), "что такое пай?", ""); err == nil {
		t.Fatal("expected an error from a 400 response")
	}
}

func TestGigaChat_HealthyObtainsToken(t *testing.T) {
	fx := &gigaFixture{expiresIn: 1800}
	g := newGigaClient(t, newGigaServer(t, fx))

	if err := g.Healthy(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fx.oauthCalls != 1 {
		t.Fatalf("oauth calls = %d", fx.oauthCalls)
	}
}

func TestNewGigaChat_RequiresAuthKey(t *testing.T) {
	if _, err := NewGigaChat(GigaChatConfig{}); err == nil {
		t.Fatal("expected an error without an auth key")
	}
}

func TestNew_DefaultConfigTargetsChatCompletions(t *testing.T) {
	cfg := config.Defaults().LLM
	cfg.GigaChat.AuthKey = "Basic dGVzdA=="

	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	g, ok := p.(*GigaChat)
	if !ok {
		t.Fatalf("provider = %T, want *GigaChat", p)
	}
	// Generate POSTs to apiURL verbatim, so the configured URL must be the
	// full completions endpoint, not the API root.
	if !strings.HasSuffix(g.apiURL, "/chat/completions") {
		t.Fatalf("apiURL = %q, want the chat completions endpoint", g.apiURL)
	}
}
