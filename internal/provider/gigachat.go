// Package provider implements the LLM capability: clients that turn a user
// query plus a retrieved context block into a generated answer.
package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragbot/internal/domain"
)

const (
	defaultOAuthURL    = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	defaultGigaChatURL = "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"
	defaultScope       = "GIGACHAT_API_PERS"

	// Tokens are refreshed this long before their reported expiry.
	tokenRefreshMargin = 30 * time.Second
)

// GigaChat implements domain.Provider against the Sber GigaChat API.
// Access tokens are short-lived (~30 min) and cached until shortly before
// expiry; the cache is safe for concurrent callers.
type GigaChat struct {
	apiURL       string
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
	client       *http.Client
	tokens       *tokenSource
	logger       *slog.Logger
}

type GigaChatConfig struct {
	AuthKey      string // "Basic <base64(client_id:client_secret)>"
	Scope        string
	OAuthURL     string
	APIURL       string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	// Insecure skips TLS verification. The Sber endpoints use the Russian
	// trusted root CA, which is absent from most system trust stores.
	Insecure bool
	Logger   *slog.Logger
}

func NewGigaChat(cfg GigaChatConfig) (*GigaChat, error) {
	if cfg.AuthKey == "" {
		return nil, fmt.Errorf("gigachat: auth key is required")
	}
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = defaultOAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultGigaChatURL
	}
	if cfg.Model == "" {
		cfg.Model = "GigaChat:latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := &http.Client{Timeout: defaultHTTPTimeout}
	if cfg.Insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &GigaChat{
		apiURL:       cfg.APIURL,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		client:       client,
		tokens: &tokenSource{
			authKey:  cfg.AuthKey,
			scope:    cfg.Scope,
			oauthURL: cfg.OAuthURL,
			client:   client,
		},
		logger: cfg.Logger,
	}, nil
}

func (g *GigaChat) Name() string { return "gigachat" }

// Healthy checks that an access token can be obtained.
func (g *GigaChat) Healthy(ctx context.Context) error {
	if _, err := g.tokens.token(ctx); err != nil {
		return fmt.Errorf("gigachat auth: %w", err)
	}
	return nil
}

type gigaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gigaRequest struct {
	Model       string        `json:"model"`
	Messages    []gigaMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type gigaResponse struct {
	Choices []struct {
		Message gigaMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the model to answer the query given the retrieved context
// block.
func (g *GigaChat) Generate(ctx context.Context, query, contextBlock string) (string, error) {
	token, err := g.tokens.token(ctx)
	if err != nil {
		return "", fmt.Errorf("gigachat auth: %w", err)
	}

	messages := make([]gigaMessage, 0, 2)
	if g.systemPrompt != "" {
		messages = append(messages, gigaMessage{Role: "system", Content: g.systemPrompt})
	}
	messages = append(messages, gigaMessage{
		Role:    "user",
		Content: fmt.Sprintf("Контекст:\n%s\n\nВопрос: %s", contextBlock, query),
	})

	body, err := json.Marshal(gigaRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gigachat: encode request: %w", err)
	}

	resp, err := doWithRetry(ctx, g.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, g.logger)
	if err != nil {
		return "", fmt.Errorf("gigachat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized {
			g.tokens.invalidate()
		}
		return "", fmt.Errorf("gigachat returned %d: %s", resp.StatusCode, string(data))
	}

	var out gigaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gigachat: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("gigachat: empty choices in response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// tokenSource caches the OAuth access token and re-fetches it when it is
// within tokenRefreshMargin of expiring.
type tokenSource struct {
	authKey  string
	scope    string
	oauthURL string
	client   *http.Client

	mu     sync.Mutex
	current string
	expiry time.Time
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"` // ms since epoch, newer API versions
}

func (t *tokenSource) token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != "" && time.Now().Before(t.expiry.Add(-tokenRefreshMargin)) {
		return t.current, nil
	}

	form := url.Values{"scope": {t.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.New().String())
	req.Header.Set("Authorization", t.authKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("oauth returned %d: %s", resp.StatusCode, string(data))
	}

	var out oauthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("oauth: decode response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("oauth: empty access token")
	}

	t.current = out.AccessToken
	switch {
	case out.ExpiresAt > 0:
		t.expiry = time.UnixMilli(out.ExpiresAt)
	case out.ExpiresIn > 0:
		t.expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	default:
		t.expiry = time.Now().Add(30 * time.Minute)
	}
	return t.current, nil
}

func (t *tokenSource) invalidate() {
	t.mu.Lock()
	t.current = ""
	t.mu.Unlock()
}

var _ domain.Provider = (*GigaChat)(nil)
