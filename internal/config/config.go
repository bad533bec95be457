package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for the RAG chatbot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Crawler   CrawlerConfig   `json:"crawler"`
	Chunking  ChunkingConfig  `json:"chunking"`
	Embedding EmbeddingConfig `json:"embedding"`
	Index     IndexConfig     `json:"index"`
	Retrieval RetrievalConfig `json:"retrieval"`
	LLM       LLMConfig       `json:"llm"`
	Channels  ChannelsConfig  `json:"channels"`
	QueryLog  QueryLogConfig  `json:"queryLog"`
}

type GeneralConfig struct {
	DataDir  string `json:"dataDir"`  // raw pages, cleaned text, crawl metadata
	LogLevel string `json:"logLevel"` // debug | info | warn | error
}

// CrawlerConfig configures site crawling. The site profile (start sections,
// exclusions) lives in a separate YAML file so it can be edited without
// touching the main config.
type CrawlerConfig struct {
	Profile           string  `json:"profile"` // path to the site profile YAML
	UserAgent         string  `json:"userAgent,omitempty"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	TimeoutSeconds    int     `json:"timeoutSeconds"`
	UseBrowser        bool    `json:"useBrowser"` // render JS-heavy pages through headless Chrome
}

type ChunkingConfig struct {
	Policy            string `json:"policy"`  // "size" | "sentences"
	MaxSize           int    `json:"maxSize"` // max chunk length in characters (size policy)
	MinLength         int    `json:"minLength"`
	SentencesPerChunk int    `json:"sentencesPerChunk"` // sentences policy
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"` // "openai" | "ollama"
	Model     string `json:"model"`
	BaseURL   string `json:"baseUrl,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	Normalize bool   `json:"normalize"` // L2-normalize vectors (required for the ip metric)
}

type IndexConfig struct {
	Dir    string `json:"dir"`
	Metric string `json:"metric"` // "ip" | "l2"
}

type RetrievalConfig struct {
	TopK int `json:"topK"`
}

type LLMConfig struct {
	Provider     string         `json:"provider"` // "gigachat" | "openai"
	Model        string         `json:"model,omitempty"`
	APIKey       string         `json:"apiKey,omitempty"`
	BaseURL      string         `json:"baseUrl,omitempty"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Temperature  float64        `json:"temperature,omitempty"`
	MaxTokens    int            `json:"maxTokens,omitempty"`
	GigaChat     GigaChatConfig `json:"gigachat,omitempty"`
}

type GigaChatConfig struct {
	AuthKey  string `json:"authKey,omitempty"` // "Basic <base64(client_id:secret)>"
	Scope    string `json:"scope,omitempty"`
	OAuthURL string `json:"oauthUrl,omitempty"`
	APIURL   string `json:"apiUrl,omitempty"`
	Insecure bool   `json:"insecure,omitempty"` // skip TLS verification (the API uses a non-public CA)
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Web      WebConfig      `json:"web"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type QueryLogConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.ragbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ragbot"
	}
	return filepath.Join(home, ".ragbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = expandPath(cfg.General.DataDir)
	cfg.Index.Dir = expandPath(cfg.Index.Dir)
	cfg.QueryLog.DBPath = expandPath(cfg.QueryLog.DBPath)
	cfg.Crawler.Profile = expandPath(cfg.Crawler.Profile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Chunking.Policy {
	case "size", "sentences":
	default:
		errs = append(errs, "chunking.policy must be one of: size, sentences")
	}
	if cfg.Chunking.MaxSize < 1 {
		errs = append(errs, "chunking.maxSize must be >= 1")
	}
	if cfg.Chunking.MinLength < 0 {
		errs = append(errs, "chunking.minLength must be >= 0")
	}
	if cfg.Chunking.MinLength > cfg.Chunking.MaxSize {
		errs = append(errs, "chunking.minLength must not exceed chunking.maxSize")
	}
	if cfg.Chunking.SentencesPerChunk < 1 {
		errs = append(errs, "chunking.sentencesPerChunk must be >= 1")
	}

	switch cfg.Embedding.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, "embedding.provider must be one of: openai, ollama")
	}

	switch cfg.Index.Metric {
	case "ip", "l2":
	default:
		errs = append(errs, "index.metric must be one of: ip, l2")
	}
	if cfg.Index.Metric == "ip" && !cfg.Embedding.Normalize {
		errs = append(errs, `index.metric "ip" requires embedding.normalize`)
	}

	if cfg.Retrieval.TopK < 1 || cfg.Retrieval.TopK > 20 {
		errs = append(errs, "retrieval.topK must be between 1 and 20")
	}

	switch cfg.LLM.Provider {
	case "gigachat", "openai":
	default:
		errs = append(errs, "llm.provider must be one of: gigachat, openai")
	}

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = append(errs, "channels.web.port must be between 0 and 65535")
	}
	if cfg.Crawler.RequestsPerSecond <= 0 {
		errs = append(errs, "crawler.requestsPerSecond must be > 0")
	}
	if cfg.Crawler.TimeoutSeconds < 1 {
		errs = append(errs, "crawler.timeoutSeconds must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
