package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  "~/.ragbot/data",
			LogLevel: "info",
		},
		Crawler: CrawlerConfig{
			Profile:           "~/.ragbot/site.yaml",
			UserAgent:         "ragbot/1.0",
			RequestsPerSecond: 0.5,
			TimeoutSeconds:    15,
			UseBrowser:        false,
		},
		Chunking: ChunkingConfig{
			Policy:            "size",
			MaxSize:           500,
			MinLength:         50,
			SentencesPerChunk: 5,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Normalize: true,
		},
		Index: IndexConfig{
			Dir:    "~/.ragbot/index",
			Metric: "ip",
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		LLM: LLMConfig{
			Provider:    "gigachat",
			Temperature: 0.3,
			MaxTokens:   1000,
			GigaChat: GigaChatConfig{
				AuthKey:  "${GIGACHAT_AUTH_KEY}",
				Scope:    "GIGACHAT_API_PERS",
				OAuthURL: "https://ngw.devices.sberbank.ru:9443/api/v2/oauth",
				APIURL:   "https://gigachat.devices.sberbank.ru/api/v1/chat/completions",
				Insecure: true,
			},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				Token:     "${TELEGRAM_TOKEN}",
				ParseMode: "Markdown",
			},
			Web: WebConfig{
				Enabled: true,
				Host:    "0.0.0.0",
				Port:    8004,
			},
		},
		QueryLog: QueryLogConfig{
			Enabled: true,
			DBPath:  "~/.ragbot/queries.db",
		},
	}
}
