package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ragbot/internal/domain"
	"ragbot/internal/rag"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

const telegramWelcome = `*Добро пожаловать!*

Я бот, который помогает найти ответы на вопросы об инвестициях, паевых фондах и работе компании.

Просто отправьте мне ваш вопрос, например:
— Что такое инвестиционный пай?
— Как вернуть средства из ЗПИФ?

Я найду информацию в базе знаний и постараюсь ответить максимально точно.`

const telegramErrorReply = "Произошла ошибка при получении ответа. Попробуйте позже."

// Telegram is the polling bot front end: /start shows a welcome, any other
// text is treated as a question for the answer service.
type Telegram struct {
	token     string
	allowFrom []int64 // allowed user IDs (empty = allow all)
	parseMode string

	bot     *tgbotapi.BotAPI
	service domain.AnswerService
	qlog    rag.InteractionLogger
	logger  *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs as strings
	ParseMode string
	Service   domain.AnswerService
	QueryLog  rag.InteractionLogger
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		service:   cfg.Service,
		qlog:      cfg.QueryLog,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	if msg.From != nil && !t.isAllowed(msg.From.ID) {
		t.logger.Warn("message from disallowed user", "user_id", msg.From.ID)
		return
	}

	if msg.IsCommand() {
		t.handleCommand(msg)
		return
	}

	query := strings.TrimSpace(msg.Text)
	answer, err := t.service.Answer(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, domain.ErrInvalidQuery) {
			t.sendMessage(msg.Chat.ID, rag.MsgInvalidQuery)
			return
		}
		t.logger.Error("answer failed", "error", err)
		t.sendMessage(msg.Chat.ID, telegramErrorReply)
		return
	}

	if t.qlog != nil {
		userID := ""
		if msg.From != nil {
			userID = strconv.FormatInt(msg.From.ID, 10)
		}
		t.qlog.Log(ctx, "telegram", userID, query, answer)
	}

	t.sendMessage(msg.Chat.ID, formatReply(answer))
}

func (t *Telegram) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.sendMessage(msg.Chat.ID, telegramWelcome)
	default:
		t.sendMessage(msg.Chat.ID, "Неизвестная команда. Просто отправьте ваш вопрос текстом.")
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// formatReply renders the answer with its source links.
func formatReply(a domain.Answer) string {
	var sb strings.Builder
	sb.WriteString("*Ответ:*\n")
	sb.WriteString(a.Answer)
	if len(a.Sources) > 0 {
		sb.WriteString("\n\n*Источники:*\n")
		for _, s := range a.Sources {
			sb.WriteString("🔗 ")
			sb.WriteString(s.URL)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		t.sendChunk(chatID, chunk)
	}
}

// splitMessage cuts text into pieces no longer than maxLen bytes, preferring
// a newline boundary in the second half of each piece. Hard cuts back off to
// a rune boundary so Cyrillic text never splits mid-character.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
				for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
					cutAt--
				}
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// sendChunk sends one message with retry: markdown first, plain text on a
// parse error, backoff on rate limiting.
func (t *Telegram) sendChunk(chatID int64, text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}
		errStr := err.Error()

		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off", "retry_after", retryAfter)
			time.Sleep(retryAfter)
			continue
		}

		if attempt == 0 && msg.ParseMode != "" && strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text", "err", err)
			if _, err2 := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err2 == nil {
				return
			}
		}

		if attempt < telegramMaxSendRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		t.logger.Error("telegram send failed after retries", "err", err)
	}
}
