package chunker

import (
	"strings"
	"unicode/utf8"
)

// Policy selects how sentences are grouped into chunks.
type Policy string

const (
	// PolicySize accumulates sentences greedily up to MaxSize characters.
	PolicySize Policy = "size"
	// PolicySentences groups a fixed number of sentences per chunk.
	PolicySentences Policy = "sentences"
)

// Chunker splits document text into chunks along sentence boundaries.
// Lengths are measured in runes, not bytes, so Cyrillic text is bounded the
// same way as ASCII.
type Chunker struct {
	policy            Policy
	maxSize           int
	minLength         int
	sentencesPerChunk int
}

type Config struct {
	Policy            Policy
	MaxSize           int // max chunk length in runes (size policy)
	MinLength         int // chunks shorter than this are discarded
	SentencesPerChunk int // sentences policy
}

func New(cfg Config) *Chunker {
	if cfg.Policy == "" {
		cfg.Policy = PolicySize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 500
	}
	if cfg.MinLength < 0 {
		cfg.MinLength = 0
	}
	if cfg.SentencesPerChunk <= 0 {
		cfg.SentencesPerChunk = 5
	}
	return &Chunker{
		policy:            cfg.Policy,
		maxSize:           cfg.MaxSize,
		minLength:         cfg.MinLength,
		sentencesPerChunk: cfg.SentencesPerChunk,
	}
}

// Split chunks text according to the configured policy. Empty or
// whitespace-only input yields no chunks. A single sentence longer than
// MaxSize is emitted as its own oversized chunk; sentences are never split
// internally.
func (c *Chunker) Split(text string) []string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}
	switch c.policy {
	case PolicySentences:
		return c.splitBySentenceCount(sentences)
	default:
		return c.splitBySize(sentences)
	}
}

func (c *Chunker) splitBySize(sentences []string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		s := strings.TrimSpace(current.String())
		if utf8.RuneCountInString(s) >= c.minLength {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if currentLen+n+1 <= c.maxSize {
			current.WriteString(sentence)
			current.WriteByte(' ')
			currentLen += n + 1
			continue
		}
		if currentLen > 0 {
			flush()
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
		currentLen = n + 1
	}
	if currentLen > 0 {
		flush()
	}
	return chunks
}

func (c *Chunker) splitBySentenceCount(sentences []string) []string {
	var chunks []string
	for i := 0; i < len(sentences); i += c.sentencesPerChunk {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		s := strings.TrimSpace(strings.Join(sentences[i:end], " "))
		if s == "" {
			continue
		}
		if utf8.RuneCountInString(s) < c.minLength {
			continue
		}
		chunks = append(chunks, s)
	}
	return chunks
}
