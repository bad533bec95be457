package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_RussianSentencesBecomeSeparateChunks(t *testing.T) {
	c := New(Config{Policy: PolicySize, MaxSize: 40, MinLength: 10})
	text := "Пай — это доля инвестора. Фонд инвестирует средства. Доходность не гарантируется."

	got := c.Split(text)
	want := []string{
		"Пай — это доля инвестора.",
		"Фонд инвестирует средства.",
		"Доходность не гарантируется.",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
		n := utf8.RuneCountInString(got[i])
		if n > 40 || n < 10 {
			t.Errorf("chunk %d length %d outside [10, 40]", i, n)
		}
	}
}

func TestSplit_AccumulatesUpToMaxSize(t *testing.T) {
	c := New(Config{Policy: PolicySize, MaxSize: 120, MinLength: 10})
	text := "First sentence here. Second sentence here. Third sentence is a bit longer than the others and will not fit in the first chunk."

	got := c.Split(text)
	if len(got) != 2 {
		t.Fatalf("got %d chunks %q, want 2", len(got), got)
	}
	if !strings.Contains(got[0], "First sentence") || !strings.Contains(got[0], "Second sentence") {
		t.Errorf("first chunk should hold the first two sentences: %q", got[0])
	}
	for _, chunk := range got {
		if n := utf8.RuneCountInString(chunk); n > 130 {
			t.Errorf("chunk exceeds bound: %d runes", n)
		}
	}
}

func TestSplit_OversizedSentenceEmittedWhole(t *testing.T) {
	c := New(Config{Policy: PolicySize, MaxSize: 30, MinLength: 10})
	long := "This single sentence is far longer than the configured maximum chunk size and must not be cut."

	got := c.Split(long)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0] != long {
		t.Errorf("oversized sentence was altered: %q", got[0])
	}
}

func TestSplit_DiscardsChunksBelowMinLength(t *testing.T) {
	c := New(Config{Policy: PolicySize, MaxSize: 100, MinLength: 20})
	got := c.Split("Tiny. Also small.")
	for _, chunk := range got {
		if utf8.RuneCountInString(chunk) < 20 {
			t.Errorf("chunk below minimum survived: %q", chunk)
		}
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	c := New(Config{})
	for _, in := range []string{"", "   ", "\n\t\n"} {
		if got := c.Split(in); got != nil {
			t.Errorf("Split(%q) = %q, want nil", in, got)
		}
	}
}

func TestSplit_SentenceCountPolicy(t *testing.T) {
	c := New(Config{Policy: PolicySentences, SentencesPerChunk: 2, MinLength: 5})
	text := "One is here. Two is here. Three is here. Four is here. Five is here."

	got := c.Split(text)
	if len(got) != 3 {
		t.Fatalf("got %d chunks %q, want 3", len(got), got)
	}
	if got[0] != "One is here. Two is here." {
		t.Errorf("first chunk = %q", got[0])
	}
	if got[2] != "Five is here." {
		t.Errorf("trailing partial group = %q", got[2])
	}
}

func TestSentences_AbbreviationsAndDecimals(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"Доходность составила 5.3 процента за год. Фонд работает с 2020 г. на рынке.", 2},
		{"См. раздел второй. Подробности в документе.", 2},
		{"Mr. Smith arrived. He was late.", 2},
		{"Что это?! Это пай.", 2},
		{"Многоточие в конце… Новое предложение.", 2},
	}
	for _, c := range cases {
		got := Sentences(c.in)
		if len(got) != c.want {
			t.Errorf("Sentences(%q) = %d sentences %q, want %d", c.in, len(got), got, c.want)
		}
	}
}

func TestSentences_KeepsClosingQuotes(t *testing.T) {
	got := Sentences("Он сказал: «Фонд надёжен.» Мы проверили.")
	if len(got) != 2 {
		t.Fatalf("got %q, want 2 sentences", got)
	}
	if !strings.HasSuffix(got[0], "»") {
		t.Errorf("closing quote should stay with its sentence: %q", got[0])
	}
}

func TestSentences_NoTerminator(t *testing.T) {
	got := Sentences("текст без знаков конца предложения")
	if len(got) != 1 {
		t.Fatalf("got %d sentences, want 1", len(got))
	}
}
