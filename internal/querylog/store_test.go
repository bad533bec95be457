package querylog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"ragbot/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "queries.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_LogAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Log(ctx, "api", "", "что такое пай?", domain.Answer{
		Answer: "Пай — это доля.",
		Sources: []domain.Source{
			{URL: "https://example.com/faq", Timestamp: time.Now()},
			{URL: "https://example.com/funds", Timestamp: time.Now()},
		},
	})
	s.Log(ctx, "telegram", "12345", "как вернуть средства?", domain.Answer{Answer: "Обратитесь в фонд."})

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("interactions = %d, want 2", len(got))
	}

	// Newest first.
	if got[0].Channel != "telegram" || got[0].UserID != "12345" {
		t.Fatalf("latest = %+v", got[0])
	}
	if len(got[1].Sources) != 2 || got[1].Sources[0] != "https://example.com/faq" {
		t.Fatalf("sources = %v", got[1].Sources)
	}
}

func TestStore_RecentLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Log(ctx, "api", "", "вопрос про фонд?", domain.Answer{Answer: "ответ"})
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("interactions = %d, want 3", len(got))
	}
}
