package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/chirplabs/chirp/internal/core/domain"
)

func point(id, botID, text string, index int, vector []float32) domain.IndexedPoint {
	return domain.IndexedPoint{
		ID:     id,
		Vector: vector,
		Payload: domain.PointPayload{
			BotID:      botID,
			Text:       text,
			ChunkIndex: index,
		},
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.Upsert(ctx, "bot-1", []domain.IndexedPoint{
		point("p1", "bot-1", "exact match", 0, []float32{1, 0}),
		point("p2", "bot-1", "orthogonal", 1, []float32{0, 1}),
		point("p3", "bot-1", "close", 2, []float32{0.9, 0.1}),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.Search(ctx, "bot-1", []float32{1, 0}, 2, 0.5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	if got[0].Text != "exact match" || got[1].Text != "close" {
		t.Fatalf("unexpected ranking %+v", got)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores must descend, got %v then %v", got[0].Score, got[1].Score)
	}
}

func TestSearchAppliesScoreFloor(t *testing.T) {
	store := New()
	ctx := context.Background()

	_ = store.Upsert(ctx, "bot-1", []domain.IndexedPoint{
		point("p1", "bot-1", "far away", 0, []float32{0, 1}),
	})

	got, err := store.Search(ctx, "bot-1", []float32{1, 0}, 3, 0.6)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no hits above floor, got %+v", got)
	}
}

func TestTenantIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	_ = store.Upsert(ctx, "bot-1", []domain.IndexedPoint{point("p1", "bot-1", "mine", 0, []float32{1, 0})})
	_ = store.Upsert(ctx, "bot-2", []domain.IndexedPoint{point("p2", "bot-2", "theirs", 0, []float32{1, 0})})

	got, err := store.Search(ctx, "bot-1", []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "mine" {
		t.Fatalf("expected only bot-1 points, got %+v", got)
	}
}

func TestDeleteAllClearsOneBot(t *testing.T) {
	store := New()
	ctx := context.Background()

	_ = store.Upsert(ctx, "bot-1", []domain.IndexedPoint{point("p1", "bot-1", "mine", 0, []float32{1, 0})})
	_ = store.Upsert(ctx, "bot-2", []domain.IndexedPoint{point("p2", "bot-2", "theirs", 0, []float32{1, 0})})

	if err := store.DeleteAll(ctx, "bot-1"); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}

	gone, _ := store.Search(ctx, "bot-1", []float32{1, 0}, 5, 0)
	if len(gone) != 0 {
		t.Fatalf("expected bot-1 cleared, got %+v", gone)
	}
	kept, _ := store.Search(ctx, "bot-2", []float32{1, 0}, 5, 0)
	if len(kept) != 1 {
		t.Fatalf("expected bot-2 untouched, got %+v", kept)
	}
}

func TestUpsertReplacesById(t *testing.T) {
	store := New()
	ctx := context.Background()

	_ = store.Upsert(ctx, "bot-1", []domain.IndexedPoint{point("p1", "bot-1", "old text", 0, []float32{1, 0})})
	_ = store.Upsert(ctx, "bot-1", []domain.IndexedPoint{point("p1", "bot-1", "new text", 0, []float32{1, 0})})

	got, err := store.Search(ctx, "bot-1", []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("re-used id must replace, got %d hits: %+v", len(got), got)
	}
	if got[0].Text != "new text" {
		t.Fatalf("expected replacement to win, got %q", got[0].Text)
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	err := store.Upsert(ctx, "bot-1", []domain.IndexedPoint{
		point("p1", "bot-1", "wrong shape", 0, []float32{1, 0, 0}),
	})
	if !domain.IsKind(err, domain.ErrIndex) {
		t.Fatalf("expected index error, got %v", err)
	}

	got, _ := store.Search(ctx, "bot-1", []float32{1, 0}, 5, 0)
	if len(got) != 0 {
		t.Fatalf("rejected upsert must store nothing, got %+v", got)
	}

	if err := store.Upsert(ctx, "bot-1", []domain.IndexedPoint{
		point("p2", "bot-1", "right shape", 0, []float32{1, 0}),
	}); err != nil {
		t.Fatalf("matching dimension must pass: %v", err)
	}
}

func TestTenantIsolationUnderConcurrency(t *testing.T) {
	store := New()
	ctx := context.Background()

	const rounds = 100
	var wg sync.WaitGroup
	errs := make(chan error, 4)

	for _, botID := range []string{"bot-1", "bot-2"} {
		botID := botID
		text := botID + " point"

		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				err := store.Upsert(ctx, botID, []domain.IndexedPoint{
					point(fmt.Sprintf("%s-p%d", botID, i), botID, text, i, []float32{1, 0}),
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				got, err := store.Search(ctx, botID, []float32{1, 0}, rounds, 0)
				if err != nil {
					errs <- err
					return
				}
				for _, hit := range got {
					if hit.Text != text {
						errs <- fmt.Errorf("%s saw foreign point %q", botID, hit.Text)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		t.Fatalf("concurrent tenants interfered: %v", err)
	}

	for _, botID := range []string{"bot-1", "bot-2"} {
		got, err := store.Search(ctx, botID, []float32{1, 0}, rounds+1, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(got) != rounds {
			t.Fatalf("%s expected %d points, got %d", botID, rounds, len(got))
		}
	}
}

func TestUpsertRejectsInvalidPoint(t *testing.T) {
	store := New()
	err := store.Upsert(context.Background(), "bot-1", []domain.IndexedPoint{
		{ID: "", Vector: []float32{1}},
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
