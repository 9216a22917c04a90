package intent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func seedTopic(t *testing.T, store *MemoryStore, topic TopicIntent) {
	t.Helper()
	err := store.WithUserLock(context.Background(), topic.UserID, func(ctx context.Context, tx Tx) error {
		return tx.InsertTopic(ctx, topic)
	})
	if err != nil {
		t.Fatalf("seed topic %q: %v", topic.ID, err)
	}
}

func TestMemoryStoreActiveTopicsOrder(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	seedTopic(t, store, TopicIntent{ID: "cold", UserID: "u1", Topic: "museum visit", Confidence: 10, Phase: PhaseNoticed, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})
	seedTopic(t, store, TopicIntent{ID: "warm", UserID: "u1", Topic: "weekend trip", Confidence: 70, Phase: PhaseShifting, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})
	seedTopic(t, store, TopicIntent{ID: "done", UserID: "u1", Topic: "sushi night", Confidence: 90, Phase: PhaseCompleted, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})
	seedTopic(t, store, TopicIntent{ID: "other-user", UserID: "u2", Topic: "weekend trip", Confidence: 50, Phase: PhaseProbing, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})

	topics, err := store.ActiveTopics(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ActiveTopics() error: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("len(topics) = %d, want 2", len(topics))
	}
	if topics[0].ID != "warm" || topics[1].ID != "cold" {
		t.Fatalf("order = [%s %s], want [warm cold]", topics[0].ID, topics[1].ID)
	}

	limited, err := store.ActiveTopics(context.Background(), "u1", 1)
	if err != nil {
		t.Fatalf("ActiveTopics(limit=1) error: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "warm" {
		t.Fatalf("limited list = %v, want just warm", limited)
	}
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	boom := errors.New("boom")

	err := store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
		if err := tx.InsertTopic(ctx, TopicIntent{ID: "t1", UserID: "u1", Topic: "weekend trip", Phase: PhaseNoticed, LastSignalAt: now, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithUserLock() error = %v, want boom", err)
	}

	topics, err := store.ActiveTopics(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ActiveTopics() error: %v", err)
	}
	if len(topics) != 0 {
		t.Fatalf("len(topics) = %d after rollback, want 0", len(topics))
	}
}

func TestMemoryStoreTxSeesStagedWrites(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()

	err := store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
		if err := tx.InsertTopic(ctx, TopicIntent{ID: "t1", UserID: "u1", Topic: "weekend trip", Confidence: 20, Phase: PhaseNoticed, LastSignalAt: now, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		matches, err := tx.MatchTopics(ctx, "u1", "trip")
		if err != nil {
			return err
		}
		if len(matches) != 1 || matches[0].ID != "t1" {
			t.Fatalf("staged topic not visible to MatchTopics: %v", matches)
		}
		got, err := tx.GetTopic(ctx, "u1", "t1")
		if err != nil {
			return err
		}
		if got.Confidence != 20 {
			t.Fatalf("staged GetTopic confidence = %d, want 20", got.Confidence)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithUserLock() error: %v", err)
	}
}

func TestMemoryStoreMatchTopicsWarmestFirst(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	seedTopic(t, store, TopicIntent{ID: "low", UserID: "u1", Topic: "trip planning", Confidence: 15, Phase: PhaseNoticed, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})
	seedTopic(t, store, TopicIntent{ID: "high", UserID: "u1", Topic: "weekend trip", Confidence: 65, Phase: PhaseShifting, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})
	seedTopic(t, store, TopicIntent{ID: "nomatch", UserID: "u1", Topic: "sushi night", Confidence: 80, Phase: PhaseExecuting, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})

	var matches []TopicIntent
	err := store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
		var err error
		matches, err = tx.MatchTopics(ctx, "u1", "trip")
		return err
	})
	if err != nil {
		t.Fatalf("WithUserLock() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].ID != "high" || matches[1].ID != "low" {
		t.Fatalf("match order = [%s %s], want [high low]", matches[0].ID, matches[1].ID)
	}
}

func TestMemoryStoreMatchTopicsLiteralLabels(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	seedTopic(t, store, TopicIntent{ID: "t1", UserID: "u1", Topic: "movie night", Confidence: 30, Phase: PhaseProbing, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})

	err := store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
		matches, err := tx.MatchTopics(ctx, "u1", "movie_night")
		if err != nil {
			return err
		}
		if len(matches) != 0 {
			t.Fatalf("label %q matched %d topics, want 0", "movie_night", len(matches))
		}
		matches, err = tx.MatchTopics(ctx, "u1", "movie")
		if err != nil {
			return err
		}
		if len(matches) != 1 || matches[0].ID != "t1" {
			t.Fatalf("label %q matches = %v, want [t1]", "movie", matches)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithUserLock() error: %v", err)
	}
}

func TestMemoryStoreWarmestTopicEmpty(t *testing.T) {
	store := NewMemoryStore()
	err := store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
		_, err := tx.WarmestTopic(ctx, "u1")
		return err
	})
	if !errors.Is(err, ErrNoActiveTopics) {
		t.Fatalf("WarmestTopic() error = %v, want ErrNoActiveTopics", err)
	}
}

func TestMemoryStoreUpdateMissingTopic(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	err := store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
		return tx.UpdateTopic(ctx, TopicIntent{ID: "ghost", UserID: "u1", Topic: "x", Phase: PhaseNoticed, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})
	})
	if !errors.Is(err, ErrTopicNotFound) {
		t.Fatalf("UpdateTopic() error = %v, want ErrTopicNotFound", err)
	}
}

func TestMemoryStoreSweepStale(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	seedTopic(t, store, TopicIntent{ID: "stale", UserID: "u1", Topic: "old trip idea", Confidence: 40, Phase: PhaseProbing, LastSignalAt: now.Add(-80 * time.Hour), CreatedAt: now, UpdatedAt: now})
	seedTopic(t, store, TopicIntent{ID: "fresh", UserID: "u1", Topic: "weekend trip", Confidence: 40, Phase: PhaseProbing, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})
	seedTopic(t, store, TopicIntent{ID: "already-done", UserID: "u1", Topic: "sushi night", Confidence: 90, Phase: PhaseCompleted, LastSignalAt: now.Add(-90 * time.Hour), CreatedAt: now, UpdatedAt: now})

	var swept []string
	err := store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
		var err error
		swept, err = tx.SweepStale(ctx, "u1", now.Add(-72*time.Hour))
		return err
	})
	if err != nil {
		t.Fatalf("WithUserLock() error: %v", err)
	}
	if len(swept) != 1 || swept[0] != "stale" {
		t.Fatalf("swept ids = %v, want [stale]", swept)
	}

	topics, err := store.ActiveTopics(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("ActiveTopics() error: %v", err)
	}
	if len(topics) != 1 || topics[0].ID != "fresh" {
		t.Fatalf("active after sweep = %v, want just fresh", topics)
	}
}

func TestMemoryStoreSerializesUserMutations(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	seedTopic(t, store, TopicIntent{ID: "t1", UserID: "u1", Topic: "weekend trip", Category: CategoryTravel, Confidence: 40, Phase: PhaseProbing, LastSignalAt: now, CreatedAt: now, UpdatedAt: now})

	apply := func(kind SignalKind) error {
		return store.WithUserLock(context.Background(), "u1", func(ctx context.Context, tx Tx) error {
			topic, err := tx.GetTopic(ctx, "u1", "t1")
			if err != nil {
				return err
			}
			conf, phase, _ := ApplySignal(topic.Confidence, kind)
			topic.Confidence = conf
			topic.Phase = phase
			return tx.UpdateTopic(ctx, topic)
		})
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, kind := range []SignalKind{SignalPositive, SignalCommitted} {
		wg.Add(1)
		go func(kind SignalKind) {
			defer wg.Done()
			errs <- apply(kind)
		}(kind)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("apply signal: %v", err)
		}
	}

	topics, err := store.ActiveTopics(context.Background(), "u1", 5)
	if err != nil {
		t.Fatalf("ActiveTopics() error: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("len(topics) = %d, want 1", len(topics))
	}
	if topics[0].Confidence != 82 {
		t.Fatalf("confidence after concurrent signals = %d, want 82", topics[0].Confidence)
	}
	if topics[0].Phase != PhaseShifting {
		t.Fatalf("phase = %q, want %q", topics[0].Phase, PhaseShifting)
	}
}
