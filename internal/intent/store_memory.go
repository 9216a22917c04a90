package intent

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process store for local/dev use. It reproduces
// the transactional semantics of the Postgres store: mutations for one
// user serialize on a per-user mutex, and writes are staged and applied
// only when the callback succeeds.
type MemoryStore struct {
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	mu     sync.RWMutex
	topics map[string]map[string]TopicIntent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:  make(map[string]*sync.Mutex),
		topics: make(map[string]map[string]TopicIntent),
	}
}

func (s *MemoryStore) userLock(userID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

func (s *MemoryStore) WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		store:  s,
		userID: userID,
		staged: make(map[string]TopicIntent),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	forUser := s.topics[userID]
	if forUser == nil {
		forUser = make(map[string]TopicIntent)
		s.topics[userID] = forUser
	}
	for id, topic := range tx.staged {
		forUser[id] = topic
	}
	return nil
}

func (s *MemoryStore) ActiveTopics(_ context.Context, userID string, limit int) ([]TopicIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TopicIntent, 0, len(s.topics[userID]))
	for _, topic := range s.topics[userID] {
		if topic.Terminal() {
			continue
		}
		out = append(out, topic.Clone())
	}
	SortByWarmth(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Mode() string {
	return "in-memory"
}

func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	store  *MemoryStore
	userID string
	staged map[string]TopicIntent
}

// snapshot merges the committed state with this transaction's staged
// writes, staged winning.
func (t *memoryTx) snapshot() []TopicIntent {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	out := make([]TopicIntent, 0, len(t.staged)+len(t.store.topics[t.userID]))
	for _, topic := range t.staged {
		out = append(out, topic.Clone())
	}
	for id, topic := range t.store.topics[t.userID] {
		if _, ok := t.staged[id]; ok {
			continue
		}
		out = append(out, topic.Clone())
	}
	return out
}

func (t *memoryTx) MatchTopics(_ context.Context, userID, label string) ([]TopicIntent, error) {
	if userID != t.userID {
		return nil, nil
	}
	out := containmentMatches(label, t.snapshot())
	SortByWarmth(out)
	return out, nil
}

func (t *memoryTx) WarmestTopic(_ context.Context, userID string) (TopicIntent, error) {
	if userID != t.userID {
		return TopicIntent{}, ErrNoActiveTopics
	}
	topic, ok := Warmest(t.snapshot())
	if !ok {
		return TopicIntent{}, ErrNoActiveTopics
	}
	return topic, nil
}

func (t *memoryTx) GetTopic(_ context.Context, userID, topicID string) (TopicIntent, error) {
	if userID == t.userID {
		if topic, ok := t.staged[topicID]; ok {
			return topic.Clone(), nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	topic, ok := t.store.topics[userID][topicID]
	if !ok {
		return TopicIntent{}, ErrTopicNotFound
	}
	return topic.Clone(), nil
}

func (t *memoryTx) InsertTopic(_ context.Context, topic TopicIntent) error {
	t.staged[topic.ID] = topic.Clone()
	return nil
}

func (t *memoryTx) UpdateTopic(_ context.Context, topic TopicIntent) error {
	if _, ok := t.staged[topic.ID]; !ok {
		t.store.mu.RLock()
		_, exists := t.store.topics[topic.UserID][topic.ID]
		t.store.mu.RUnlock()
		if !exists {
			return ErrTopicNotFound
		}
	}
	t.staged[topic.ID] = topic.Clone()
	return nil
}

func (t *memoryTx) SweepStale(_ context.Context, userID string, cutoff time.Time) ([]string, error) {
	if userID != t.userID {
		return nil, nil
	}
	var ids []string
	for _, topic := range t.snapshot() {
		if topic.Terminal() || !topic.LastSignalAt.Before(cutoff) {
			continue
		}
		topic.Phase = PhaseAbandoned
		topic.Strategy = ""
		topic.UpdatedAt = time.Now().UTC()
		t.staged[topic.ID] = topic
		ids = append(ids, topic.ID)
	}
	return ids, nil
}
