package intent

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTopicNotFound  = errors.New("topic not found in store")
	ErrTopicTerminal  = errors.New("topic is in a terminal phase")
	ErrNoActiveTopics = errors.New("no active topics for user")
)

// Tx is the mutation surface available inside a per-user locked
// transaction. While a callback holds a Tx, no other mutation for the
// same user is running. All effects are atomic: if the callback returns
// an error nothing is persisted.
type Tx interface {
	// MatchTopics returns the user's non-terminal topics whose label
	// fuzzily matches label, warmest first.
	MatchTopics(ctx context.Context, userID, label string) ([]TopicIntent, error)
	// WarmestTopic returns the user's highest-confidence non-terminal
	// topic, or ErrNoActiveTopics.
	WarmestTopic(ctx context.Context, userID string) (TopicIntent, error)
	GetTopic(ctx context.Context, userID, topicID string) (TopicIntent, error)
	InsertTopic(ctx context.Context, topic TopicIntent) error
	UpdateTopic(ctx context.Context, topic TopicIntent) error
	// SweepStale abandons the user's non-terminal topics whose last
	// signal is older than cutoff and returns the affected ids.
	SweepStale(ctx context.Context, userID string, cutoff time.Time) ([]string, error)
}

// Store persists TopicIntents. WithUserLock serializes all mutations
// for one user; plain reads bypass the lock and may trail an in-flight
// mutation by one commit.
type Store interface {
	WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error
	// ActiveTopics returns the user's non-terminal topics ordered by
	// confidence descending, then most recent signal first.
	ActiveTopics(ctx context.Context, userID string, limit int) ([]TopicIntent, error)
	Mode() string
	Close() error
}
