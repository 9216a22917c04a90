package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initIntentSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initIntentSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS topic_intents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			topic TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'other',
			confidence INTEGER NOT NULL DEFAULT 0,
			phase TEXT NOT NULL,
			signals JSONB NOT NULL DEFAULT '[]',
			strategy TEXT NOT NULL DEFAULT '',
			last_signal_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_topic_intents_user_phase ON topic_intents (user_id, phase);`,
		`CREATE INDEX IF NOT EXISTS idx_topic_intents_user_warmth ON topic_intents (user_id, confidence DESC, last_signal_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init intent schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// lockKeys derives the two int32 halves of the advisory-lock key for a
// user id from a 64-bit FNV-1a hash. Distinct users that collide on
// both halves serialize against each other, which costs throughput but
// not correctness.
func lockKeys(userID string) (int32, int32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	sum := h.Sum64()
	return int32(uint32(sum >> 32)), int32(uint32(sum))
}

// WithUserLock opens a transaction, takes the user's advisory lock for
// the duration of that transaction and runs fn. The lock releases on
// commit or rollback.
func (s *PostgresStore) WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	hi, lo := lockKeys(userID)
	if _, err := pgtx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, hi, lo); err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}

	if err := fn(ctx, &postgresTx{tx: pgtx}); err != nil {
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveTopics(ctx context.Context, userID string, limit int) ([]TopicIntent, error) {
	return loadActiveTopics(ctx, s.pool, userID, limit)
}

func (s *PostgresStore) Mode() string {
	return "postgres"
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

// MatchTopics narrows candidates with LIKE and applies the exact
// containment rule in Go. ESCAPE '' keeps backslashes literal inside
// both patterns, so % and _ are the only wildcards and the rows are a
// superset of the rule.
func (t *postgresTx) MatchTopics(ctx context.Context, userID, label string) ([]TopicIntent, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, user_id, session_id, topic, category, confidence, phase, signals, strategy,
		        last_signal_at, created_at, updated_at
		   FROM topic_intents
		  WHERE user_id=$1
		    AND phase NOT IN ('completed','abandoned')
		    AND (lower(topic) LIKE '%'||lower($2)||'%' ESCAPE ''
		         OR lower($2) LIKE '%'||lower(topic)||'%' ESCAPE '')
		  ORDER BY confidence DESC, last_signal_at DESC`,
		userID, strings.TrimSpace(label),
	)
	if err != nil {
		return nil, fmt.Errorf("match topics: %w", err)
	}
	defer rows.Close()
	topics, err := collectTopics(rows)
	if err != nil {
		return nil, err
	}
	return containmentMatches(label, topics), nil
}

func (t *postgresTx) WarmestTopic(ctx context.Context, userID string) (TopicIntent, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT id, user_id, session_id, topic, category, confidence, phase, signals, strategy,
		        last_signal_at, created_at, updated_at
		   FROM topic_intents
		  WHERE user_id=$1 AND phase NOT IN ('completed','abandoned')
		  ORDER BY confidence DESC, last_signal_at DESC
		  LIMIT 1`,
		userID,
	)
	topic, err := scanTopicRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return TopicIntent{}, ErrNoActiveTopics
		}
		return TopicIntent{}, fmt.Errorf("warmest topic: %w", err)
	}
	return topic, nil
}

func (t *postgresTx) GetTopic(ctx context.Context, userID, topicID string) (TopicIntent, error) {
	return loadTopic(ctx, t.tx, userID, topicID)
}

func (t *postgresTx) InsertTopic(ctx context.Context, topic TopicIntent) error {
	signals, err := json.Marshal(topic.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO topic_intents (
			id, user_id, session_id, topic, category, confidence, phase, signals, strategy,
			last_signal_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		topic.ID,
		topic.UserID,
		topic.SessionID,
		topic.Topic,
		string(topic.Category),
		topic.Confidence,
		string(topic.Phase),
		signals,
		topic.Strategy,
		topic.LastSignalAt,
		topic.CreatedAt,
		topic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateTopic(ctx context.Context, topic TopicIntent) error {
	signals, err := json.Marshal(topic.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE topic_intents SET
			topic=$3,
			category=$4,
			confidence=$5,
			phase=$6,
			signals=$7,
			strategy=$8,
			last_signal_at=$9,
			updated_at=$10
		  WHERE id=$1 AND user_id=$2`,
		topic.ID,
		topic.UserID,
		topic.Topic,
		string(topic.Category),
		topic.Confidence,
		string(topic.Phase),
		signals,
		topic.Strategy,
		topic.LastSignalAt,
		topic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTopicNotFound
	}
	return nil
}

func (t *postgresTx) SweepStale(ctx context.Context, userID string, cutoff time.Time) ([]string, error) {
	rows, err := t.tx.Query(ctx,
		`UPDATE topic_intents
		    SET phase='abandoned', strategy='', updated_at=now()
		  WHERE user_id=$1
		    AND phase NOT IN ('completed','abandoned')
		    AND last_signal_at < $2
		  RETURNING id`,
		userID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("sweep stale topics: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan swept id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swept ids: %w", err)
	}
	return ids, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadActiveTopics(ctx context.Context, q querier, userID string, limit int) ([]TopicIntent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.Query(ctx,
		`SELECT id, user_id, session_id, topic, category, confidence, phase, signals, strategy,
		        last_signal_at, created_at, updated_at
		   FROM topic_intents
		  WHERE user_id=$1 AND phase NOT IN ('completed','abandoned')
		  ORDER BY confidence DESC, last_signal_at DESC
		  LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list active topics: %w", err)
	}
	defer rows.Close()
	return collectTopics(rows)
}

func loadTopic(ctx context.Context, q querier, userID, topicID string) (TopicIntent, error) {
	row := q.QueryRow(ctx,
		`SELECT id, user_id, session_id, topic, category, confidence, phase, signals, strategy,
		        last_signal_at, created_at, updated_at
		   FROM topic_intents
		  WHERE id=$1 AND user_id=$2`,
		topicID, userID,
	)
	topic, err := scanTopicRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return TopicIntent{}, ErrTopicNotFound
		}
		return TopicIntent{}, fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

func collectTopics(rows pgx.Rows) ([]TopicIntent, error) {
	out := make([]TopicIntent, 0, 8)
	for rows.Next() {
		topic, err := scanTopicRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic row: %w", err)
		}
		out = append(out, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic rows: %w", err)
	}
	return out, nil
}

func scanTopicRow(row pgx.Row) (TopicIntent, error) {
	var (
		topic      TopicIntent
		category   string
		phase      string
		rawSignals []byte
	)
	if err := row.Scan(
		&topic.ID,
		&topic.UserID,
		&topic.SessionID,
		&topic.Topic,
		&category,
		&topic.Confidence,
		&phase,
		&rawSignals,
		&topic.Strategy,
		&topic.LastSignalAt,
		&topic.CreatedAt,
		&topic.UpdatedAt,
	); err != nil {
		return TopicIntent{}, err
	}
	topic.Category = Category(category)
	topic.Phase = Phase(phase)
	if len(rawSignals) > 0 {
		if err := json.Unmarshal(rawSignals, &topic.Signals); err != nil {
			return TopicIntent{}, fmt.Errorf("decode signals: %w", err)
		}
	}
	return topic, nil
}
