package intentruntime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/events"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/intent"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/observability"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/policy"
	"github.com/Adityashandilya555/personifi-aria-sub001/internal/social"
)

// maxSocialNames caps how many squad members a directive may name.
const maxSocialNames = 3

type Config struct {
	StaleAfter        time.Duration
	CacheTTL          time.Duration
	ActiveTopicLimit  int
	SocialTimeout     time.Duration
	SocialPulseWindow time.Duration
}

// Service is the facade over topic intent tracking. Every mutation runs
// under the store's per-user lock with a staleness sweep first; events
// are published and the read cache invalidated only after the
// transaction commits.
type Service struct {
	cfg     Config
	store   intent.Store
	cache   *intent.TopicCache
	hub     *events.Hub
	social  social.Provider
	metrics *observability.Metrics
	logger  *zap.Logger
}

func New(cfg Config, store intent.Store, provider social.Provider, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 72 * time.Hour
	}
	if cfg.ActiveTopicLimit <= 0 {
		cfg.ActiveTopicLimit = 10
	}
	if cfg.SocialTimeout <= 0 {
		cfg.SocialTimeout = 400 * time.Millisecond
	}
	if cfg.SocialPulseWindow <= 0 {
		cfg.SocialPulseWindow = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		cfg:     cfg,
		store:   store,
		cache:   intent.NewTopicCache(cfg.CacheTTL),
		hub:     events.NewHub(),
		social:  provider,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Service) StoreMode() string {
	if s == nil || s.store == nil {
		return "disabled"
	}
	return s.store.Mode()
}

func (s *Service) Subscribe(userID string) (<-chan events.Event, func()) {
	if s == nil {
		ch := make(chan events.Event)
		close(ch)
		return ch, func() {}
	}
	return s.hub.Subscribe(userID)
}

// ProcessMessage folds one classified message into the user's topic
// state. A detected label is merged into the best matching active topic
// or creates a new one; a signal without a label lands on the warmest
// active topic. Messages carrying neither are ignored without touching
// the store.
func (s *Service) ProcessMessage(ctx context.Context, req intent.ProcessRequest) (intent.ProcessResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return intent.ProcessResult{}, errors.New("user id is required")
	}
	label := strings.TrimSpace(req.TopicLabel)
	kind := intent.SignalKind(strings.TrimSpace(string(req.Signal)))
	if label == "" && kind == "" {
		s.countMessage("ignored")
		return intent.ProcessResult{}, nil
	}

	start := time.Now()
	var (
		topic    intent.TopicIntent
		prior    intent.Phase
		created  bool
		applied  bool
		noActive bool
		sweptIDs []string
	)
	lockStart := time.Now()
	err := s.store.WithUserLock(ctx, userID, func(ctx context.Context, tx intent.Tx) error {
		created, applied, noActive = false, false, false
		sweptIDs = nil

		swept, err := s.sweepTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		sweptIDs = swept

		now := time.Now().UTC()
		if label != "" {
			matches, err := tx.MatchTopics(ctx, userID, label)
			if err != nil {
				return fmt.Errorf("match topics: %w", err)
			}
			if match, ok := intent.BestMatch(label, matches); ok {
				topic = match
			} else {
				topic = intent.TopicIntent{
					ID:           uuid.NewString(),
					UserID:       userID,
					SessionID:    strings.TrimSpace(req.SessionID),
					Topic:        label,
					Category:     intent.InferCategory(label),
					Phase:        intent.PhaseNoticed,
					LastSignalAt: now,
					CreatedAt:    now,
				}
				created = true
			}
		} else {
			warmest, err := tx.WarmestTopic(ctx, userID)
			if errors.Is(err, intent.ErrNoActiveTopics) {
				noActive = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("warmest topic: %w", err)
			}
			topic = warmest
		}

		prior = topic.Phase
		if kind != "" {
			conf, phase, delta := intent.ApplySignal(topic.Confidence, kind)
			topic.Confidence = conf
			topic.Phase = phase
			topic.Signals.Append(intent.IntentSignal{
				Kind:    kind,
				Delta:   delta,
				Snippet: policy.SanitizeSnippet(req.Message),
				At:      now,
			})
			applied = true
		}
		topic.LastSignalAt = now
		topic.UpdatedAt = now
		topic.Strategy = s.composeStrategy(ctx, topic)

		if created {
			if err := tx.InsertTopic(ctx, topic); err != nil {
				return fmt.Errorf("insert topic: %w", err)
			}
			return nil
		}
		if err := tx.UpdateTopic(ctx, topic); err != nil {
			return fmt.Errorf("update topic: %w", err)
		}
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObserveMutationStage("lock_txn", time.Since(lockStart))
	}
	if err != nil {
		s.observeMutationError("process_message", userID, err)
		return intent.ProcessResult{}, err
	}

	s.publishSwept(userID, sweptIDs)
	if noActive {
		s.countMessage("noop")
		s.finishMutation(userID, start, len(sweptIDs) > 0)
		return intent.ProcessResult{}, nil
	}

	switch {
	case created:
		s.countMessage("created")
		s.hub.Publish(topicEvent(events.TypeTopicCreated, topic, "", kind, ""))
	case label != "":
		s.countMessage("merged")
	default:
		s.countMessage("warmest")
	}
	if applied {
		s.observeSignal(kind)
		if !created {
			s.hub.Publish(topicEvent(events.TypeSignalApplied, topic, "", kind, ""))
			if prior != topic.Phase {
				s.observePhaseChange(prior, topic.Phase)
				s.hub.Publish(topicEvent(events.TypePhaseChanged, topic, prior, kind, ""))
			}
		}
	}
	s.finishMutation(userID, start, true)

	return intent.ProcessResult{
		Detected:   true,
		Created:    created,
		TopicID:    topic.ID,
		Topic:      topic.Topic,
		Category:   topic.Category,
		Confidence: topic.Confidence,
		Phase:      topic.Phase,
		Strategy:   topic.Strategy,
	}, nil
}

// RecordSignal applies one signal directly to a known topic. The note,
// if any, is redacted and stored as the signal snippet.
func (s *Service) RecordSignal(ctx context.Context, userID, topicID string, kind intent.SignalKind, note string) (intent.TopicIntent, error) {
	userID = strings.TrimSpace(userID)
	topicID = strings.TrimSpace(topicID)
	if userID == "" || topicID == "" {
		return intent.TopicIntent{}, errors.New("user id and topic id are required")
	}
	kind = intent.SignalKind(strings.TrimSpace(string(kind)))
	if kind == "" {
		return intent.TopicIntent{}, errors.New("signal kind is required")
	}

	start := time.Now()
	var (
		topic    intent.TopicIntent
		prior    intent.Phase
		sweptIDs []string
	)
	lockStart := time.Now()
	err := s.store.WithUserLock(ctx, userID, func(ctx context.Context, tx intent.Tx) error {
		sweptIDs = nil
		swept, err := s.sweepTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		sweptIDs = swept

		topic, err = tx.GetTopic(ctx, userID, topicID)
		if err != nil {
			return fmt.Errorf("get topic: %w", err)
		}
		if topic.Terminal() {
			return fmt.Errorf("topic %s: %w", topicID, intent.ErrTopicTerminal)
		}

		now := time.Now().UTC()
		prior = topic.Phase
		conf, phase, delta := intent.ApplySignal(topic.Confidence, kind)
		topic.Confidence = conf
		topic.Phase = phase
		topic.Signals.Append(intent.IntentSignal{
			Kind:    kind,
			Delta:   delta,
			Snippet: policy.SanitizeSnippet(note),
			At:      now,
		})
		topic.LastSignalAt = now
		topic.UpdatedAt = now
		topic.Strategy = s.composeStrategy(ctx, topic)

		if err := tx.UpdateTopic(ctx, topic); err != nil {
			return fmt.Errorf("update topic: %w", err)
		}
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObserveMutationStage("lock_txn", time.Since(lockStart))
	}
	if err != nil {
		s.observeMutationError("record_signal", userID, err)
		return intent.TopicIntent{}, err
	}

	s.publishSwept(userID, sweptIDs)
	s.observeSignal(kind)
	s.hub.Publish(topicEvent(events.TypeSignalApplied, topic, "", kind, ""))
	if prior != topic.Phase {
		s.observePhaseChange(prior, topic.Phase)
		s.hub.Publish(topicEvent(events.TypePhaseChanged, topic, prior, kind, ""))
	}
	s.finishMutation(userID, start, true)
	return topic, nil
}

// AbandonTopic moves a topic to the abandoned phase. Abandoning an
// already abandoned topic is a no-op; any other terminal topic rejects
// the change.
func (s *Service) AbandonTopic(ctx context.Context, userID, topicID string) (intent.TopicIntent, error) {
	return s.closeTopic(ctx, userID, topicID, intent.PhaseAbandoned)
}

// CompleteTopic moves a topic to the completed phase under the same
// idempotency rules as AbandonTopic.
func (s *Service) CompleteTopic(ctx context.Context, userID, topicID string) (intent.TopicIntent, error) {
	return s.closeTopic(ctx, userID, topicID, intent.PhaseCompleted)
}

func (s *Service) closeTopic(ctx context.Context, userID, topicID string, target intent.Phase) (intent.TopicIntent, error) {
	userID = strings.TrimSpace(userID)
	topicID = strings.TrimSpace(topicID)
	if userID == "" || topicID == "" {
		return intent.TopicIntent{}, errors.New("user id and topic id are required")
	}

	op := "abandon_topic"
	evtType := events.TypeTopicAbandoned
	if target == intent.PhaseCompleted {
		op = "complete_topic"
		evtType = events.TypeTopicCompleted
	}

	start := time.Now()
	var (
		topic    intent.TopicIntent
		prior    intent.Phase
		already  bool
		sweptIDs []string
	)
	lockStart := time.Now()
	err := s.store.WithUserLock(ctx, userID, func(ctx context.Context, tx intent.Tx) error {
		already = false
		sweptIDs = nil
		swept, err := s.sweepTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		sweptIDs = swept

		topic, err = tx.GetTopic(ctx, userID, topicID)
		if err != nil {
			return fmt.Errorf("get topic: %w", err)
		}
		if topic.Phase == target {
			already = true
			return nil
		}
		if topic.Terminal() {
			return fmt.Errorf("topic %s: %w", topicID, intent.ErrTopicTerminal)
		}

		prior = topic.Phase
		topic.Phase = target
		topic.Strategy = ""
		topic.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateTopic(ctx, topic); err != nil {
			return fmt.Errorf("update topic: %w", err)
		}
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObserveMutationStage("lock_txn", time.Since(lockStart))
	}
	if err != nil {
		s.observeMutationError(op, userID, err)
		return intent.TopicIntent{}, err
	}

	s.publishSwept(userID, sweptIDs)
	if already {
		s.finishMutation(userID, start, len(sweptIDs) > 0)
		return topic, nil
	}
	s.observePhaseChange(prior, target)
	s.hub.Publish(topicEvent(evtType, topic, prior, "", "explicit"))
	s.finishMutation(userID, start, true)
	return topic, nil
}

// GetActiveTopics returns the user's non-terminal topics warmest first,
// served through the read cache. The limit is clamped to the configured
// maximum.
func (s *Service) GetActiveTopics(ctx context.Context, userID string, limit int) ([]intent.TopicIntent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	maxLimit := s.cfg.ActiveTopicLimit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	topics, hit, err := s.cache.GetOrLoad(ctx, userID, func(ctx context.Context) ([]intent.TopicIntent, error) {
		return s.store.ActiveTopics(ctx, userID, maxLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("load active topics: %w", err)
	}
	if s.metrics != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		s.metrics.CacheReads.WithLabelValues(result).Inc()
	}
	if len(topics) > limit {
		topics = topics[:limit]
	}
	return topics, nil
}

// GetStrategy returns the persisted directive for the user's warmest
// active topic, or nil when the user has none.
func (s *Service) GetStrategy(ctx context.Context, userID string) (*intent.StrategyResult, error) {
	topics, err := s.GetActiveTopics(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, nil
	}
	warmest := topics[0]
	return &intent.StrategyResult{
		TopicID:  warmest.ID,
		Topic:    warmest.Topic,
		Phase:    warmest.Phase,
		Strategy: warmest.Strategy,
	}, nil
}

func (s *Service) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Service) sweepTx(ctx context.Context, tx intent.Tx, userID string) ([]string, error) {
	begin := time.Now()
	cutoff := time.Now().UTC().Add(-s.cfg.StaleAfter)
	swept, err := tx.SweepStale(ctx, userID, cutoff)
	if s.metrics != nil {
		s.metrics.ObserveMutationStage("sweep", time.Since(begin))
	}
	if err != nil {
		return nil, fmt.Errorf("sweep stale topics: %w", err)
	}
	return swept, nil
}

func (s *Service) publishSwept(userID string, sweptIDs []string) {
	if len(sweptIDs) == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.TopicsSwept.Add(float64(len(sweptIDs)))
	}
	s.logger.Info("stale topics abandoned",
		zap.String("user_id", userID),
		zap.Int("count", len(sweptIDs)))
	now := time.Now().UTC()
	for _, id := range sweptIDs {
		s.hub.Publish(events.Event{
			Type:    events.TypeTopicAbandoned,
			UserID:  userID,
			TopicID: id,
			Phase:   intent.PhaseAbandoned,
			Reason:  "stale",
			At:      now,
		})
	}
}

// composeStrategy renders the directive for a topic's current phase,
// enriching shifting and executing topics with squad pulse data when a
// provider is configured.
func (s *Service) composeStrategy(ctx context.Context, topic intent.TopicIntent) string {
	if topic.Terminal() {
		return ""
	}
	var socialCtx *policy.SocialContext
	if s.social != nil && (topic.Phase == intent.PhaseShifting || topic.Phase == intent.PhaseExecuting) {
		socialCtx = s.lookupSocial(ctx, topic.UserID, topic.Category)
	}
	return policy.StrategyFor(topic, socialCtx)
}

// lookupSocial is best effort: it runs under its own timeout and any
// failure degrades to an unenriched directive.
func (s *Service) lookupSocial(ctx context.Context, userID string, category intent.Category) *policy.SocialContext {
	begin := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SocialTimeout)
	defer cancel()

	names, err := s.collectPulseMembers(ctx, userID, category)
	if s.metrics != nil {
		s.metrics.ObserveMutationStage("social_enrich", time.Since(begin))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.SocialLookups.WithLabelValues("error").Inc()
			s.metrics.ObserveMutationIndicator("social_enrich_failed")
		}
		s.logger.Debug("social enrichment unavailable",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	if len(names) == 0 {
		if s.metrics != nil {
			s.metrics.SocialLookups.WithLabelValues("empty").Inc()
		}
		return nil
	}
	if s.metrics != nil {
		s.metrics.SocialLookups.WithLabelValues("hit").Inc()
	}
	return &policy.SocialContext{Friends: names}
}

func (s *Service) collectPulseMembers(ctx context.Context, userID string, category intent.Category) ([]string, error) {
	squads, err := s.social.SquadsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, squad := range squads {
		pulses, err := s.social.SquadPulse(ctx, squad.ID, s.cfg.SocialPulseWindow)
		if err != nil {
			return nil, err
		}
		for _, pulse := range pulses {
			if !strings.EqualFold(pulse.Category, string(category)) {
				continue
			}
			for _, member := range pulse.Members {
				member = strings.TrimSpace(member)
				if member == "" {
					continue
				}
				if _, ok := seen[member]; ok {
					continue
				}
				seen[member] = struct{}{}
				names = append(names, member)
				if len(names) >= maxSocialNames {
					return names, nil
				}
			}
		}
	}
	return names, nil
}

func (s *Service) finishMutation(userID string, start time.Time, changed bool) {
	if changed {
		s.cache.Invalidate(userID)
	}
	if s.metrics != nil {
		s.metrics.ObserveMutationLatency(time.Since(start))
	}
}

func (s *Service) countMessage(outcome string) {
	if s.metrics != nil {
		s.metrics.MessagesProcessed.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) observeSignal(kind intent.SignalKind) {
	if s.metrics == nil {
		return
	}
	s.metrics.SignalsApplied.WithLabelValues(signalLabel(kind)).Inc()
	if signalLabel(kind) == "other" {
		s.metrics.ObserveMutationIndicator("signal_unrecognized")
	}
}

func (s *Service) observePhaseChange(from, to intent.Phase) {
	if s.metrics != nil {
		s.metrics.PhaseTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (s *Service) observeMutationError(op, userID string, err error) {
	if s.metrics != nil {
		s.metrics.MutationErrors.WithLabelValues(op).Inc()
	}
	s.logger.Warn("topic mutation failed",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Error(err))
}

// signalLabel keeps free-text signal kinds out of metric label values.
func signalLabel(kind intent.SignalKind) string {
	switch kind {
	case intent.SignalPositive, intent.SignalNegative, intent.SignalNeutral, intent.SignalCommitted:
		return string(kind)
	default:
		return "other"
	}
}

func topicEvent(evtType events.Type, topic intent.TopicIntent, prior intent.Phase, kind intent.SignalKind, reason string) events.Event {
	return events.Event{
		Type:       evtType,
		UserID:     topic.UserID,
		TopicID:    topic.ID,
		Topic:      topic.Topic,
		Category:   topic.Category,
		Phase:      topic.Phase,
		PriorPhase: prior,
		Confidence: topic.Confidence,
		Signal:     kind,
		Reason:     reason,
		At:         time.Now().UTC(),
	}
}
