package events

import (
	"strings"
	"sync"
	"time"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/intent"
)

type Type string

const (
	TypeTopicCreated   Type = "topic_created"
	TypeSignalApplied  Type = "signal_applied"
	TypePhaseChanged   Type = "phase_changed"
	TypeTopicCompleted Type = "topic_completed"
	TypeTopicAbandoned Type = "topic_abandoned"
)

// Event describes one observable change to a user's topic set. Reason
// distinguishes explicit terminal transitions from staleness sweeps.
type Event struct {
	Type       Type              `json:"type"`
	UserID     string            `json:"user_id"`
	TopicID    string            `json:"topic_id"`
	Topic      string            `json:"topic,omitempty"`
	Category   intent.Category   `json:"category,omitempty"`
	Phase      intent.Phase      `json:"phase,omitempty"`
	PriorPhase intent.Phase      `json:"prior_phase,omitempty"`
	Confidence int               `json:"confidence"`
	Signal     intent.SignalKind `json:"signal,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	At         time.Time         `json:"at"`
}

// Hub fans events out to per-user subscribers. Publishing never blocks:
// a subscriber that stops draining just loses events.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[int]chan Event
	nextSubID   int
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[int]chan Event)}
}

func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan Event, 256)
	h.mu.Lock()
	h.nextSubID++
	id := h.nextSubID
	if _, ok := h.subscribers[userID]; !ok {
		h.subscribers[userID] = make(map[int]chan Event)
	}
	h.subscribers[userID][id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[userID]
		if subs == nil {
			return
		}
		if c, ok := subs[id]; ok {
			delete(subs, id)
			close(c)
		}
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
}

// Publish delivers evt to the owning user's subscribers without
// blocking.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers[evt.UserID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
