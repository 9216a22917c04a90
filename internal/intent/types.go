package intent

import (
	"strings"
	"time"
)

type Phase string

const (
	PhaseNoticed   Phase = "noticed"
	PhaseProbing   Phase = "probing"
	PhaseShifting  Phase = "shifting"
	PhaseExecuting Phase = "executing"
	PhaseCompleted Phase = "completed"
	PhaseAbandoned Phase = "abandoned"
)

type SignalKind string

const (
	SignalPositive  SignalKind = "positive"
	SignalNegative  SignalKind = "negative"
	SignalNeutral   SignalKind = "neutral"
	SignalCommitted SignalKind = "committed"
)

type Category string

const (
	CategoryFood      Category = "food"
	CategoryTravel    Category = "travel"
	CategoryNightlife Category = "nightlife"
	CategoryActivity  Category = "activity"
	CategoryOther     Category = "other"
)

// SnippetMaxChars bounds the message excerpt stored alongside each signal.
const SnippetMaxChars = 100

type IntentSignal struct {
	Kind    SignalKind `json:"kind"`
	Delta   int        `json:"delta"`
	Snippet string     `json:"snippet,omitempty"`
	At      time.Time  `json:"at"`
}

type TopicIntent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Topic        string    `json:"topic"`
	Category     Category  `json:"category"`
	Confidence   int       `json:"confidence"`
	Phase        Phase     `json:"phase"`
	Signals      SignalLog `json:"signals"`
	Strategy     string    `json:"strategy,omitempty"`
	LastSignalAt time.Time `json:"last_signal_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProcessRequest struct {
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id,omitempty"`
	Message    string     `json:"message"`
	TopicLabel string     `json:"topic_label,omitempty"`
	Signal     SignalKind `json:"signal,omitempty"`
}

type ProcessResult struct {
	Detected   bool     `json:"detected"`
	Created    bool     `json:"created,omitempty"`
	TopicID    string   `json:"topic_id,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Category   Category `json:"category,omitempty"`
	Confidence int      `json:"confidence"`
	Phase      Phase    `json:"phase,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
}

type StrategyResult struct {
	TopicID  string `json:"topic_id"`
	Topic    string `json:"topic"`
	Phase    Phase  `json:"phase"`
	Strategy string `json:"strategy"`
}

func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseAbandoned:
		return true
	default:
		return false
	}
}

func (t TopicIntent) Terminal() bool {
	return t.Phase.Terminal()
}

func (t TopicIntent) Clone() TopicIntent {
	return t
}

// TruncateSnippet trims s and caps it at SnippetMaxChars runes.
func TruncateSnippet(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= SnippetMaxChars {
		return s
	}
	return string(runes[:SnippetMaxChars])
}
