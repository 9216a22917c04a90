package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Squad is a peer group the user belongs to.
type Squad struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CategoryPulse reports a category in which at least two distinct squad
// members recently recorded a matching interest signal.
type CategoryPulse struct {
	Category string   `json:"category"`
	Members  []string `json:"members"`
}

// Provider supplies optional friend-graph enrichment. Every call is
// best-effort; callers treat failures as absence of data, never as a
// reason to fail their own operation.
type Provider interface {
	SquadsForUser(ctx context.Context, userID string) ([]Squad, error)
	SquadPulse(ctx context.Context, squadID string, window time.Duration) ([]CategoryPulse, error)
}

// Config controls provider construction.
type Config struct {
	Mode    string
	HTTPURL string
	Timeout time.Duration
}

// NewProvider builds a provider for the configured mode. Mode "off"
// returns a nil provider; callers skip enrichment entirely.
func NewProvider(cfg Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPProvider(cfg.HTTPURL, cfg.Timeout), nil
		}
		return NewMockProvider(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("social HTTP url is required for http mode")
		}
		return NewHTTPProvider(cfg.HTTPURL, cfg.Timeout), nil
	case "mock":
		return NewMockProvider(), nil
	case "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported social provider mode %q", cfg.Mode)
	}
}
