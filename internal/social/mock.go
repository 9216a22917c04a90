package social

import (
	"context"
	"strings"
	"time"
)

// MockProvider returns deterministic squads and pulses for local/dev
// use, so directive enrichment can be exercised without the real graph
// service.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) SquadsForUser(ctx context.Context, userID string) ([]Squad, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	return []Squad{{ID: "squad-local", Name: "The Locals"}}, nil
}

func (p *MockProvider) SquadPulse(ctx context.Context, squadID string, window time.Duration) ([]CategoryPulse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if strings.TrimSpace(squadID) == "" {
		return nil, nil
	}
	return []CategoryPulse{
		{Category: "food", Members: []string{"Ana", "Raj"}},
		{Category: "travel", Members: []string{"Mei", "Tom"}},
	}, nil
}
