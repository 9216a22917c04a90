package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/reliability"
)

// HTTPProvider talks to the social graph service over REST. The client
// timeout doubles as the enrichment budget, so a slow peer cannot
// inflate per-user lock hold time.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 400 * time.Millisecond
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) SquadsForUser(ctx context.Context, userID string) ([]Squad, error) {
	var payload struct {
		Squads []Squad `json:"squads"`
	}
	endpoint := fmt.Sprintf("%s/v1/users/%s/squads", p.baseURL, url.PathEscape(userID))
	if err := p.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Squads, nil
}

func (p *HTTPProvider) SquadPulse(ctx context.Context, squadID string, window time.Duration) ([]CategoryPulse, error) {
	var payload struct {
		Categories []CategoryPulse `json:"categories"`
	}
	endpoint := fmt.Sprintf("%s/v1/squads/%s/pulse?window=%s", p.baseURL, url.PathEscape(squadID), window)
	if err := p.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Categories, nil
}

// getJSON performs a GET with one bounded retry on retryable statuses.
func (p *HTTPProvider) getJSON(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, 25*time.Millisecond, 100*time.Millisecond)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		res, err := p.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("send request: %w", err)
			continue
		}

		if res.StatusCode == http.StatusOK {
			err := json.NewDecoder(res.Body).Decode(out)
			res.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		res.Body.Close()
		lastErr = fmt.Errorf("social http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		if !reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return lastErr
		}
	}
	return lastErr
}
