package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProviderSquadsForUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/users/u1/squads" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"squads":[{"id":"s1","name":"The Locals"}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	squads, err := p.SquadsForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SquadsForUser() error = %v", err)
	}
	if len(squads) != 1 || squads[0].ID != "s1" || squads[0].Name != "The Locals" {
		t.Fatalf("squads = %+v, want the single squad s1", squads)
	}
}

func TestHTTPProviderRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"categories":[{"category":"food","members":["Ana","Raj"]}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	pulses, err := p.SquadPulse(context.Background(), "s1", 168*time.Hour)
	if err != nil {
		t.Fatalf("SquadPulse() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("server calls = %d, want 2", got)
	}
	if len(pulses) != 1 || pulses[0].Category != "food" || len(pulses[0].Members) != 2 {
		t.Fatalf("pulses = %+v, want the food pulse with two members", pulses)
	}
}

func TestHTTPProviderDoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such squad", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	if _, err := p.SquadPulse(context.Background(), "ghost", time.Hour); err == nil {
		t.Fatal("SquadPulse() expected error for 404")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("server calls = %d, want 1", got)
	}
}
