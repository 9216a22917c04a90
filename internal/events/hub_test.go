package events

import (
	"testing"
	"time"
)

func TestHubPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("u1")

	hub.Publish(Event{Type: TypeTopicCreated, UserID: "u1", TopicID: "t1", At: time.Now().UTC()})

	select {
	case evt := <-ch:
		if evt.Type != TypeTopicCreated || evt.TopicID != "t1" {
			t.Fatalf("received %+v, want topic_created for t1", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
}

func TestHubIsolatesUsers(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe("u1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("u2")
	defer cancel2()

	hub.Publish(Event{Type: TypeSignalApplied, UserID: "u2", TopicID: "t9", At: time.Now().UTC()})

	select {
	case evt := <-ch2:
		if evt.TopicID != "t9" {
			t.Fatalf("u2 received %+v, want event for t9", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("u2 subscriber missed its event")
	}

	select {
	case evt := <-ch1:
		t.Fatalf("u1 received %+v, want nothing", evt)
	default:
	}
}

func TestHubBlankUserSubscribe(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("  ")
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatal("blank-user channel delivered an event")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	for i := 0; i < 300; i++ {
		hub.Publish(Event{Type: TypeSignalApplied, UserID: "u1", TopicID: "t1", At: time.Now().UTC()})
	}

	if n := len(ch); n != 256 {
		t.Fatalf("buffered events = %d, want the full 256 buffer", n)
	}
}
