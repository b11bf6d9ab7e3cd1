package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	id1, ch1 := hub.Subscribe()
	id2, ch2 := hub.Subscribe()
	defer hub.Unsubscribe(id1)
	defer hub.Unsubscribe(id2)

	hub.Publish(TypeRatingsUpdated, map[string]int{"engine1_delta": 8})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != TypeRatingsUpdated {
				t.Errorf("Expected %s, got %s", TypeRatingsUpdated, e.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("Subscriber never received the event")
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub := NewHub()
	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	// Overflow the subscriber buffer without draining it
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(TypeGameFinished, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if len(ch) != cap(ch) {
		t.Errorf("Expected a full buffer, got %d/%d", len(ch), cap(ch))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed")
	}
	// Second call is harmless
	hub.Unsubscribe(id)
	hub.Publish(TypeGameFinished, nil)
}
