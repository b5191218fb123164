package events

import (
	"testing"
	"time"
)

func TestBroker_SubscribePublish(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Kind: KindWorktrees, ProjectKey: "repo-1234abcd"})

	select {
	case ev := <-ch:
		if ev.Kind != KindWorktrees || ev.ProjectKey != "repo-1234abcd" {
			t.Errorf("got %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event on subscriber channel")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(Event{Kind: KindSession, SessionID: "s1"})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.SessionID != "s1" {
				t.Errorf("subscriber %d: got %+v", i, ev)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: expected event", i)
		}
	}
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for range subscriberBuffer * 3 {
			b.Publish(Event{Kind: KindProject})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestBroker_UnsubscribeRemoves(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	b.Publish(Event{Kind: KindProject})

	select {
	case <-ch:
		t.Fatal("should not receive after unsubscribe")
	default:
	}
	b.mu.Lock()
	n := len(b.subscribers)
	b.mu.Unlock()
	if n != 0 {
		t.Errorf("%d subscribers left after unsubscribe", n)
	}
}

func TestBroker_NilPublish(t *testing.T) {
	var b *Broker
	b.Publish(Event{Kind: KindProject})
}
