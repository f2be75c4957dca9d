package events

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(4)
	defer bus.Unsubscribe(ch)

	bus.Emit(SourceChat, KindChatStarted, map[string]any{"conversation_id": "c1"})

	select {
	case e := <-ch:
		if e.Source != SourceChat || e.Kind != KindChatStarted {
			t.Errorf("event = %+v", e)
		}
		if e.Data["conversation_id"] != "c1" {
			t.Errorf("data = %+v", e.Data)
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestNilBusIsNoOp(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Kind: KindChatStarted})
	bus.Emit(SourceJobs, KindChatCompleted, nil)
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("subscriber count on nil bus = %d", n)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(1)
	defer bus.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Emit(SourceChat, KindChatStarted, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(1)
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel not closed")
	}
	// Double unsubscribe is a no-op.
	bus.Unsubscribe(ch)
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("subscriber count = %d", n)
	}
}
