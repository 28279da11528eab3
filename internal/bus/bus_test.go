package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/roundtable/engine/pkg/types"
)

func TestSubscribeToSession(t *testing.T) {
	b := New()
	defer b.Close()

	received := make(chan types.Event, 1)
	unsub := b.SubscribeToSession("s1", func(e types.Event) {
		received <- e
	})
	defer unsub()

	b.PublishSync(types.Event{SessionID: "s1", Type: types.EventTurnGranted, Sequence: 1})
	b.PublishSync(types.Event{SessionID: "s2", Type: types.EventTurnGranted, Sequence: 1})

	select {
	case e := <-received:
		if e.SessionID != "s1" {
			t.Fatalf("expected s1, got %s", e.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case e := <-received:
		t.Fatalf("unexpected second delivery: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeToTypeAcrossSessions(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var seen []string
	var wg sync.WaitGroup
	wg.Add(2)

	unsub := b.SubscribeToType(types.EventSpeechComplete, func(e types.Event) {
		mu.Lock()
		seen = append(seen, e.SessionID)
		mu.Unlock()
		wg.Done()
	})
	defer unsub()

	b.PublishSync(types.Event{SessionID: "a", Type: types.EventSpeechComplete})
	b.PublishSync(types.Event{SessionID: "b", Type: types.EventSpeechComplete})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for both events")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 deliveries, got %d: %v", len(seen), seen)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	count := 0
	var mu sync.Mutex
	unsub := b.SubscribeAll(func(types.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.PublishSync(types.Event{SessionID: "s1"})
	unsub()
	b.PublishSync(types.Event{SessionID: "s1"})

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestPublishAsyncDoesNotBlock(t *testing.T) {
	b := New()
	defer b.Close()

	block := make(chan struct{})
	done := make(chan struct{})
	b.SubscribeAll(func(types.Event) {
		<-block
	})

	go func() {
		b.Publish(types.Event{SessionID: "s1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	close(block)
}

func TestPanicInSubscriberIsolated(t *testing.T) {
	b := New()
	defer b.Close()

	var calledOK bool
	var mu sync.Mutex

	b.SubscribeAll(func(types.Event) {
		panic("boom")
	})
	b.SubscribeAll(func(types.Event) {
		mu.Lock()
		calledOK = true
		mu.Unlock()
	})

	b.PublishSync(types.Event{SessionID: "s1"})

	mu.Lock()
	defer mu.Unlock()
	if !calledOK {
		t.Fatal("second subscriber should still have run after first panicked")
	}
}
