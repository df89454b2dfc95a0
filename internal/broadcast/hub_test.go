package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
)

func event(name string) domain.ChangeEvent {
	return domain.ChangeEvent{
		Kind:  domain.EventPlaying,
		Track: domain.TrackSnapshot{TrackName: name, ArtistName: "Artist"},
	}
}

func recvN(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ev, err := sub.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv #%d: %v", i, err)
		}
		names = append(names, ev.Track.TrackName)
	}
	return names
}

// TestHub_FanOutIsolation verifies that every subscriber sees the same ordered stream
func TestHub_FanOutIsolation(t *testing.T) {
	hub := New(DefaultCapacity)
	a := hub.Subscribe()
	b := hub.Subscribe()

	want := []string{"one", "two", "three", "four"}
	for _, name := range want {
		hub.Publish(event(name))
	}

	for label, sub := range map[string]*Subscription{"a": a, "b": b} {
		got := recvN(t, sub, len(want))
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("subscriber %s: expected %v, got %v", label, want, got)
		}
	}
}

func TestHub_LateSubscriberMissesEarlierEvents(t *testing.T) {
	hub := New(DefaultCapacity)
	hub.Publish(event("first"))

	late := hub.Subscribe()
	hub.Publish(event("second"))

	got := recvN(t, late, 1)
	if got[0] != "second" {
		t.Errorf("expected 'second', got %q", got[0])
	}
	if _, ok := late.TryRecv(); ok {
		t.Error("late subscriber should have nothing else queued")
	}
}

// TestHub_SlowSubscriberDropsOldest verifies the publisher is never blocked and
// the subscriber resumes from the oldest retained event
func TestHub_SlowSubscriberDropsOldest(t *testing.T) {
	hub := New(3)
	sub := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(event(fmt.Sprintf("e%d", i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a subscriber that never reads")
	}

	got := recvN(t, sub, 3)
	want := []string{"e7", "e8", "e9"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if sub.Lagged() != 7 {
		t.Errorf("Lagged: expected 7, got %d", sub.Lagged())
	}
}

func TestHub_RecvWaitsForPublish(t *testing.T) {
	hub := New(DefaultCapacity)
	sub := hub.Subscribe()

	result := make(chan string, 1)
	go func() {
		ev, err := sub.Recv(context.Background())
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- ev.Track.TrackName
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(event("wake"))

	select {
	case got := <-result:
		if got != "wake" {
			t.Errorf("expected 'wake', got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not wake up after Publish")
	}
}

func TestHub_RecvContextCancelled(t *testing.T) {
	hub := New(DefaultCapacity)
	sub := hub.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sub.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHub_CloseDrainsThenErrClosed(t *testing.T) {
	hub := New(DefaultCapacity)
	sub := hub.Subscribe()

	hub.Publish(event("last"))
	hub.Close()
	hub.Publish(event("ignored"))

	got := recvN(t, sub, 1)
	if got[0] != "last" {
		t.Errorf("expected 'last', got %q", got[0])
	}
	if _, err := sub.Recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if hub.Published() != 1 {
		t.Errorf("Published: expected 1, got %d", hub.Published())
	}
}

func TestHub_CloseWakesWaiters(t *testing.T) {
	hub := New(DefaultCapacity)
	sub := hub.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiting subscriber")
	}
}

func TestHub_ConcurrentSubscribers(t *testing.T) {
	hub := New(DefaultCapacity)
	const subscribers = 8
	const events = 50

	subs := make([]*Subscription, subscribers)
	for i := range subs {
		subs[i] = hub.Subscribe()
	}

	var wg sync.WaitGroup
	counts := make([]int, subscribers)
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for {
				if _, err := sub.Recv(ctx); err != nil {
					return
				}
				counts[i]++
			}
		}(i, sub)
	}

	for i := 0; i < events; i++ {
		hub.Publish(event(fmt.Sprintf("e%d", i)))
	}
	hub.Close()
	wg.Wait()

	for i, c := range counts {
		if c != events {
			t.Errorf("subscriber %d: expected %d events, got %d", i, events, c)
		}
	}
}
