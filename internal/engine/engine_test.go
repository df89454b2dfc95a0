package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/nowplayingd/internal/broadcast"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

type fakeResolver struct {
	mu    sync.Mutex
	urls  map[string]string
	calls []string
}

func (f *fakeResolver) Resolve(ctx context.Context, track domain.TrackSnapshot) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, track.TrackName)
	url, ok := f.urls[track.TrackName]
	return url, ok
}

func (f *fakeResolver) resolved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeFetcher struct {
	err error
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(url), nil
}

// markingProcessor marks its output so tests can tell processed bytes from raw ones
type markingProcessor struct{}

func (markingProcessor) Process(ctx context.Context, data []byte) ([]byte, error) {
	return append([]byte("card:"), data...), nil
}

func playing(name string) domain.ChangeEvent {
	return domain.ChangeEvent{
		Kind:  domain.EventPlaying,
		Track: domain.TrackSnapshot{TrackName: name, ArtistName: "Artist", Duration: 100},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startEngine(t *testing.T, resolver *fakeResolver, fetch domain.Fetcher, opts Options) (*Engine, *broadcast.Hub) {
	t.Helper()
	hub := broadcast.New(10)
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	e := NewEngine(zap.NewNop(), hub, resolver, fetch, markingProcessor{}, opts)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := e.Stop(ctx); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return e, hub
}

func TestEngine_DebouncesRapidChanges(t *testing.T) {
	resolver := &fakeResolver{urls: map[string]string{
		"A": "https://x/a.jpg",
		"B": "https://x/b.jpg",
		"C": "https://x/c.jpg",
	}}
	e, hub := startEngine(t, resolver, fakeFetcher{}, Options{Debounce: 100 * time.Millisecond})

	hub.Publish(playing("A"))
	hub.Publish(playing("B"))
	hub.Publish(playing("C"))

	waitFor(t, func() bool {
		_, ok := e.Latest()
		return ok
	})

	card, _ := e.Latest()
	if string(card) != "card:https://x/c.jpg" {
		t.Errorf("expected card for C, got %q", card)
	}
	if calls := resolver.resolved(); len(calls) != 1 || calls[0] != "C" {
		t.Errorf("expected only C to be resolved, got %v", calls)
	}
}

func TestEngine_PauseKeepsCover(t *testing.T) {
	resolver := &fakeResolver{urls: map[string]string{"A": "https://x/a.jpg"}}
	e, hub := startEngine(t, resolver, fakeFetcher{}, Options{})

	hub.Publish(playing("A"))
	waitFor(t, func() bool {
		_, ok := e.Latest()
		return ok
	})

	paused := playing("A")
	paused.Kind = domain.EventPaused
	paused.Track = paused.Track.Paused()
	hub.Publish(paused)
	time.Sleep(80 * time.Millisecond)

	if _, ok := e.Latest(); !ok {
		t.Error("cover should survive a pause")
	}
	if n := len(resolver.resolved()); n != 1 {
		t.Errorf("expected 1 resolve, got %d", n)
	}
}

func TestEngine_NoArtworkClearsCover(t *testing.T) {
	resolver := &fakeResolver{urls: map[string]string{"A": "https://x/a.jpg"}}
	e, hub := startEngine(t, resolver, fakeFetcher{}, Options{})

	hub.Publish(playing("A"))
	waitFor(t, func() bool {
		_, ok := e.Latest()
		return ok
	})

	hub.Publish(playing("Unlisted"))
	waitFor(t, func() bool {
		_, ok := e.Latest()
		return !ok
	})
}

func TestEngine_FetchFailureKeepsPreviousCover(t *testing.T) {
	resolver := &fakeResolver{urls: map[string]string{"A": "https://x/a.jpg"}}
	e, hub := startEngine(t, resolver, fakeFetcher{err: errors.New("timeout")}, Options{})

	hub.Publish(playing("A"))
	waitFor(t, func() bool { return len(resolver.resolved()) == 1 })
	time.Sleep(20 * time.Millisecond)

	if _, ok := e.Latest(); ok {
		t.Error("expected no cover after fetch failure")
	}
}

func TestEngine_ExportsToDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "covers")
	resolver := &fakeResolver{urls: map[string]string{"A": "https://x/a.jpg"}}
	_, hub := startEngine(t, resolver, fakeFetcher{}, Options{Dir: dir})

	hub.Publish(playing("A"))

	path := filepath.Join(dir, coverFilename)
	waitFor(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cover: %v", err)
	}
	if string(data) != "card:https://x/a.jpg" {
		t.Errorf("unexpected exported cover %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the cover file, found %d entries", len(entries))
	}
}

func TestEngine_StopsWhenHubCloses(t *testing.T) {
	hub := broadcast.New(4)
	e := NewEngine(zap.NewNop(), hub, &fakeResolver{}, fakeFetcher{}, markingProcessor{}, Options{})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	hub.Close()

	select {
	case <-e.done:
	case <-time.After(time.Second):
		t.Fatal("engine loop did not end after hub close")
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Errorf("Stop after close: %v", err)
	}
}

func TestEngine_FlushesPendingChangeOnHubClose(t *testing.T) {
	hub := broadcast.New(4)
	resolver := &fakeResolver{urls: map[string]string{"Last": "https://x/last.jpg"}}
	e := NewEngine(zap.NewNop(), hub, resolver, fakeFetcher{}, markingProcessor{}, Options{Debounce: time.Hour})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	hub.Publish(playing("Last"))
	hub.Close()

	select {
	case <-e.done:
	case <-time.After(time.Second):
		t.Fatal("engine loop did not end after hub close")
	}

	card, ok := e.Latest()
	if !ok || string(card) != "card:https://x/last.jpg" {
		t.Errorf("expected the pending change to be rendered, got %q (ok=%v)", card, ok)
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Errorf("Stop after close: %v", err)
	}
}
