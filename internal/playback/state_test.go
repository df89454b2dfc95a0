package playback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
)

func TestState_Initial(t *testing.T) {
	s := NewState()

	if _, ok := s.Current(); ok {
		t.Error("new state should have no snapshot")
	}
	if s.IsPlaying() {
		t.Error("new state should not be playing")
	}
	view := s.View()
	if view.Track != nil || view.Playing || view.PresenceSynced {
		t.Errorf("unexpected initial view: %+v", view)
	}
}

func TestState_SinceLastChange(t *testing.T) {
	var now atomic.Int64
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now.Store(start.UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()).UTC() }

	s := newStateWithClock(clock)
	now.Add(int64(3 * time.Second))
	if got := s.SinceLastChange(); got != 3*time.Second {
		t.Errorf("expected 3s since creation, got %v", got)
	}

	s.recordPlaying(domain.TrackSnapshot{TrackName: "A", ArtistName: "B"})
	now.Add(int64(2 * time.Second))
	if got := s.SinceLastChange(); got != 2*time.Second {
		t.Errorf("expected 2s since the write, got %v", got)
	}
	if got := s.View().SinceChange; got != 2*time.Second {
		t.Errorf("View.SinceChange: expected 2s, got %v", got)
	}
}

func TestState_CurrentReturnsCopy(t *testing.T) {
	s := NewState()
	s.recordPlaying(domain.TrackSnapshot{TrackName: "A", ArtistName: "B"})

	snap, _ := s.Current()
	snap.TrackName = "mutated"

	again, _ := s.Current()
	if again.TrackName != "A" {
		t.Errorf("Current should return a copy, got %q", again.TrackName)
	}
}

func TestState_PresenceFlagRequiresPlaying(t *testing.T) {
	s := NewState()
	id := domain.TrackIdentity{Track: "A", Artist: "B"}

	if s.MarkPresenceSynced(id) {
		t.Error("cannot mark presence before anything played")
	}

	s.recordPlaying(domain.TrackSnapshot{TrackName: "A", ArtistName: "B"})
	if !s.MarkPresenceSynced(id) || !s.PresenceSynced(id) {
		t.Fatal("presence should be marked for the playing track")
	}

	s.recordPaused()
	if s.PresenceSynced(id) {
		t.Error("presence flag is meaningless while paused")
	}
	if s.MarkPresenceSynced(id) {
		t.Error("cannot mark presence while paused")
	}
}

// TestState_ConcurrentReadsNeverTorn hammers the query surface while the
// writer alternates between two snapshots whose fields are all derived from
// one value; a torn read would mix them.
func TestState_ConcurrentReadsNeverTorn(t *testing.T) {
	s := NewState()
	snapshotFor := func(i int) domain.TrackSnapshot {
		tag := fmt.Sprintf("v%d", i)
		return domain.TrackSnapshot{
			TrackName:   tag,
			ArtistName:  tag,
			Album:       tag,
			Genre:       tag,
			Progress:    float64(i),
			Duration:    float64(i),
			PlayedCount: i,
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var torn atomic.Int64

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if snap, ok := s.Current(); ok {
					if snap.ArtistName != snap.TrackName || snap.Album != snap.TrackName ||
						snap.Genre != snap.TrackName || snap.Progress != float64(snap.PlayedCount) {
						torn.Add(1)
					}
				}
				if view := s.View(); view.Track != nil && view.Track.TrackName != view.Track.Genre {
					torn.Add(1)
				}
				_ = s.IsPlaying()
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		s.recordPlaying(snapshotFor(i % 2))
	}
	close(stop)
	wg.Wait()

	if n := torn.Load(); n != 0 {
		t.Errorf("observed %d torn reads", n)
	}
}
