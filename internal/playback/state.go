package playback

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
)

// State is the canonical playback state. The Detector is its only writer;
// any number of goroutines may read it through the query methods.
//
// Compound fields live behind mu. The playing flag is mirrored in an atomic
// so IsPlaying never contends with the poller.
type State struct {
	mu             sync.RWMutex
	snapshot       *domain.TrackSnapshot
	identity       *domain.TrackIdentity
	lastChange     time.Time
	presenceSynced bool

	playing atomic.Bool
	now     func() time.Time
}

// StatusView is a consistent copy of every field, taken under one lock
type StatusView struct {
	Track          *domain.TrackSnapshot
	Playing        bool
	LastChange     time.Time
	SinceChange    time.Duration
	PresenceSynced bool
}

// NewState creates an empty state: nothing reported, not playing
func NewState() *State {
	return newStateWithClock(time.Now)
}

func newStateWithClock(now func() time.Time) *State {
	return &State{now: now, lastChange: now()}
}

// Current returns a copy of the last recorded snapshot
func (s *State) Current() (domain.TrackSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return domain.TrackSnapshot{}, false
	}
	return *s.snapshot, true
}

// IsPlaying reports whether the player was playing at the last change
func (s *State) IsPlaying() bool {
	return s.playing.Load()
}

// SinceLastChange returns the time elapsed since the state was last written
func (s *State) SinceLastChange() time.Duration {
	s.mu.RLock()
	last := s.lastChange
	s.mu.RUnlock()
	return s.now().Sub(last)
}

// View returns every field in one consistent read
func (s *State) View() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := StatusView{
		Playing:        s.playing.Load(),
		LastChange:     s.lastChange,
		SinceChange:    s.now().Sub(s.lastChange),
		PresenceSynced: s.presenceSynced,
	}
	if s.snapshot != nil {
		snap := *s.snapshot
		view.Track = &snap
	}
	return view
}

// PresenceSynced reports whether presence was already applied for id.
// It is false whenever id is not the track currently playing.
func (s *State) PresenceSynced(id domain.TrackIdentity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isCurrentLocked(id) && s.presenceSynced
}

// MarkPresenceSynced records that presence was applied for id. It returns
// false and changes nothing when id is no longer the playing track.
func (s *State) MarkPresenceSynced(id domain.TrackIdentity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(id) {
		return false
	}
	s.presenceSynced = true
	return true
}

func (s *State) isCurrentLocked(id domain.TrackIdentity) bool {
	return s.playing.Load() && s.identity != nil && *s.identity == id
}

// lastIdentity is read by the Detector, which is the only writer
func (s *State) lastIdentity() (domain.TrackIdentity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return domain.TrackIdentity{}, false
	}
	return *s.identity, true
}

// recordPlaying writes a playing snapshot. A new identity or a resumed
// playback resets the presence flag.
func (s *State) recordPlaying(snap domain.TrackSnapshot) time.Time {
	id := snap.Identity()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = &snap
	s.identity = &id
	s.lastChange = s.now()
	s.presenceSynced = false
	s.playing.Store(true)
	return s.lastChange
}

// recordPaused applies the paused sentinel to the held snapshot and returns it
func (s *State) recordPaused() (domain.TrackSnapshot, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playing.Store(false)
	s.lastChange = s.now()
	s.presenceSynced = false

	if s.snapshot == nil {
		return domain.TrackSnapshot{}, s.lastChange, false
	}
	paused := s.snapshot.Paused()
	s.snapshot = &paused
	return paused, s.lastChange, true
}
