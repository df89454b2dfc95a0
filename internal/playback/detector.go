package playback

import (
	"sync"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

// Detector decides which ticks are meaningful changes, writes them to the
// canonical State and publishes a ChangeEvent for each one.
//
// A play/pause transition alone is enough to republish the same track:
// resuming a paused song publishes it again and resets its presence flag.
type Detector struct {
	logger    *zap.Logger
	state     *State
	publisher domain.Publisher

	// serializes Apply so the read of the last identity and the write that
	// follows it form one step; never held by readers of State
	mu sync.Mutex
}

// NewDetector creates a detector writing to state and publishing to publisher
func NewDetector(logger *zap.Logger, state *State, publisher domain.Publisher) *Detector {
	return &Detector{
		logger:    logger,
		state:     state,
		publisher: publisher,
	}
}

// Apply runs the transition policy for one tick and reports whether an event
// was published
func (d *Detector) Apply(tick domain.ProviderTick) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch tick.Kind {
	case domain.TickPlaying:
		return d.applyPlaying(tick.Snapshot)
	case domain.TickPlayingUnknown:
		return d.applyPlaying(domain.RadioSnapshot())
	default:
		return d.applyIdle()
	}
}

func (d *Detector) applyPlaying(snap domain.TrackSnapshot) bool {
	id := snap.Identity()
	wasPlaying := d.state.IsPlaying()

	if wasPlaying {
		if last, ok := d.state.lastIdentity(); ok && last == id {
			return false
		}
	}

	at := d.state.recordPlaying(snap)

	if id == domain.RadioIdentity {
		d.logger.Info("Playing without track metadata, most likely a radio station or mix")
	} else {
		d.logger.Info("Track change detected",
			zap.String("track", snap.TrackName),
			zap.String("artist", snap.ArtistName),
			zap.String("album", snap.Album),
			zap.Bool("resumed", !wasPlaying))
	}

	d.publisher.Publish(domain.ChangeEvent{Kind: domain.EventPlaying, Track: snap, At: at})
	return true
}

func (d *Detector) applyIdle() bool {
	if !d.state.IsPlaying() {
		return false
	}

	paused, at, ok := d.state.recordPaused()
	if !ok {
		return false
	}

	d.logger.Info("Playback stopped",
		zap.String("track", paused.TrackName),
		zap.String("artist", paused.ArtistName))

	d.publisher.Publish(domain.ChangeEvent{Kind: domain.EventPaused, Track: paused, At: at})
	return true
}
