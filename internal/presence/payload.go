package presence

import (
	"fmt"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
)

const (
	// DefaultLabel names the player in the large image tooltip
	DefaultLabel = "Apple Music"
	// DefaultImage is the asset key shown when no artwork is found
	DefaultImage = "image_logo"
)

// Options controls how presence is rendered
type Options struct {
	// Label prefixes the large image tooltip, e.g. "Apple Music"
	Label string
	// DefaultImage is shown when no artwork matched
	DefaultImage string
	PausePolicy  domain.PausePolicy
}

// BuildPayload renders the presence activity for ev. Timestamps are set only
// when the track has a positive duration, anchored so that now is at
// ev.Track.Progress seconds into the track.
func BuildPayload(ev domain.ChangeEvent, artworkURL string, opts Options, now time.Time) domain.PresencePayload {
	track := ev.Track

	image := artworkURL
	if image == "" {
		image = opts.DefaultImage
	}

	largeText := opts.Label
	if track.Genre != "" && track.Genre != domain.UnknownField {
		largeText += " - " + track.Genre
	}
	if track.PlayedCount > 0 {
		largeText += fmt.Sprintf(" (Played %d times)", track.PlayedCount)
	}

	payload := domain.PresencePayload{
		Details:    "Listening to " + track.TrackName,
		State:      "by " + track.ArtistName,
		LargeImage: image,
		LargeText:  largeText,
		SmallImage: "unfavourite",
		SmallText:  "Not Favourited",
	}
	if track.Favourited {
		payload.SmallImage = "favourite"
		payload.SmallText = "Favourited"
	}

	if track.HasDuration() {
		start := int64(float64(now.Unix()) - track.Progress)
		payload.Timestamps = &domain.PresenceTimestamps{
			Start: time.Unix(start, 0),
			End:   time.Unix(start+int64(track.Duration), 0),
		}
	}
	return payload
}
