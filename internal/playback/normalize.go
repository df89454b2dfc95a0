package playback

import (
	"math"
	"strings"

	"github.com/genricoloni/nowplayingd/internal/domain"
)

// Normalize turns one provider query into a detector tick. A failed query,
// a nil snapshot or a missing track name never surface as errors: they
// degrade to Idle or PlayingUnknown.
func Normalize(result domain.ProviderResult, err error) domain.ProviderTick {
	if err != nil || !result.Playing {
		return domain.ProviderTick{Kind: domain.TickIdle}
	}

	raw := result.Track
	if raw == nil || raw.TrackName == nil {
		return domain.ProviderTick{Kind: domain.TickPlayingUnknown}
	}

	return domain.ProviderTick{
		Kind: domain.TickPlaying,
		Snapshot: domain.TrackSnapshot{
			TrackName:   validUTF8(*raw.TrackName),
			ArtistName:  orUnknown(raw.ArtistName),
			Album:       orUnknown(raw.Album),
			Genre:       orUnknown(raw.Genre),
			Progress:    finiteOr(raw.Progress, 0),
			Duration:    finiteOr(raw.Duration, 0),
			Favourited:  raw.Favourited,
			PlayedCount: max(raw.PlayedCount, 0),
		},
	}
}

func orUnknown(field *string) string {
	if field == nil {
		return domain.UnknownField
	}
	return validUTF8(*field)
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
