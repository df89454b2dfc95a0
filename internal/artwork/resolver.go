package artwork

import (
	"context"
	"fmt"
	"strings"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

const thumbnailSuffix = "100x100bb.jpg"

// Resolver finds cover art for a snapshot: cache first, then the search service.
// Misses are cached too so a track without artwork is looked up once per TTL.
type Resolver struct {
	logger   *zap.Logger
	searcher domain.ArtworkSearcher
	cache    domain.ArtworkCache
	size     int
}

var _ domain.ArtworkResolver = (*Resolver)(nil)

// NewResolver creates a resolver returning images of size x size pixels
func NewResolver(logger *zap.Logger, searcher domain.ArtworkSearcher, cache domain.ArtworkCache, size int) *Resolver {
	if size <= 0 {
		size = 512
	}
	return &Resolver{
		logger:   logger,
		searcher: searcher,
		cache:    cache,
		size:     size,
	}
}

// Resolve returns the artwork URL for track. Failures are logged and reported as not found.
func (r *Resolver) Resolve(ctx context.Context, track domain.TrackSnapshot) (string, bool) {
	id := track.Identity()
	if id == domain.RadioIdentity || track.TrackName == domain.UnknownField {
		return "", false
	}

	key := id.String()
	if value, found, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("Artwork cache read failed", zap.String("track", key), zap.Error(err))
	} else if found {
		return value, value != ""
	}

	candidates, err := r.searcher.Search(ctx, track.TrackName)
	if err != nil {
		// Not cached: a transient failure should be retried on the next change
		r.logger.Warn("Artwork search failed", zap.String("track", key), zap.Error(err))
		return "", false
	}

	url, ok := Match(candidates, track, r.size)
	if err := r.cache.Set(ctx, key, url); err != nil {
		r.logger.Warn("Artwork cache write failed", zap.String("track", key), zap.Error(err))
	}

	if ok {
		r.logger.Debug("Artwork resolved", zap.String("track", key), zap.String("url", url))
	} else {
		r.logger.Debug("No matching artwork", zap.String("track", key), zap.Int("candidates", len(candidates)))
	}
	return url, ok
}

// Match picks the first candidate whose artist and title equal the track's,
// ignoring case, and upgrades its thumbnail URL to size pixels
func Match(candidates []domain.ArtworkCandidate, track domain.TrackSnapshot, size int) (string, bool) {
	for _, c := range candidates {
		if !strings.EqualFold(c.ArtistName, track.ArtistName) || !strings.EqualFold(c.TrackName, track.TrackName) {
			continue
		}
		if c.ArtworkURL == "" {
			continue
		}
		return UpgradeURL(c.ArtworkURL, size), true
	}
	return "", false
}

// UpgradeURL swaps the 100px thumbnail suffix for the requested size
func UpgradeURL(thumbnail string, size int) string {
	return strings.Replace(thumbnail, thumbnailSuffix, fmt.Sprintf("%dx%dbb.jpg", size, size), 1)
}
