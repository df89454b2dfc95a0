package domain

import "context"

// Provider reads the media player's current state
// Implementations own any native resources; callers only see values
//
//go:generate mockgen -destination=mocks/domain_mock.go -package=mocks github.com/genricoloni/nowplayingd/internal/domain Provider,PresenceClient,ArtworkSearcher
type Provider interface {
	// Poll queries the player once. It should return within one poll interval.
	Poll(ctx context.Context) (ProviderResult, error)
}

// Publisher accepts change events without blocking
type Publisher interface {
	Publish(ev ChangeEvent)
}

// PresenceClient talks to the third-party presence service
type PresenceClient interface {
	// SetActivity replaces the visible activity
	SetActivity(ctx context.Context, payload PresencePayload) error

	// StopActivity clears the visible activity
	StopActivity(ctx context.Context) error

	// Close releases the underlying connection
	Close() error
}

// ArtworkSearcher queries the external artwork lookup service
type ArtworkSearcher interface {
	// Search returns candidates for a track name
	Search(ctx context.Context, term string) ([]ArtworkCandidate, error)
}

// ArtworkResolver maps a snapshot to a cover image URL
type ArtworkResolver interface {
	// Resolve returns the artwork URL and true, or "" and false when nothing matched
	Resolve(ctx context.Context, track TrackSnapshot) (string, bool)
}

// ArtworkCache stores resolved artwork URLs. An empty value records a miss.
type ArtworkCache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// ImageProcessor defines the interface for in-memory image processing
// This is OS-agnostic and works purely with byte streams
type ImageProcessor interface {
	// Process renders a cover card from raw artwork bytes
	Process(ctx context.Context, imageData []byte) ([]byte, error)
}

// Fetcher defines the interface for retrieving album artwork
type Fetcher interface {
	// Fetch downloads image data from a URL
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}
