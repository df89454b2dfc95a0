package domain

import (
	"time"
)

const (
	// UnknownField replaces any string field the player did not report
	UnknownField = "Unknown"
	// RadioTrackName is reported when the player is playing but exposes no track metadata
	RadioTrackName = "Radio/Mix"
	// PausedDuration marks a snapshot synthesized for a playback stop
	PausedDuration = -1.0
)

// TrackSnapshot is a single normalized read of the current track
type TrackSnapshot struct {
	TrackName   string  `json:"track_name"`
	ArtistName  string  `json:"artist_name"`
	Album       string  `json:"album"`
	Genre       string  `json:"genre"`
	Progress    float64 `json:"progress"`
	Duration    float64 `json:"duration"`
	Favourited  bool    `json:"favourited"`
	PlayedCount int     `json:"played_count"`
}

// Identity returns the key used for change detection
func (s TrackSnapshot) Identity() TrackIdentity {
	return TrackIdentity{Track: s.TrackName, Artist: s.ArtistName}
}

// HasDuration reports whether the snapshot carries a usable track length.
// Paused and radio snapshots do not.
func (s TrackSnapshot) HasDuration() bool {
	return s.Duration > 0
}

// Paused returns a copy of s marked with the paused sentinel
func (s TrackSnapshot) Paused() TrackSnapshot {
	s.Progress = 0
	s.Duration = PausedDuration
	return s
}

// RadioSnapshot is the placeholder published while a radio station or mix plays
func RadioSnapshot() TrackSnapshot {
	return TrackSnapshot{
		TrackName:  RadioTrackName,
		ArtistName: UnknownField,
		Album:      UnknownField,
		Genre:      UnknownField,
	}
}

// TrackIdentity identifies a song for change detection. Comparison is exact:
// differently cased titles are different tracks.
type TrackIdentity struct {
	Track  string
	Artist string
}

// RadioIdentity is the identity of RadioSnapshot
var RadioIdentity = TrackIdentity{Track: RadioTrackName, Artist: UnknownField}

// String formats the identity as "track|artist"
func (id TrackIdentity) String() string {
	return id.Track + "|" + id.Artist
}

// EventKind distinguishes playing updates from playback stops
type EventKind string

const (
	// EventPlaying carries the snapshot of a track that is playing
	EventPlaying EventKind = "playing"
	// EventPaused carries the last known snapshot with the paused sentinel applied
	EventPaused EventKind = "paused"
)

// ChangeEvent is published to the broadcast hub on every meaningful state change
type ChangeEvent struct {
	Kind  EventKind
	Track TrackSnapshot
	At    time.Time
}

// Playing reports whether the event signals active playback
func (e ChangeEvent) Playing() bool {
	return e.Kind == EventPlaying
}

// RawSnapshot is what a Provider reads from the player. Nil string fields
// were not reported.
type RawSnapshot struct {
	TrackName   *string
	ArtistName  *string
	Album       *string
	Genre       *string
	Progress    float64
	Duration    float64
	Favourited  bool
	PlayedCount int
}

// ProviderResult is the outcome of one Provider query
type ProviderResult struct {
	Playing bool
	// Track is nil when nothing is playing or the player exposed no metadata
	Track *RawSnapshot
}

// TickKind classifies a normalized provider result
type TickKind int

const (
	// TickIdle means nothing is playing or the query failed
	TickIdle TickKind = iota
	// TickPlayingUnknown means playing with no track name (radio or mix)
	TickPlayingUnknown
	// TickPlaying means playing with a normalized snapshot
	TickPlaying
)

func (k TickKind) String() string {
	switch k {
	case TickIdle:
		return "idle"
	case TickPlayingUnknown:
		return "playing_unknown"
	case TickPlaying:
		return "playing"
	default:
		return "invalid"
	}
}

// ProviderTick is the input of the change detector
type ProviderTick struct {
	Kind     TickKind
	Snapshot TrackSnapshot
}

// PresenceTimestamps bounds the elapsed/remaining bar shown by the presence service
type PresenceTimestamps struct {
	Start time.Time
	End   time.Time
}

// PresencePayload is the activity pushed to the presence service
type PresencePayload struct {
	Details    string
	State      string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
	// Timestamps is nil when the track length is unknown
	Timestamps *PresenceTimestamps
}

// ArtworkCandidate is one search hit from the artwork lookup service
type ArtworkCandidate struct {
	TrackName  string
	ArtistName string
	ArtworkURL string
}

// PausePolicy decides what the presence synchronizer does when playback stops
type PausePolicy string

const (
	// PauseShow keeps the last track visible without a progress bar
	PauseShow PausePolicy = "show"
	// PauseClear removes the presence entirely
	PauseClear PausePolicy = "clear"
)
