package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisObjectPath = "/org/mpris/MediaPlayer2"
	propMetadata    = "org.mpris.MediaPlayer2.Player.Metadata"
	propStatus      = "org.mpris.MediaPlayer2.Player.PlaybackStatus"
	propPosition    = "org.mpris.MediaPlayer2.Player.Position"

	statusPlaying = "Playing"
)

// MprisProvider reads the playing MPRIS player over the D-Bus session bus.
// The connection is opened lazily and dropped after a bus error so the next
// poll reconnects.
type MprisProvider struct {
	logger    *zap.Logger
	preferred string
	dial      func() (DBusClient, error)

	mu   sync.Mutex
	conn DBusClient
}

// NewMprisProvider creates a provider. preferred is an optional bus-name suffix
// (e.g. "spotify") whose player is checked first.
func NewMprisProvider(logger *zap.Logger, preferred string) *MprisProvider {
	return &MprisProvider{
		logger:    logger,
		preferred: strings.TrimSpace(preferred),
		dial: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Poll returns the first player reporting "Playing"
func (m *MprisProvider) Poll(ctx context.Context) (domain.ProviderResult, error) {
	conn, err := m.connection()
	if err != nil {
		return domain.ProviderResult{}, fmt.Errorf("session bus connection failed: %w", err)
	}

	names, err := conn.ListNames(ctx)
	if err != nil {
		m.reset(conn)
		return domain.ProviderResult{}, fmt.Errorf("failed to list bus names: %w", err)
	}

	for _, player := range m.orderPlayers(names) {
		if err := ctx.Err(); err != nil {
			return domain.ProviderResult{}, err
		}

		playing, err := m.isPlaying(ctx, conn, player)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.ProviderResult{}, ctxErr
			}
			// A player that vanished between ListNames and the query is not fatal
			m.logger.Debug("Failed to read playback status",
				zap.String("player", player),
				zap.Error(err))
			continue
		}
		if !playing {
			continue
		}

		return domain.ProviderResult{Playing: true, Track: m.readTrack(ctx, conn, player)}, nil
	}

	return domain.ProviderResult{Playing: false}, nil
}

// Close releases the bus connection
func (m *MprisProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func (m *MprisProvider) connection() (DBusClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, nil
	}
	conn, err := m.dial()
	if err != nil {
		return nil, err
	}
	m.logger.Info("Connected to session bus")
	m.conn = conn
	return conn, nil
}

func (m *MprisProvider) reset(conn DBusClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn {
		return
	}
	if err := conn.Close(); err != nil {
		m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
	}
	m.conn = nil
}

// orderPlayers filters MPRIS names and puts the preferred player first
func (m *MprisProvider) orderPlayers(names []string) []string {
	players := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	sort.SliceStable(players, func(i, j int) bool {
		return m.isPreferred(players[i]) && !m.isPreferred(players[j])
	})
	return players
}

func (m *MprisProvider) isPreferred(name string) bool {
	if m.preferred == "" {
		return false
	}
	instance := strings.TrimPrefix(name, mprisPrefix)
	return instance == m.preferred || strings.HasPrefix(instance, m.preferred+".")
}

func (m *MprisProvider) isPlaying(ctx context.Context, conn DBusClient, player string) (bool, error) {
	variant, err := conn.GetProperty(ctx, player, mprisObjectPath, propStatus)
	if err != nil {
		return false, err
	}
	status, ok := variant.Value().(string)
	if !ok {
		return false, fmt.Errorf("invalid playback status format")
	}
	return status == statusPlaying, nil
}

// readTrack returns nil when the player exposes no usable metadata,
// which the detector treats as radio/mix playback
func (m *MprisProvider) readTrack(ctx context.Context, conn DBusClient, player string) *domain.RawSnapshot {
	variant, err := conn.GetProperty(ctx, player, mprisObjectPath, propMetadata)
	if err != nil {
		m.logger.Debug("Failed to read metadata", zap.String("player", player), zap.Error(err))
		return nil
	}

	// SAFE CAST: Some players may return nil or unexpected types if not playing anything
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		m.logger.Debug("Metadata variant is not a map, skipping", zap.String("player", player))
		return nil
	}

	raw := m.parseMetadata(metadata)

	// Position is optional; some players do not implement it
	if posVariant, err := conn.GetProperty(ctx, player, mprisObjectPath, propPosition); err == nil {
		if us, ok := toFloat(posVariant.Value()); ok {
			raw.Progress = us / 1e6
		}
	}

	return raw
}

// parseMetadata converts MPRIS metadata to a raw snapshot
func (m *MprisProvider) parseMetadata(metadata map[string]dbus.Variant) *domain.RawSnapshot {
	raw := &domain.RawSnapshot{}

	// An empty title means the same as no title (browsers, streams)
	if title, ok := stringField(metadata, "xesam:title"); ok && title != "" {
		raw.TrackName = &title
	}
	if artist, ok := firstOfList(metadata, "xesam:artist"); ok {
		raw.ArtistName = &artist
	} else if v, present := metadata["xesam:artist"]; present {
		// Some non-compliant players may use unexpected types
		m.logger.Debug("Unexpected artist type in metadata",
			zap.String("type", fmt.Sprintf("%T", v.Value())))
	}
	if album, ok := stringField(metadata, "xesam:album"); ok {
		raw.Album = &album
	}
	if genre, ok := firstOfList(metadata, "xesam:genre"); ok {
		raw.Genre = &genre
	}
	if v, ok := metadata["mpris:length"]; ok {
		if us, ok := toFloat(v.Value()); ok {
			raw.Duration = us / 1e6
		}
	}
	if v, ok := metadata["xesam:useCount"]; ok {
		if n, ok := toFloat(v.Value()); ok {
			raw.PlayedCount = int(n)
		}
	}
	if v, ok := metadata["xesam:userRating"]; ok {
		if rating, ok := toFloat(v.Value()); ok {
			raw.Favourited = rating >= 1
		}
	}

	return raw
}

func stringField(metadata map[string]dbus.Variant, key string) (string, bool) {
	v, ok := metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

// firstOfList reads a field that MPRIS defines as a list of strings
// but that some players send as a plain string
func firstOfList(metadata map[string]dbus.Variant, key string) (string, bool) {
	v, ok := metadata[key]
	if !ok {
		return "", false
	}
	switch values := v.Value().(type) {
	case []string:
		if len(values) > 0 {
			return values[0], true
		}
	case string:
		return values, true
	}
	return "", false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
