package presence

import (
	"context"
	"errors"
	"time"

	"github.com/genricoloni/nowplayingd/internal/broadcast"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"github.com/genricoloni/nowplayingd/internal/playback"
	"github.com/genricoloni/nowplayingd/internal/presence/discord"
	"go.uber.org/zap"
)

// stopTimeout bounds the final StopActivity call on shutdown
const stopTimeout = 3 * time.Second

// Synchronizer mirrors change events to the presence service.
// It is a hub subscriber of its own, so a slow artwork lookup or presence
// call only delays presence, never the poller or other subscribers.
type Synchronizer struct {
	logger   *zap.Logger
	hub      *broadcast.Hub
	state    *playback.State
	client   domain.PresenceClient
	resolver domain.ArtworkResolver
	opts     Options
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSynchronizer creates a synchronizer. Missing labels fall back to the defaults.
func NewSynchronizer(
	logger *zap.Logger,
	hub *broadcast.Hub,
	state *playback.State,
	client domain.PresenceClient,
	resolver domain.ArtworkResolver,
	opts Options,
) *Synchronizer {
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.DefaultImage == "" {
		opts.DefaultImage = DefaultImage
	}
	if opts.PausePolicy == "" {
		opts.PausePolicy = domain.PauseShow
	}
	return &Synchronizer{
		logger:   logger,
		hub:      hub,
		state:    state,
		client:   client,
		resolver: resolver,
		opts:     opts,
		now:      time.Now,
	}
}

// Start subscribes to the hub and runs the sync loop in a goroutine.
// It returns immediately (non-blocking).
func (s *Synchronizer) Start(ctx context.Context) error {
	if s.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Presence synchronizer starting",
		zap.String("pausePolicy", string(s.opts.PausePolicy)))
	go s.run(loopCtx, s.hub.Subscribe())
	return nil
}

// Stop ends the loop, which clears presence once before returning
func (s *Synchronizer) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the loop has exited
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

func (s *Synchronizer) run(ctx context.Context, sub *broadcast.Subscription) {
	defer close(s.done)
	defer s.clear()

	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			if errors.Is(err, broadcast.ErrClosed) {
				s.logger.Info("Event stream ended")
			}
			if lagged := sub.Lagged(); lagged > 0 {
				s.logger.Debug("Presence subscriber skipped events", zap.Uint64("lagged", lagged))
			}
			return
		}
		s.Handle(ctx, ev)
	}
}

// Handle applies a single change event
func (s *Synchronizer) Handle(ctx context.Context, ev domain.ChangeEvent) {
	if ev.Playing() {
		s.handlePlaying(ctx, ev)
		return
	}
	s.handlePaused(ctx, ev)
}

func (s *Synchronizer) handlePlaying(ctx context.Context, ev domain.ChangeEvent) {
	id := ev.Track.Identity()

	if s.stale(id) {
		s.logger.Debug("Skipping superseded event", zap.String("track", id.String()))
		return
	}
	if s.state.PresenceSynced(id) {
		return
	}

	payload := BuildPayload(ev, s.artwork(ctx, ev.Track), s.opts, s.now())
	if err := s.client.SetActivity(ctx, payload); err != nil {
		s.logger.Warn("Failed to set presence", zap.String("track", id.String()), zap.Error(err))
		return
	}

	if s.state.MarkPresenceSynced(id) {
		s.logger.Info("Updated presence",
			zap.String("track", ev.Track.TrackName),
			zap.String("artist", ev.Track.ArtistName))
	}
}

func (s *Synchronizer) handlePaused(ctx context.Context, ev domain.ChangeEvent) {
	if s.state.IsPlaying() {
		// Playback already resumed; the resume event follows
		return
	}

	switch s.opts.PausePolicy {
	case domain.PauseClear:
		if err := s.client.StopActivity(ctx); err != nil && !errors.Is(err, discord.ErrNotConnected) {
			s.logger.Warn("Failed to clear presence", zap.Error(err))
			return
		}
		s.logger.Info("Cleared presence on pause")
	default:
		payload := BuildPayload(ev, s.artwork(ctx, ev.Track), s.opts, s.now())
		if err := s.client.SetActivity(ctx, payload); err != nil {
			s.logger.Warn("Failed to set paused presence", zap.Error(err))
			return
		}
		s.logger.Info("Updated presence for pause", zap.String("track", ev.Track.TrackName))
	}
}

// stale reports whether a newer track replaced id while the event was queued
func (s *Synchronizer) stale(id domain.TrackIdentity) bool {
	current, ok := s.state.Current()
	return ok && s.state.IsPlaying() && current.Identity() != id
}

func (s *Synchronizer) artwork(ctx context.Context, track domain.TrackSnapshot) string {
	if s.resolver == nil {
		return ""
	}
	url, ok := s.resolver.Resolve(ctx, track)
	if !ok {
		return ""
	}
	return url
}

// clear makes exactly one StopActivity attempt and releases the client
func (s *Synchronizer) clear() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := s.client.StopActivity(ctx); err != nil {
		if errors.Is(err, discord.ErrNotConnected) {
			s.logger.Debug("No presence session to clear")
		} else {
			s.logger.Warn("Failed to stop presence", zap.Error(err))
		}
	} else {
		s.logger.Info("Stopped presence")
	}

	if err := s.client.Close(); err != nil {
		s.logger.Warn("Failed to close presence client", zap.Error(err))
	}
}
