package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/genricoloni/nowplayingd/internal/broadcast"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultDebounce is the quiet period required before a track is rendered
	DefaultDebounce = 500 * time.Millisecond
	coverFilename   = "cover.jpg"
)

// Options configures the cover engine
type Options struct {
	// Dir receives cover.jpg on every render. Empty disables the export.
	Dir      string
	Debounce time.Duration
}

// Engine orchestrates the cover card pipeline.
// It listens to change events, resolves and fetches artwork, renders a card,
// keeps it in memory and optionally exports it to disk.
type Engine struct {
	logger    *zap.Logger
	hub       *broadcast.Hub
	resolver  domain.ArtworkResolver
	fetcher   domain.Fetcher
	processor domain.ImageProcessor
	opts      Options

	mu       sync.RWMutex
	latest   []byte
	latestID domain.TrackIdentity

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new cover engine
func NewEngine(
	logger *zap.Logger,
	hub *broadcast.Hub,
	resolver domain.ArtworkResolver,
	fetch domain.Fetcher,
	proc domain.ImageProcessor,
	opts Options,
) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Engine{
		logger:    logger,
		hub:       hub,
		resolver:  resolver,
		fetcher:   fetch,
		processor: proc,
		opts:      opts,
	}
}

// Start subscribes to the hub and launches the event loop in a goroutine.
// It returns immediately (non-blocking).
func (e *Engine) Start(ctx context.Context) error {
	if e.cancel != nil {
		return nil
	}
	e.logger.Info("Engine starting...", zap.Duration("debounce", e.opts.Debounce))

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.done = make(chan struct{})

	events := make(chan domain.ChangeEvent)
	go e.pump(loopCtx, e.hub.Subscribe(), events)
	go e.runLoop(loopCtx, events)
	return nil
}

// Stop ends the event loop and waits for the in-flight render
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping...")
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	e.cancel = nil

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recent rendered cover card
func (e *Engine) Latest() ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest, e.latest != nil
}

// pump turns the subscription into a channel for the debounce loop
func (e *Engine) pump(ctx context.Context, sub *broadcast.Subscription, out chan<- domain.ChangeEvent) {
	defer close(out)
	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			if errors.Is(err, broadcast.ErrClosed) {
				e.logger.Info("Hub closed, engine input ended")
			}
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// runLoop is the main event processing loop with debouncing.
// Debouncing prevents rendering every track while the user skips quickly.
func (e *Engine) runLoop(ctx context.Context, events <-chan domain.ChangeEvent) {
	defer close(e.done)

	timer := time.NewTimer(e.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	var pending *domain.ChangeEvent

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case ev, ok := <-events:
			if !ok {
				// The stream ended; render the last change instead of dropping it
				if pending != nil {
					e.process(ctx, *pending)
				}
				return
			}
			e.logger.Debug("Event received, debouncing...",
				zap.String("kind", string(ev.Kind)),
				zap.String("track", ev.Track.TrackName))

			pending = &ev
			timer.Reset(e.opts.Debounce)

		case <-timer.C:
			if pending != nil {
				e.process(ctx, *pending)
				pending = nil
			}
		}
	}
}

// process renders the card for a single change event
func (e *Engine) process(ctx context.Context, ev domain.ChangeEvent) {
	if !ev.Playing() {
		e.logger.Debug("Playback stopped, keeping last cover")
		return
	}

	id := ev.Track.Identity()
	e.mu.RLock()
	same := e.latest != nil && e.latestID == id
	e.mu.RUnlock()
	if same {
		return
	}

	url, ok := e.resolver.Resolve(ctx, ev.Track)
	if !ok {
		e.logger.Info("No artwork found, clearing cover",
			zap.String("track", ev.Track.TrackName),
			zap.String("artist", ev.Track.ArtistName))
		e.store(id, nil)
		return
	}

	imgData, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		e.logger.Error("Failed to fetch artwork", zap.String("url", url), zap.Error(err))
		return
	}

	card, err := e.processor.Process(ctx, imgData)
	if err != nil {
		e.logger.Error("Failed to render cover card", zap.Error(err))
		return
	}

	e.store(id, card)
	e.logger.Info("Cover updated",
		zap.String("track", ev.Track.TrackName),
		zap.String("artist", ev.Track.ArtistName),
		zap.Int("bytes", len(card)))

	if e.opts.Dir != "" {
		if err := e.export(card); err != nil {
			e.logger.Error("Failed to export cover", zap.Error(err))
		}
	}
}

func (e *Engine) store(id domain.TrackIdentity, card []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest = card
	e.latestID = id
}

// export writes the card through a temporary file so readers never see a partial image
func (e *Engine) export(card []byte) error {
	if err := os.MkdirAll(e.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(e.opts.Dir, ".cover-*.jpg")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(card); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cover: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}

	return os.Rename(tmp.Name(), filepath.Join(e.opts.Dir, coverFilename))
}
