package poller

import (
	"context"
	"sync"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"github.com/genricoloni/nowplayingd/internal/playback"
	"go.uber.org/zap"
)

// DefaultInterval is the cadence at which the player is queried
const DefaultInterval = time.Second

// failureLogInterval rate-limits "provider unavailable" warnings
const failureLogInterval = 30 * time.Second

// Applier consumes normalized ticks. *playback.Detector satisfies it.
type Applier interface {
	Apply(tick domain.ProviderTick) bool
}

// Poller queries the Provider once per interval and feeds the result to the detector.
// It never waits on subscribers: the detector only takes a short lock and
// publishing to the hub does not block.
type Poller struct {
	logger   *zap.Logger
	provider domain.Provider
	applier  Applier
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr time.Time
	failing bool
}

// New creates a poller. A non-positive interval uses DefaultInterval.
func New(logger *zap.Logger, provider domain.Provider, applier Applier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		logger:   logger,
		provider: provider,
		applier:  applier,
		interval: interval,
	}
}

// Start launches the polling loop in a goroutine.
// It returns immediately (non-blocking).
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil
	}

	// The loop must outlive the start context; it ends on Stop
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("Poller starting", zap.Duration("interval", p.interval))
	go p.runLoop(loopCtx, p.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight tick to finish
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		p.logger.Info("Poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick performs exactly one provider query and applies it
func (p *Poller) Tick(ctx context.Context) bool {
	queryCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	result, err := p.provider.Poll(queryCtx)
	if err != nil {
		p.logFailure(err)
	} else {
		p.logRecovery()
	}

	return p.applier.Apply(playback.Normalize(result, err))
}

// logFailure warns on the first failure and then at most once per failureLogInterval
func (p *Poller) logFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !p.failing || now.Sub(p.lastErr) >= failureLogInterval {
		p.logger.Warn("Provider query failed, treating as not playing", zap.Error(err))
		p.lastErr = now
	} else {
		p.logger.Debug("Provider query failed", zap.Error(err))
	}
	p.failing = true
}

func (p *Poller) logRecovery() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failing {
		p.logger.Info("Provider recovered")
		p.failing = false
	}
}
