//go:build !linux && !darwin
// +build !linux,!darwin

package monitor

import (
	"context"

	"github.com/genricoloni/nowplayingd/internal/config"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

// UnsupportedProvider is a placeholder for platforms without a player integration
type UnsupportedProvider struct{}

// NewProvider returns a provider that always fails, so the daemon reports
// "not playing" instead of refusing to start
func NewProvider(logger *zap.Logger, cfg *config.AppConfig) domain.Provider {
	logger.Warn("Media player monitoring is not implemented for this platform")
	return UnsupportedProvider{}
}

// Poll always returns ErrUnsupportedPlatform
func (UnsupportedProvider) Poll(ctx context.Context) (domain.ProviderResult, error) {
	return domain.ProviderResult{}, ErrUnsupportedPlatform
}
