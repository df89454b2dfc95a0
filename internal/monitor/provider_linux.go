//go:build linux
// +build linux

package monitor

import (
	"github.com/genricoloni/nowplayingd/internal/config"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

// NewProvider returns the MPRIS provider on Linux
func NewProvider(logger *zap.Logger, cfg *config.AppConfig) domain.Provider {
	logger.Info("Using MPRIS snapshot provider", zap.String("preferredPlayer", cfg.Mpris.Player))
	return NewMprisProvider(logger, cfg.Mpris.Player)
}
