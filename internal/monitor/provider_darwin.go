//go:build darwin
// +build darwin

package monitor

import (
	"github.com/genricoloni/nowplayingd/internal/config"
	"github.com/genricoloni/nowplayingd/internal/domain"
	"go.uber.org/zap"
)

// NewProvider returns the Apple Music provider on macOS
func NewProvider(logger *zap.Logger, cfg *config.AppConfig) domain.Provider {
	logger.Info("Using Apple Music snapshot provider")
	return NewAppleScriptProvider(logger, ExecRunner{})
}
