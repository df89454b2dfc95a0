package presence

import (
	"context"

	"github.com/genricoloni/nowplayingd/internal/domain"
)

// NopClient is installed when no presence application id is configured
type NopClient struct{}

var _ domain.PresenceClient = NopClient{}

func (NopClient) SetActivity(ctx context.Context, payload domain.PresencePayload) error { return nil }
func (NopClient) StopActivity(ctx context.Context) error                                { return nil }
func (NopClient) Close() error                                                          { return nil }
