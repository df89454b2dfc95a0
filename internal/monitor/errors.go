package monitor

import "errors"

// ErrUnsupportedPlatform is returned by providers on platforms without a player integration
var ErrUnsupportedPlatform = errors.New("media player monitoring is not supported on this platform")
