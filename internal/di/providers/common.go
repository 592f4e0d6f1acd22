package providers

import (
	"context"
	"time"
)

// shutdownTimeout bounds each handle's graceful shutdown.
const shutdownTimeout = 30 * time.Second

// shutdownWithin runs a context-aware shutdown under shutdownTimeout.
func shutdownWithin(shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return shutdown(ctx)
}

// nopCloser stands in for a cache whose database is closed by another handle.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }
