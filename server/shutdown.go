package server

import (
	"context"
	"errors"
	"log/slog"
)

// Shutdowner is satisfied by *http.Server.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Shutdown drains srv and then calls release. When the drain times out,
// requests may still hold model sessions, so release is skipped and the
// process exit reclaims them instead.
func Shutdown(ctx context.Context, srv Shutdowner, release func()) error {
	err := srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("Shutdown timed out with requests in flight, leaving model sessions open")
		return err
	}
	if release != nil {
		release()
	}
	return err
}
