package frame

import (
	"context"

	"github.com/tauraamui/xerror"
)

var ErrSourceClosed = xerror.New("frame source closed")

// Source hands out frames one at a time. A Source never delivers another
// frame while a previously delivered one is still unreleased.
type Source interface {
	// Next blocks until a frame is available, ctx is done, or the
	// source is closed (ErrSourceClosed).
	Next(ctx context.Context) (*Raw, error)
	// Release returns a frame to the source. It must be called exactly
	// once per frame returned from Next.
	Release(*Raw)
	Close() error
}
