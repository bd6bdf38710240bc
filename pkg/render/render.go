// Package render moves finished pixel buffers onto the UI owned execution
// context for display.
package render

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tauraamui/dragonlens/pkg/configdef"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"github.com/tauraamui/xerror"
)

// Renderer accepts ownership of a buffer for display. Display never blocks
// on the display itself.
type Renderer interface {
	Display(*pixelbuf.Buffer)
}

// Sink presents buffers. All Sink methods are called from the goroutine
// running Loop.Run.
type Sink interface {
	Show(*pixelbuf.Buffer) error
	// Poll services UI events between frames.
	Poll()
	Close() error
}

type Stats struct {
	Shown    uint64
	Replaced uint64
	Failed   uint64
}

// Loop hands buffers from the pipeline worker to a Sink. It holds at most one
// pending buffer; a newer buffer replaces, and closes, an undisplayed one,
// so the display only ever moves forward.
type Loop struct {
	sink         Sink
	pollInterval time.Duration
	wake         chan struct{}

	mu      sync.Mutex
	pending *pixelbuf.Buffer
	stopped bool

	shown, replaced, failed uint64
}

func NewLoop(sink Sink) *Loop {
	return &Loop{
		sink:         sink,
		pollInterval: 10 * time.Millisecond,
		wake:         make(chan struct{}, 1),
	}
}

func (l *Loop) Display(buf *pixelbuf.Buffer) {
	if buf == nil {
		return
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		buf.Close()
		return
	}
	if l.pending != nil {
		l.pending.Close()
		atomic.AddUint64(&l.replaced, 1)
	}
	l.pending = buf
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run owns the calling OS thread until ctx is done. Call it from the
// goroutine that owns the UI, normally main.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.stop()
			return l.sink.Close()
		case <-l.wake:
			l.showPending()
		case <-ticker.C:
			l.sink.Poll()
		}
	}
}

func (l *Loop) showPending() {
	l.mu.Lock()
	buf := l.pending
	l.pending = nil
	l.mu.Unlock()

	if buf == nil {
		return
	}
	defer buf.Close()

	if err := l.sink.Show(buf); err != nil {
		atomic.AddUint64(&l.failed, 1)
		log.Error("Unable to display frame: %v", err)
		return
	}
	atomic.AddUint64(&l.shown, 1)
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.pending != nil {
		l.pending.Close()
		l.pending = nil
	}
}

func (l *Loop) Stats() Stats {
	return Stats{
		Shown:    atomic.LoadUint64(&l.shown),
		Replaced: atomic.LoadUint64(&l.replaced),
		Failed:   atomic.LoadUint64(&l.failed),
	}
}

func Resolve(cfg configdef.Renderer) (Sink, error) {
	switch cfg.Kind {
	case configdef.RendererWindow, "":
		return Window(cfg.Title), nil
	case configdef.RendererMJPEG:
		m := NewMJPEG(cfg.Address, cfg.JPEGQuality)
		if err := m.Start(); err != nil {
			return nil, err
		}
		return m, nil
	case configdef.RendererNone:
		return Discard(), nil
	default:
		return nil, xerror.Errorf("unknown renderer kind: %s", cfg.Kind)
	}
}
