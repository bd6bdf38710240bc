// Package camera captures frames from a video device and hands them out one
// at a time.
package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type Settings struct {
	Width    int
	Height   int
	FPS      int
	Rotation frame.Rotation
}

type Stats struct {
	Grabbed   uint64
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

var retryGrabDelay = 100 * time.Millisecond

// Source captures continuously in the background and keeps at most one
// frame in flight. Captures made while a frame is pending or in flight are
// dropped.
type Source struct {
	uuid    string
	title   string
	grabber Grabber

	mu       sync.Mutex
	rotation frame.Rotation
	busy     bool
	inFlight string
	closed   bool

	frames  chan *frame.Raw
	closing chan struct{}
	cancel  context.CancelFunc
	stopped chan struct{}
	seq     uint64

	grabbed, delivered, dropped, failed uint64
}

func connect(ctx context.Context, title, addr string, settings Settings, backend Backend) (*Source, error) {
	g, err := backend.Connect(ctx, addr, frame.Dimensions{W: settings.Width, H: settings.Height}, settings.FPS)
	if err != nil {
		return nil, fmt.Errorf("Unable to connect to camera [%s]: %w", title, err)
	}

	captureCtx, cancel := context.WithCancel(ctx)
	s := &Source{
		uuid:     uuid.NewString(),
		title:    title,
		grabber:  g,
		rotation: settings.Rotation,
		frames:   make(chan *frame.Raw, 1),
		closing:  make(chan struct{}),
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}
	go s.capture(captureCtx)
	return s, nil
}

func Connect(title, addr string, settings Settings, backend Backend) (*Source, error) {
	return connect(context.Background(), title, addr, settings, backend)
}

func ConnectWithCancel(cancel context.Context, title, addr string, settings Settings, backend Backend) (*Source, error) {
	return connect(cancel, title, addr, settings, backend)
}

func (s *Source) UUID() string  { return s.uuid }
func (s *Source) Title() string { return s.title }

// SetRotation changes the rotation stamped onto subsequent captures.
func (s *Source) SetRotation(rot frame.Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation = rot
}

func (s *Source) capture(ctx context.Context) {
	defer close(s.stopped)

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.grabber.Grab(&mat); err != nil {
			atomic.AddUint64(&s.failed, 1)
			log.Error("Unable to grab frame from camera [%s]: %v", s.title, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryGrabDelay):
			}
			continue
		}
		atomic.AddUint64(&s.grabbed, 1)

		rot, ok := s.claim()
		if !ok {
			atomic.AddUint64(&s.dropped, 1)
			log.Debug("Frame in flight, dropping capture from camera [%s]", s.title)
			continue
		}

		f, err := toFrame(mat, atomic.AddUint64(&s.seq, 1), rot)
		if err != nil {
			s.unclaim()
			atomic.AddUint64(&s.failed, 1)
			log.Error("Unable to convert capture from camera [%s]: %v", s.title, err)
			continue
		}

		select {
		case s.frames <- f:
		default:
			s.unclaim()
			atomic.AddUint64(&s.dropped, 1)
		}
	}
}

// claim marks the source busy, failing if a frame is already pending or in
// flight.
func (s *Source) claim() (frame.Rotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.closed {
		return s.rotation, false
	}
	s.busy = true
	return s.rotation, true
}

func (s *Source) unclaim() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

func (s *Source) Next(ctx context.Context) (*frame.Raw, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closing:
		return nil, frame.ErrSourceClosed
	case f := <-s.frames:
		s.mu.Lock()
		s.inFlight = f.ID
		s.mu.Unlock()
		atomic.AddUint64(&s.delivered, 1)
		return f, nil
	}
}

func (s *Source) Release(f *frame.Raw) {
	if f == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight != f.ID {
		log.Warn("Ignoring release of frame [%d] from camera [%s], it is not in flight", f.Seq, s.title)
		return
	}
	s.inFlight = ""
	s.busy = false
	f.Y, f.U, f.V = nil, nil, nil
}

func (s *Source) Stats() Stats {
	return Stats{
		Grabbed:   atomic.LoadUint64(&s.grabbed),
		Delivered: atomic.LoadUint64(&s.delivered),
		Dropped:   atomic.LoadUint64(&s.dropped),
		Failed:    atomic.LoadUint64(&s.failed),
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()

	log.Info("Closing camera [%s] video stream...", s.title)
	s.cancel()
	<-s.stopped

	select {
	case <-s.frames:
	default:
	}

	if err := s.grabber.Close(); err != nil {
		return xerror.Errorf("unable to close camera [%s]: %w", s.title, err)
	}
	return nil
}
