package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
)

func grayFrame(seq uint64, w, h int) *frame.Raw {
	return frame.New(
		seq,
		bytes.Repeat([]byte{128}, w*h),
		bytes.Repeat([]byte{128}, w*h/4),
		bytes.Repeat([]byte{128}, w*h/4),
		w, h, frame.Rotation0,
	)
}

type testSource struct {
	mu       sync.Mutex
	frames   []*frame.Raw
	generate func() *frame.Raw
	released map[string]int
	order    []uint64
	events   *eventLog
}

func newTestSource(frames ...*frame.Raw) *testSource {
	return &testSource{frames: frames, released: map[string]int{}}
}

func (s *testSource) Next(ctx context.Context) (*frame.Raw, error) {
	s.mu.Lock()
	if len(s.frames) > 0 {
		f := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return f, nil
	}
	gen := s.generate
	s.mu.Unlock()

	if gen != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return gen(), nil
		}
	}

	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *testSource) Release(f *frame.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released[f.ID]++
	s.order = append(s.order, f.Seq)
	s.events.add("release", f.Seq)
}

func (s *testSource) Close() error { return nil }

func (s *testSource) releaseCount(f *frame.Raw) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released[f.ID]
}

func (s *testSource) releaseOrder() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64{}, s.order...)
}

type testRenderer struct {
	mu      sync.Mutex
	buffers []*pixelbuf.Buffer
	onShow  func(*pixelbuf.Buffer)
}

func (r *testRenderer) Display(buf *pixelbuf.Buffer) {
	if r.onShow != nil {
		r.onShow(buf)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers = append(r.buffers, buf)
}

func (r *testRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

func (r *testRenderer) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buffers {
		b.Close()
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(name string, seq uint64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf("%s:%d", name, seq))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.events...)
}

type loggingFactory struct {
	events *eventLog
}

func (f loggingFactory) FromFrame(raw *frame.Raw) (*pixelbuf.Buffer, error) {
	f.events.add("build", raw.Seq)
	return pixelbuf.NV21().FromFrame(raw)
}

type flakyFactory struct {
	fail func() bool
}

func (f flakyFactory) FromFrame(raw *frame.Raw) (*pixelbuf.Buffer, error) {
	if f.fail() {
		return nil, pixelbuf.ErrResourceExhaustion
	}
	return pixelbuf.NV21().FromFrame(raw)
}

type exhaustedFactory struct{}

func (exhaustedFactory) FromFrame(*frame.Raw) (*pixelbuf.Buffer, error) {
	return nil, pixelbuf.ErrResourceExhaustion
}

type panickingNormalizer struct{}

func (panickingNormalizer) Normalize(*pixelbuf.Buffer, frame.Rotation) *pixelbuf.Buffer {
	panic("normalizer exploded")
}
