// Package pipeline runs each camera frame through conversion, orientation,
// recognition and display, one frame at a time.
package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/dragonlens/pkg/orient"
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"github.com/tauraamui/dragonlens/pkg/recognition"
	"github.com/tauraamui/dragonlens/pkg/render"
	"github.com/tauraamui/xerror"
)

var ErrNilFrame = xerror.New("nil frame")

// Outcome is published once per frame that reached recognition.
type Outcome struct {
	FrameID    string
	Seq        uint64
	Timestamp  time.Time
	Dimensions frame.Dimensions
	Result     recognition.Result
	Err        error
}

type Observer interface {
	Observe(Outcome)
}

type ObserverFunc func(Outcome)

func (f ObserverFunc) Observe(o Outcome) { f(o) }

type Options struct {
	// DropOnRecognitionFailure discards frames whose recognition failed
	// instead of displaying them with an empty result.
	DropOnRecognitionFailure bool
	Observers                []Observer
	Factory                  pixelbuf.Factory
	Normalizer               orient.Normalizer
}

type Stats struct {
	Processed           uint64
	Rendered            uint64
	Malformed           uint64
	RecognitionFailures uint64
	Exhausted           uint64
	Panics              uint64
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"processed=%d rendered=%d malformed=%d recognition_failures=%d exhausted=%d panics=%d",
		s.Processed, s.Rendered, s.Malformed, s.RecognitionFailures, s.Exhausted, s.Panics,
	)
}

type Processor struct {
	source     frame.Source
	factory    pixelbuf.Factory
	normalizer orient.Normalizer
	bridge     *recognition.Bridge
	renderer   render.Renderer
	observers  []Observer
	drop       bool

	// previous is reserved for frame to frame comparison. No stage uses it.
	previous *pixelbuf.Buffer

	processed, rendered, malformed, recogFailures, exhausted, panics uint64
}

func NewProcessor(source frame.Source, bridge *recognition.Bridge, renderer render.Renderer, opts Options) *Processor {
	p := &Processor{
		source:     source,
		factory:    opts.Factory,
		normalizer: opts.Normalizer,
		bridge:     bridge,
		renderer:   renderer,
		observers:  opts.Observers,
		drop:       opts.DropOnRecognitionFailure,
	}
	if p.factory == nil {
		p.factory = pixelbuf.NV21()
	}
	if p.normalizer == nil {
		p.normalizer = orient.Display()
	}
	if p.bridge == nil {
		p.bridge = recognition.NewBridge(nil)
	}
	return p
}

// Process takes ownership of f and hands it back to the source exactly once
// before returning. Every per-frame failure is reported through the returned
// error; nothing here stops the caller.
func (p *Processor) Process(f *frame.Raw) (err error) {
	if f == nil {
		return ErrNilFrame
	}
	defer p.source.Release(f)

	var buf *pixelbuf.Buffer
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&p.panics, 1)
			if buf != nil {
				buf.Close()
			}
			err = xerror.Errorf("frame %d panicked: %v", f.Seq, r)
			log.Error("Recovered from panic while processing frame [%d]: %v", f.Seq, r)
		}
	}()

	atomic.AddUint64(&p.processed, 1)

	buf, err = p.factory.FromFrame(f)
	if err != nil {
		p.countBuildFailure(f, err)
		return err
	}

	buf = p.normalizer.Normalize(buf, f.Rotation)

	result, err := p.bridge.Recognize(buf)
	p.notify(Outcome{
		FrameID:    f.ID,
		Seq:        f.Seq,
		Timestamp:  f.Timestamp,
		Dimensions: buf.Dimensions(),
		Result:     result,
		Err:        err,
	})

	if err != nil {
		atomic.AddUint64(&p.recogFailures, 1)
		log.Warn("Recognition failed for frame [%d]: %v", f.Seq, err)
		if p.drop {
			buf.Close()
			buf = nil
			return err
		}
	} else {
		log.Debug("Code=%d, Angle=%d", result.Code(), result.Angle())
	}

	// buf stays owned here until Display returns
	p.renderer.Display(buf)
	buf = nil
	atomic.AddUint64(&p.rendered, 1)

	return err
}

func (p *Processor) countBuildFailure(f *frame.Raw, err error) {
	switch {
	case errors.Is(err, pixelbuf.ErrMalformedFrame):
		atomic.AddUint64(&p.malformed, 1)
		log.Warn("Skipping frame [%d]: %v", f.Seq, err)
	case errors.Is(err, pixelbuf.ErrResourceExhaustion):
		atomic.AddUint64(&p.exhausted, 1)
		log.Error("Unable to build pixel buffer for frame [%d]: %v", f.Seq, err)
	default:
		log.Error("Unable to build pixel buffer for frame [%d]: %v", f.Seq, err)
	}
}

func (p *Processor) notify(o Outcome) {
	for _, obs := range p.observers {
		obs.Observe(o)
	}
}

func (p *Processor) Stats() Stats {
	return Stats{
		Processed:           atomic.LoadUint64(&p.processed),
		Rendered:            atomic.LoadUint64(&p.rendered),
		Malformed:           atomic.LoadUint64(&p.malformed),
		RecognitionFailures: atomic.LoadUint64(&p.recogFailures),
		Exhausted:           atomic.LoadUint64(&p.exhausted),
		Panics:              atomic.LoadUint64(&p.panics),
	}
}
