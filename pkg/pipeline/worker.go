package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/initgate"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"github.com/tauraamui/dragonlens/pkg/process"
	"github.com/tauraamui/xerror"
)

const DefaultMaxConsecutiveExhaustion = 30

var ErrExhausted = xerror.New("worker stopped after repeated resource exhaustion")

var retryReadDelay = 10 * time.Millisecond

// Worker is the single execution context frames are processed on. Frames
// are taken from the source and processed strictly in order.
type Worker struct {
	gate          *initgate.Gate
	source        frame.Source
	processor     *Processor
	maxExhaustion int
	proc          process.Process

	mu       sync.Mutex
	err      error
	failed   chan struct{}
	failOnce sync.Once
}

func NewWorker(gate *initgate.Gate, source frame.Source, processor *Processor, maxConsecutiveExhaustion int) *Worker {
	if maxConsecutiveExhaustion < 1 {
		maxConsecutiveExhaustion = DefaultMaxConsecutiveExhaustion
	}
	w := &Worker{
		gate:          gate,
		source:        source,
		processor:     processor,
		maxExhaustion: maxConsecutiveExhaustion,
		failed:        make(chan struct{}),
	}
	w.proc = process.New(process.Settings{
		WaitForShutdownMsg: "Stopping frame pipeline...",
		Process:            w.run,
	})
	w.proc.Setup()
	return w
}

// Start refuses to run until the gate is ready.
func (w *Worker) Start() error {
	if w.gate != nil {
		if err := w.gate.Check(); err != nil {
			return xerror.Errorf("unable to start frame pipeline: %w", err)
		}
	}
	log.Info("Starting frame pipeline...")
	w.proc.Start()
	return nil
}

// Stop cancels the loop. A frame already taken from the source still runs
// through every stage.
func (w *Worker) Stop() {
	w.proc.Stop()
}

func (w *Worker) Wait() {
	w.proc.Wait()
}

// Failed is closed when the worker stops on its own because of an error.
func (w *Worker) Failed() <-chan struct{} {
	return w.failed
}

func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Worker) fail(err error) {
	w.failOnce.Do(func() {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
		close(w.failed)
	})
}

func (w *Worker) run(ctx context.Context) []chan interface{} {
	stopping := make(chan interface{})
	go func() {
		defer close(stopping)
		w.loop(ctx)
	}()
	return []chan interface{}{stopping}
}

func (w *Worker) loop(ctx context.Context) {
	consecutive := 0
	for {
		f, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, frame.ErrSourceClosed) {
				log.Info("Frame source closed, stopping frame pipeline")
				return
			}
			log.Error("Unable to retrieve frame: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryReadDelay):
			}
			continue
		}

		err = w.processor.Process(f)
		if !errors.Is(err, pixelbuf.ErrResourceExhaustion) {
			consecutive = 0
			continue
		}

		consecutive++
		if consecutive > w.maxExhaustion {
			log.Error("Frame pipeline exhausted %d times in a row, giving up", consecutive)
			w.fail(xerror.Errorf("%w: %s", ErrExhausted, err))
			return
		}
	}
}
