package journal

import (
	"context"
	"sync/atomic"

	"github.com/tauraamui/dragonlens/pkg/journal/dbconn"
	"github.com/tauraamui/dragonlens/pkg/journal/models"
	"github.com/tauraamui/dragonlens/pkg/journal/repos"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/dragonlens/pkg/pipeline"
	"github.com/tauraamui/dragonlens/pkg/process"
)

const DefaultBuffer = 64

// Recorder persists pipeline outcomes off the frame path. Outcomes arriving
// while its buffer is full are dropped.
type Recorder struct {
	repo     repos.RecognitionRepository
	outcomes chan pipeline.Outcome
	proc     process.Process

	written, dropped, failed uint64
}

func NewRecorder(db dbconn.GormWrapper, buffer int) *Recorder {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	r := &Recorder{
		repo:     repos.RecognitionRepository{DB: db},
		outcomes: make(chan pipeline.Outcome, buffer),
	}
	r.proc = process.New(process.Settings{
		WaitForShutdownMsg: "Flushing recognition journal...",
		Process:            r.run,
	})
	r.proc.Setup()
	return r
}

func (r *Recorder) Observe(o pipeline.Outcome) {
	select {
	case r.outcomes <- o:
	default:
		atomic.AddUint64(&r.dropped, 1)
		log.Debug("Journal buffer full, dropping outcome of frame [%d]", o.Seq)
	}
}

func (r *Recorder) Start() { r.proc.Start() }
func (r *Recorder) Stop()  { r.proc.Stop() }
func (r *Recorder) Wait()  { r.proc.Wait() }

func (r *Recorder) Written() uint64 { return atomic.LoadUint64(&r.written) }
func (r *Recorder) Dropped() uint64 { return atomic.LoadUint64(&r.dropped) }
func (r *Recorder) Failed() uint64  { return atomic.LoadUint64(&r.failed) }

func (r *Recorder) run(ctx context.Context) []chan interface{} {
	stopping := make(chan interface{})
	go func() {
		defer close(stopping)
		for {
			select {
			case <-ctx.Done():
				r.drain()
				return
			case o := <-r.outcomes:
				r.write(o)
			}
		}
	}()
	return []chan interface{}{stopping}
}

func (r *Recorder) drain() {
	for {
		select {
		case o := <-r.outcomes:
			r.write(o)
		default:
			return
		}
	}
}

func (r *Recorder) write(o pipeline.Outcome) {
	if err := r.repo.Create(toModel(o)); err != nil {
		atomic.AddUint64(&r.failed, 1)
		log.Error("Unable to journal recognition of frame [%d]: %v", o.Seq, err)
		return
	}
	atomic.AddUint64(&r.written, 1)
}

func toModel(o pipeline.Outcome) *models.Recognition {
	rec := &models.Recognition{
		FrameID:    o.FrameID,
		Seq:        o.Seq,
		Code:       o.Result.Code(),
		Angle:      o.Result.Angle(),
		Width:      o.Dimensions.W,
		Height:     o.Dimensions.H,
		CapturedAt: o.Timestamp,
	}
	if o.Err != nil {
		rec.Failed = true
		rec.Error = o.Err.Error()
	}
	return rec
}
