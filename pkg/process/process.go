package process

import (
	"context"
	"sync"

	"github.com/tauraamui/dragonlens/pkg/log"
)

type Process interface {
	Setup() Process
	Start()
	Stop()
	Wait()
}

// Settings describes a long running routine. Process is started with a
// context cancelled on Stop and returns the channels it closes once it
// has fully wound down.
type Settings struct {
	WaitForShutdownMsg string
	Process            func(context.Context) []chan interface{}
}

func New(settings Settings) Process {
	return &process{
		waitForShutdownMsg: settings.WaitForShutdownMsg,
		process:            settings.Process,
	}
}

type process struct {
	mu                 sync.Mutex
	process            func(context.Context) []chan interface{}
	waitForShutdownMsg string
	started            bool
	canceller          context.CancelFunc
	signals            []chan interface{}
}

func (p *process) logShutdown() {
	if len(p.waitForShutdownMsg) > 0 {
		log.Info(p.waitForShutdownMsg)
	}
}

func (p *process) Setup() Process { return p }

func (p *process) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	ctx, canceller := context.WithCancel(context.Background())
	p.canceller = canceller
	p.signals = append(p.signals, p.process(ctx)...)
}

func (p *process) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.canceller != nil {
		p.logShutdown()
		p.canceller()
		p.canceller = nil
	}
}

func (p *process) Wait() {
	p.mu.Lock()
	signals := p.signals
	p.mu.Unlock()
	for _, sig := range signals {
		<-sig
	}
}
