// Package initgate guards one-time process initialization, such as loading
// native imaging and recognition libraries, behind an explicit lifecycle.
package initgate

import (
	"context"
	"sync"

	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/xerror"
)

type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const InitFailure = xerror.Kind("init_failure")

var (
	ErrInitFailed = xerror.NewWithKind(InitFailure, "initialization failed")
	ErrNotReady   = xerror.New("initialization has not completed")
)

// Step is a named unit of initialization work.
type Step struct {
	Name string
	Run  func() error
}

type Gate struct {
	name  string
	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func New(name string) *Gate {
	return &Gate{name: name, done: make(chan struct{})}
}

// Imaging is the process wide gate for imaging and recognition libraries.
var Imaging = New("imaging")

func (g *Gate) Name() string { return g.name }

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Err returns the failure cause once the gate has failed.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Open runs the steps in order exactly once. Concurrent and later callers
// wait for, and receive, the outcome of that single run. A failed gate stays
// failed; it is never retried.
func (g *Gate) Open(steps ...Step) error {
	g.mu.Lock()
	switch g.state {
	case Ready, Failed:
		err := g.err
		g.mu.Unlock()
		return err
	case Initializing:
		g.mu.Unlock()
		<-g.done
		return g.Err()
	}
	g.state = Initializing
	g.mu.Unlock()

	log.Info("Initializing %s...", g.name)
	err := run(steps)

	g.mu.Lock()
	if err != nil {
		g.state = Failed
		g.err = err
		log.Error("Initializing %s failed: %v", g.name, err)
	} else {
		g.state = Ready
		log.Info("Initialized %s", g.name)
	}
	g.mu.Unlock()
	close(g.done)
	return err
}

func run(steps []Step) (err error) {
	for _, s := range steps {
		if err = runStep(s); err != nil {
			return err
		}
	}
	return nil
}

func runStep(s Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = xerror.Errorf("%w: step %s panicked: %v", ErrInitFailed, s.Name, p)
		}
	}()
	log.Debug("Running init step: %s", s.Name)
	if serr := s.Run(); serr != nil {
		return xerror.Errorf("%w: step %s: %s", ErrInitFailed, s.Name, serr)
	}
	return nil
}

// Wait blocks until the gate is ready or failed, or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check reports nil only when the gate is ready.
func (g *Gate) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case Ready:
		return nil
	case Failed:
		return g.err
	default:
		return xerror.Errorf("%w: %s is %s", ErrNotReady, g.name, g.state)
	}
}
