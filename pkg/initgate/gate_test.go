package initgate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/tauraamui/dragonlens/pkg/initgate"
	"github.com/tauraamui/dragonlens/pkg/log"
)

func TestMain(m *testing.M) {
	defer log.Silence()()
	m.Run()
}

func TestGateStartsUninitialized(t *testing.T) {
	is := is.New(t)
	g := initgate.New("test")
	is.Equal(g.State(), initgate.Uninitialized)
	is.True(errors.Is(g.Check(), initgate.ErrNotReady))
}

func TestGateOpensReady(t *testing.T) {
	is := is.New(t)
	g := initgate.New("test")

	order := []string{}
	err := g.Open(
		initgate.Step{Name: "first", Run: func() error { order = append(order, "first"); return nil }},
		initgate.Step{Name: "second", Run: func() error { order = append(order, "second"); return nil }},
	)
	is.NoErr(err)
	is.Equal(g.State(), initgate.Ready)
	is.NoErr(g.Check())
	is.Equal(order, []string{"first", "second"})
	is.Equal(g.State().String(), "ready")
}

func TestGateFailureIsSurfacedAndNotRetried(t *testing.T) {
	is := is.New(t)
	g := initgate.New("test")

	runs := 0
	failing := initgate.Step{Name: "loader", Run: func() error {
		runs++
		return errors.New("library missing")
	}}
	skipped := initgate.Step{Name: "after", Run: func() error {
		t.Fatal("step after a failure must not run")
		return nil
	}}

	err := g.Open(failing, skipped)
	is.True(errors.Is(err, initgate.ErrInitFailed))
	is.Equal(g.State(), initgate.Failed)

	again := g.Open(failing)
	is.Equal(again, err)
	is.Equal(runs, 1)
	is.Equal(g.Check(), err)
}

func TestGateRecoversPanickingStep(t *testing.T) {
	is := is.New(t)
	g := initgate.New("test")

	err := g.Open(initgate.Step{Name: "boom", Run: func() error { panic("no opencv") }})
	is.True(errors.Is(err, initgate.ErrInitFailed))
	is.Equal(g.State(), initgate.Failed)
}

func TestGateRunsStepsOnceForConcurrentOpeners(t *testing.T) {
	is := is.New(t)
	g := initgate.New("test")

	var runs int32
	release := make(chan struct{})
	step := initgate.Step{Name: "slow", Run: func() error {
		atomic.AddInt32(&runs, 1)
		<-release
		return nil
	}}

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			is.NoErr(g.Open(step))
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	is.Equal(atomic.LoadInt32(&runs), int32(1))
	is.Equal(g.State(), initgate.Ready)
}

func TestGateWaitHonoursContext(t *testing.T) {
	is := is.New(t)
	g := initgate.New("test")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	is.Equal(g.Wait(ctx), context.DeadlineExceeded)

	is.NoErr(g.Open())
	is.NoErr(g.Wait(context.Background()))
}
