package camera_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/dragonlens/pkg/camera"
	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/log"
	"gocv.io/x/gocv"
)

type testBackend struct {
	onConnectError error
	grabber        *testGrabber
}

func (tb testBackend) Connect(context.Context, string, frame.Dimensions, int) (camera.Grabber, error) {
	if tb.onConnectError != nil {
		return nil, tb.onConnectError
	}
	return tb.grabber, nil
}

type testGrabber struct {
	mu     sync.Mutex
	w, h   int
	delay  time.Duration
	closed bool
}

func (tg *testGrabber) Grab(mat *gocv.Mat) error {
	time.Sleep(tg.delay)
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.closed {
		return errors.New("closed")
	}
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), tg.h, tg.w, gocv.MatTypeCV8UC3)
	defer src.Close()
	src.CopyTo(mat)
	return nil
}

func (tg *testGrabber) IsOpen() bool { return true }

func (tg *testGrabber) Close() error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.closed = true
	return nil
}

func connectTestSource(t *testing.T, w, h int) *camera.Source {
	src, err := camera.Connect("FakeCamera", "fakeaddr", camera.Settings{Rotation: frame.Rotation90}, testBackend{
		grabber: &testGrabber{w: w, h: h, delay: time.Millisecond},
	})
	require.NoError(t, err)
	require.NotNil(t, src)
	return src
}

func nextWithin(t *testing.T, src *camera.Source, d time.Duration) (*frame.Raw, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return src.Next(ctx)
}

func TestConnectReturnsSourceAndNoError(t *testing.T) {
	defer log.Silence()()
	src := connectTestSource(t, 8, 6)
	defer src.Close()

	assert.NotEmpty(t, src.UUID())
	assert.Equal(t, "FakeCamera", src.Title())
}

func TestConnectReturnsNoSourceAndError(t *testing.T) {
	src, err := camera.Connect("FakeCamera", "fakeaddr", camera.Settings{}, testBackend{
		onConnectError: errors.New("test error"),
	})
	assert.EqualError(t, err, "Unable to connect to camera [FakeCamera]: test error")
	assert.Nil(t, src)
}

func TestSourceDeliversEvenSizedFramesWithRotation(t *testing.T) {
	defer log.Silence()()
	src := connectTestSource(t, 9, 7)
	defer src.Close()

	f, err := nextWithin(t, src, 3*time.Second)
	require.NoError(t, err)
	defer src.Release(f)

	assert.Equal(t, frame.Dimensions{W: 8, H: 6}, f.Dimensions())
	assert.Equal(t, frame.Rotation90, f.Rotation)
	assert.Len(t, f.Y, 48)
	assert.Len(t, f.U, 12)
	assert.Len(t, f.V, 12)
	assert.NotEmpty(t, f.ID)
}

func TestSourceKeepsSingleFrameInFlightAndDropsTheRest(t *testing.T) {
	defer log.Silence()()
	src := connectTestSource(t, 4, 4)
	defer src.Close()

	first, err := nextWithin(t, src, 3*time.Second)
	require.NoError(t, err)

	_, err = nextWithin(t, src, 50*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Greater(t, src.Stats().Dropped, uint64(0))

	src.Release(first)

	second, err := nextWithin(t, src, 3*time.Second)
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)
	src.Release(second)

	assert.Equal(t, uint64(2), src.Stats().Delivered)
}

func TestSourceSetRotationAppliesToLaterFrames(t *testing.T) {
	defer log.Silence()()
	src := connectTestSource(t, 4, 4)
	defer src.Close()

	f, err := nextWithin(t, src, 3*time.Second)
	require.NoError(t, err)
	src.SetRotation(frame.Rotation270)
	src.Release(f)

	// the capture loop may already hold a frame stamped before the change
	for i := 0; i < 3; i++ {
		f, err = nextWithin(t, src, 3*time.Second)
		require.NoError(t, err)
		rot := f.Rotation
		src.Release(f)
		if rot == frame.Rotation270 {
			return
		}
	}
	t.Fatal("rotation change never applied")
}

func TestSourceLogsAndIgnoresDoubleRelease(t *testing.T) {
	defer log.Silence()()
	var warnings []string
	warnRef := log.Warn
	log.Warn = func(format string, a ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, a...))
	}
	defer func() { log.Warn = warnRef }()

	src := connectTestSource(t, 4, 4)
	defer src.Close()

	f, err := nextWithin(t, src, 3*time.Second)
	require.NoError(t, err)
	seq := f.Seq

	src.Release(f)
	src.Release(f)

	require.Len(t, warnings, 1)
	assert.Equal(t, fmt.Sprintf("Ignoring release of frame [%d] from camera [FakeCamera], it is not in flight", seq), warnings[0])
}

func TestSourceNextAfterCloseReturnsErrSourceClosed(t *testing.T) {
	defer log.Silence()()
	src := connectTestSource(t, 4, 4)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err := src.Next(context.Background())
	assert.True(t, errors.Is(err, frame.ErrSourceClosed))
}

func TestConnectWithCancelStopsCaptureWhenContextIsCancelled(t *testing.T) {
	defer log.Silence()()
	ctx, cancel := context.WithCancel(context.Background())
	src, err := camera.ConnectWithCancel(ctx, "FakeCamera", "fakeaddr", camera.Settings{}, testBackend{
		grabber: &testGrabber{w: 4, h: 4, delay: time.Millisecond},
	})
	require.NoError(t, err)
	defer src.Close()

	require.Eventually(t, func() bool { return src.Stats().Grabbed > 0 }, 3*time.Second, time.Millisecond)
	cancel()

	time.Sleep(50 * time.Millisecond)
	grabbed := src.Stats().Grabbed
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, grabbed, src.Stats().Grabbed)
}
