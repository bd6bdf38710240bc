package camera

import (
	"context"
	"sync"

	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type openCVBackend struct{}

func (b *openCVBackend) Connect(cancel context.Context, addr string, dims frame.Dimensions, fps int) (Grabber, error) {
	if err := checkReachable(cancel, addr); err != nil {
		return nil, err
	}
	conn := openCVGrabber{}
	if err := conn.connect(cancel, addr); err != nil {
		return nil, err
	}
	conn.configure(dims, fps)
	return &conn, nil
}

type openCVGrabber struct {
	mu     sync.Mutex
	isOpen bool
	vc     *gocv.VideoCapture
}

func (g *openCVGrabber) connect(cancel context.Context, addr string) error {
	connAndError := make(chan openVideoStreamResult, 1)
	go openVideoStream(addr, connAndError)
	select {
	case r := <-connAndError:
		if r.err != nil {
			return r.err
		}
		g.vc = r.vc
		g.isOpen = true
		return nil
	case <-cancel.Done():
		return xerror.New("connection cancelled")
	}
}

func (g *openCVGrabber) configure(dims frame.Dimensions, fps int) {
	if dims.W > 0 && dims.H > 0 {
		g.vc.Set(gocv.VideoCaptureFrameWidth, float64(dims.W))
		g.vc.Set(gocv.VideoCaptureFrameHeight, float64(dims.H))
	}
	if fps > 0 {
		g.vc.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

type openVideoStreamResult struct {
	vc  *gocv.VideoCapture
	err error
}

func openVideoStream(addr string, d chan openVideoStreamResult) {
	vc, err := openVideoCapture(addr)
	d <- openVideoStreamResult{vc: vc, err: err}
}

var openVideoCapture = func(addr string) (*gocv.VideoCapture, error) {
	return gocv.OpenVideoCapture(addr)
}

var readFromVideoCapture = func(vc *gocv.VideoCapture, mat *gocv.Mat) bool {
	if vc.IsOpened() {
		return vc.Read(mat)
	}
	return false
}

func (g *openCVGrabber) Grab(mat *gocv.Mat) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isOpen {
		return xerror.New("video capture is closed")
	}
	if ok := readFromVideoCapture(g.vc, mat); !ok || mat.Empty() {
		return xerror.New("unable to read from video capture")
	}
	return nil
}

func (g *openCVGrabber) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isOpen {
		return g.vc.IsOpened()
	}
	return false
}

func (g *openCVGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.isOpen = false
	return g.vc.Close()
}
