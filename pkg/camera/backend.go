package camera

import (
	"context"

	"github.com/tauraamui/dragonlens/pkg/configdef"
	"github.com/tauraamui/dragonlens/pkg/frame"
	"gocv.io/x/gocv"
)

// Grabber reads BGR images from a capture device.
type Grabber interface {
	Grab(mat *gocv.Mat) error
	IsOpen() bool
	Close() error
}

type Backend interface {
	Connect(ctx context.Context, addr string, dims frame.Dimensions, fps int) (Grabber, error)
}

func Default() Backend {
	return OpenCV()
}

func OpenCV() Backend {
	return &openCVBackend{}
}

func Mock() Backend {
	return &mockBackend{}
}

func Resolve(kind string) Backend {
	switch kind {
	case configdef.CameraBackendMock:
		return Mock()
	default:
		return Default()
	}
}
