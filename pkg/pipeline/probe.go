package pipeline

import (
	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/initgate"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

// ImagingProbe proves the imaging library is usable by converting a tiny
// frame end to end.
func ImagingProbe() initgate.Step {
	return initgate.Step{
		Name: "imaging",
		Run: func() error {
			log.Info("Using OpenCV %s", gocv.OpenCVVersion())
			f := frame.New(0, []byte{128, 128, 128, 128}, []byte{128}, []byte{128}, 2, 2, frame.Rotation90)
			buf, err := pixelbuf.NV21().FromFrame(f)
			if err != nil {
				return xerror.Errorf("imaging probe failed: %w", err)
			}
			defer buf.Close()
			if _, err := buf.Addr(); err != nil {
				return xerror.Errorf("imaging probe failed: %w", err)
			}
			return nil
		},
	}
}
