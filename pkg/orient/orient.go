// Package orient applies the residual rotation correction the analysis
// path needs. Unlike the preview surface, analysis buffers arrive in sensor
// orientation, so the correction is keyed by the display rotation.
package orient

import (
	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"gocv.io/x/gocv"
)

const (
	flipHorizontal = 1
	flipBoth       = -1
)

type Normalizer interface {
	// Normalize consumes buf and returns the upright buffer, which may be
	// buf itself.
	Normalize(buf *pixelbuf.Buffer, rotation frame.Rotation) *pixelbuf.Buffer
}

func Display() Normalizer {
	return displayNormalizer{}
}

type displayNormalizer struct{}

func (displayNormalizer) Normalize(buf *pixelbuf.Buffer, rotation frame.Rotation) *pixelbuf.Buffer {
	switch rotation {
	case frame.Rotation90:
		return buf
	case frame.Rotation270:
		mat := buf.DataRef()
		gocv.Flip(*mat, mat, flipBoth)
		return buf
	default:
		return transposeAndMirror(buf)
	}
}

func transposeAndMirror(buf *pixelbuf.Buffer) *pixelbuf.Buffer {
	defer buf.Close()

	dst := gocv.NewMatWithSize(buf.Cols(), buf.Rows(), buf.DataRef().Type())
	gocv.Transpose(*buf.DataRef(), &dst)
	gocv.Flip(dst, &dst, flipHorizontal)
	return pixelbuf.Wrap(dst)
}
