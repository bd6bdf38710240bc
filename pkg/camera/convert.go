package camera

import (
	"image"

	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

// toFrame converts a BGR capture into the three plane layout frames travel
// in. Odd trailing rows and columns are cropped since 4:2:0 chroma needs
// even dimensions.
func toFrame(bgr gocv.Mat, seq uint64, rot frame.Rotation) (*frame.Raw, error) {
	w, h := bgr.Cols()&^1, bgr.Rows()&^1
	if w < 2 || h < 2 {
		return nil, xerror.Errorf("capture too small: %dx%d", bgr.Cols(), bgr.Rows())
	}

	src := bgr
	if w != bgr.Cols() || h != bgr.Rows() {
		region := bgr.Region(image.Rect(0, 0, w, h))
		defer region.Close()
		src = region.Clone()
		defer src.Close()
	}

	i420 := gocv.NewMat()
	defer i420.Close()
	gocv.CvtColor(src, &i420, gocv.ColorBGRToYUVI420)

	y, u, v, err := semiPlanarVU(i420.ToBytes(), w, h)
	if err != nil {
		return nil, err
	}
	return frame.New(seq, y, u, v, w, h, rot), nil
}

// semiPlanarVU splits a planar I420 image into a luma plane and an
// interleaved VU chroma block, handed out as its leading half (V) and
// trailing half (U).
func semiPlanarVU(i420 []byte, w, h int) (y, u, v []byte, err error) {
	lumaSize, quarter := w*h, w*h/4
	if len(i420) != lumaSize+2*quarter {
		return nil, nil, nil, xerror.Errorf("i420 image holds %d bytes, expected %d", len(i420), lumaSize+2*quarter)
	}

	planeU := i420[lumaSize : lumaSize+quarter]
	planeV := i420[lumaSize+quarter:]

	vu := make([]byte, 2*quarter)
	for i := 0; i < quarter; i++ {
		vu[2*i] = planeV[i]
		vu[2*i+1] = planeU[i]
	}

	y = make([]byte, lumaSize)
	copy(y, i420[:lumaSize])
	return y, vu[quarter:], vu[:quarter], nil
}
