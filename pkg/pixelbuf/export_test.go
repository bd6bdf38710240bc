package pixelbuf

import "gocv.io/x/gocv"

func OverloadNewMatFromBytes(overload func(int, int, gocv.MatType, []byte) (gocv.Mat, error)) func() {
	newMatFromBytesRef := newMatFromBytes
	newMatFromBytes = overload
	return func() { newMatFromBytes = newMatFromBytesRef }
}
