package pixelbuf

import (
	"unsafe"

	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

// Buffer is an interleaved 8 bit per channel RGB image backed by an OpenCV
// matrix. Its backing memory does not move until Close is called.
type Buffer struct {
	isClosed bool
	mat      gocv.Mat
}

// Wrap takes ownership of mat.
func Wrap(mat gocv.Mat) *Buffer {
	return &Buffer{mat: mat}
}

func (b *Buffer) Rows() int     { return b.mat.Rows() }
func (b *Buffer) Cols() int     { return b.mat.Cols() }
func (b *Buffer) Channels() int { return b.mat.Channels() }

func (b *Buffer) Dimensions() frame.Dimensions {
	return frame.Dimensions{W: b.mat.Cols(), H: b.mat.Rows()}
}

// DataRef exposes the underlying matrix to OpenCV aware stages.
func (b *Buffer) DataRef() *gocv.Mat {
	return &b.mat
}

// Addr is the address of the underlying native matrix header, which in turn
// describes the geometry and location of the pixel data. It stays valid
// until Close.
func (b *Buffer) Addr() (uintptr, error) {
	if b.isClosed || b.mat.Empty() {
		return 0, xerror.New("pixel buffer has no backing memory")
	}
	ptr := unsafe.Pointer(b.mat.Ptr())
	if ptr == nil {
		return 0, xerror.New("pixel buffer has no backing memory")
	}
	return uintptr(ptr), nil
}

// Bytes returns a copy of the pixel data in row major RGB order.
func (b *Buffer) Bytes() []byte {
	if b.isClosed {
		return nil
	}
	return b.mat.ToBytes()
}

func (b *Buffer) IsClosed() bool {
	return b.isClosed
}

func (b *Buffer) Close() {
	if !b.isClosed {
		b.mat.Close()
		b.isClosed = true
	}
}
