package pixelbuf

import (
	"runtime"

	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type Factory interface {
	FromFrame(*frame.Raw) (*Buffer, error)
}

// NV21 builds RGB buffers from frames whose chroma is laid out V first,
// then U, directly after the luma plane.
func NV21() Factory {
	return nv21Factory{}
}

type nv21Factory struct{}

func (nv21Factory) FromFrame(f *frame.Raw) (*Buffer, error) {
	if err := validate(f); err != nil {
		return nil, err
	}

	nv21 := assemble(f)
	yuv, err := newMatFromBytes(f.Height+f.Height/2, f.Width, gocv.MatTypeCV8UC1, nv21)
	if err != nil {
		return nil, xerror.Errorf("%w: %s", ErrResourceExhaustion, err)
	}
	defer yuv.Close()

	rgb := gocv.NewMat()
	gocv.CvtColor(yuv, &rgb, gocv.ColorYUVToRGBNV21)
	// the source matrix may reference nv21 directly
	runtime.KeepAlive(nv21)
	if rgb.Empty() || rgb.Rows() != f.Height || rgb.Cols() != f.Width || rgb.Channels() != 3 {
		rgb.Close()
		return nil, xerror.Errorf(
			"%w: conversion produced %dx%dx%d, expected %dx%dx3",
			ErrResourceExhaustion, rgb.Cols(), rgb.Rows(), rgb.Channels(), f.Width, f.Height,
		)
	}

	return Wrap(rgb), nil
}

var newMatFromBytes = func(rows, cols int, mt gocv.MatType, data []byte) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(rows, cols, mt, data)
}

func assemble(f *frame.Raw) []byte {
	ls := len(f.Y)
	nv21 := make([]byte, ls+len(f.V)+len(f.U))
	copy(nv21, f.Y)
	copy(nv21[ls:], f.V)
	copy(nv21[ls+len(f.V):], f.U)
	return nv21
}

func validate(f *frame.Raw) error {
	if f == nil {
		return xerror.Errorf("%w: nil frame", ErrMalformedFrame)
	}
	if f.Width <= 0 || f.Height <= 0 || f.Width%2 != 0 || f.Height%2 != 0 {
		return xerror.Errorf("%w: dimensions %s must be positive and even", ErrMalformedFrame, f.Dimensions())
	}
	if len(f.Y) != f.LumaSize() {
		return xerror.Errorf(
			"%w: luma plane has %d bytes, expected %d", ErrMalformedFrame, len(f.Y), f.LumaSize(),
		)
	}
	half := f.ChromaSize() / 2
	if len(f.U) != half || len(f.V) != half {
		return xerror.Errorf(
			"%w: chroma planes have %d and %d bytes, expected %d each", ErrMalformedFrame, len(f.U), len(f.V), half,
		)
	}
	return nil
}
