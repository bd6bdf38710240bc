package recognition

import (
	"fmt"
	"runtime"

	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"github.com/tauraamui/xerror"
)

// ResultLen is fixed by the recognition routine's calling contract.
const ResultLen = 10

const (
	codeIndex  = 1
	angleIndex = 2
)

// Result is the output slot written by a recognition routine. Only the
// code and angle entries are interpreted, the rest are reserved.
type Result [ResultLen]int32

func (r Result) Code() int32  { return r[codeIndex] }
func (r Result) Angle() int32 { return r[angleIndex] }

func (r Result) String() string {
	return fmt.Sprintf("code=%d angle=%d", r.Code(), r.Angle())
}

const RecognitionFailure = xerror.Kind("recognition_failure")

var ErrRecognitionFailure = xerror.NewWithKind(RecognitionFailure, "recognition failed")

// Recognizer is the boundary to an opaque recognition routine. addr is the
// native matrix holding an RGB888 image, which carries its own rows, cols and
// type. It stays valid and unmodified for the duration of the call.
type Recognizer interface {
	Recognize(addr uintptr, out *Result) error
}

type RecognizerFunc func(addr uintptr, out *Result) error

func (f RecognizerFunc) Recognize(addr uintptr, out *Result) error {
	return f(addr, out)
}

// Bridge lends pixel buffers to a Recognizer.
type Bridge struct {
	recognizer Recognizer
}

func NewBridge(r Recognizer) *Bridge {
	if r == nil {
		r = Noop()
	}
	return &Bridge{recognizer: r}
}

// Recognize blocks until the recognizer returns. The buffer is borrowed, not
// consumed. On failure the zero Result is returned alongside the error.
func (b *Bridge) Recognize(buf *pixelbuf.Buffer) (Result, error) {
	addr, err := buf.Addr()
	if err != nil {
		return Result{}, xerror.Errorf("%w: %s", ErrRecognitionFailure, err)
	}

	var out Result
	err = invoke(b.recognizer, addr, &out)
	runtime.KeepAlive(buf)
	if err != nil {
		return Result{}, err
	}
	return out, nil
}

func invoke(r Recognizer, addr uintptr, out *Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = xerror.Errorf("%w: recognizer panicked: %v", ErrRecognitionFailure, p)
		}
	}()

	if rerr := r.Recognize(addr, out); rerr != nil {
		return xerror.Errorf("%w: %s", ErrRecognitionFailure, rerr)
	}
	return nil
}

// Noop never writes to the output slot.
func Noop() Recognizer {
	return RecognizerFunc(func(uintptr, *Result) error { return nil })
}

// Static writes a fixed code and angle for every frame.
func Static(code, angle int32) Recognizer {
	return RecognizerFunc(func(_ uintptr, out *Result) error {
		out[codeIndex] = code
		out[angleIndex] = angle
		return nil
	})
}
