package frame

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Dimensions struct {
	W, H int
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.W, d.H)
}

// Rotation is the display orientation reported at capture time, in degrees.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// Raw is a single camera frame in its three plane 4:2:0 form. Plane order
// follows the capture order: Y is luma, U is chroma-1, V is chroma-2.
// Chroma is consumed NV21 style: V is placed first, U straight after it,
// so semi-planar producers put the leading half of their interleaved VU
// block in V and the trailing half in U.
//
// A Raw belongs to the Source which produced it until it is handed back
// through Source.Release.
type Raw struct {
	ID        string
	Seq       uint64
	Timestamp time.Time
	Y, U, V   []byte
	Width     int
	Height    int
	Rotation  Rotation
}

func New(seq uint64, y, u, v []byte, w, h int, rot Rotation) *Raw {
	return &Raw{
		ID:        uuid.NewString(),
		Seq:       seq,
		Timestamp: time.Now(),
		Y:         y, U: u, V: v,
		Width: w, Height: h,
		Rotation: rot,
	}
}

func (r *Raw) Dimensions() Dimensions {
	return Dimensions{W: r.Width, H: r.Height}
}

// LumaSize is the byte length the Y plane must have.
func (r *Raw) LumaSize() int {
	return r.Width * r.Height
}

// ChromaSize is the combined byte length the U and V planes must have.
func (r *Raw) ChromaSize() int {
	return r.Width * r.Height / 2
}
