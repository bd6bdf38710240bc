package render

import (
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"gocv.io/x/gocv"
)

// Window shows frames in a native OpenCV window. The window is created on
// first use so it belongs to the thread running the loop.
func Window(title string) Sink {
	return &windowSink{title: title, bgr: gocv.NewMat()}
}

type windowSink struct {
	title  string
	window *gocv.Window
	bgr    gocv.Mat
}

func (w *windowSink) Show(buf *pixelbuf.Buffer) error {
	if w.window == nil {
		w.window = gocv.NewWindow(w.title)
	}
	gocv.CvtColor(*buf.DataRef(), &w.bgr, gocv.ColorBGRToRGB)
	w.window.IMShow(w.bgr)
	w.window.WaitKey(1)
	return nil
}

func (w *windowSink) Poll() {
	if w.window != nil {
		w.window.WaitKey(1)
	}
}

func (w *windowSink) Close() error {
	w.bgr.Close()
	if w.window != nil {
		err := w.window.Close()
		w.window = nil
		return err
	}
	return nil
}
