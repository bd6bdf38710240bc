package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/dragonlens/pkg/frame"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const (
	mockDefaultWidth  = 640
	mockDefaultHeight = 480
)

type mockBackend struct{}

func (b *mockBackend) Connect(cancel context.Context, addr string, dims frame.Dimensions, fps int) (Grabber, error) {
	if dims.W <= 0 || dims.H <= 0 {
		dims = frame.Dimensions{W: mockDefaultWidth, H: mockDefaultHeight}
	}
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &mockGrabber{addr: addr, dims: dims, interval: interval, isOpen: true}, nil
}

// mockGrabber draws an offline test card, useful without a camera attached.
type mockGrabber struct {
	mu         sync.Mutex
	addr       string
	dims       frame.Dimensions
	interval   time.Duration
	lastGrab   time.Time
	count      uint64
	isOpen     bool
	baseCanvas image.Image
}

func (g *mockGrabber) Grab(mat *gocv.Mat) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.isOpen {
		return xerror.New("mock capture is closed")
	}

	if g.interval > 0 {
		if wait := g.interval - time.Since(g.lastGrab); wait > 0 {
			time.Sleep(wait)
		}
		g.lastGrab = time.Now()
	}

	if g.baseCanvas == nil {
		g.baseCanvas = renderBaseFrameCanvas(g.dims)
	}
	g.count++

	img, err := drawTextLayerOntoBaseFrameClone(g.baseCanvas, g.addr, g.count)
	if err != nil {
		return err
	}

	// gocv images are BGR ordered
	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return xerror.Errorf("unable to convert Go image into OpenCV mat: %w", err)
	}
	defer bgr.Close()

	bgr.CopyTo(mat)
	return nil
}

func (g *mockGrabber) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isOpen
}

func (g *mockGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.isOpen = false
	g.baseCanvas = nil
	return nil
}

func drawTextLayerOntoBaseFrameClone(base image.Image, title string, count uint64) (image.Image, error) {
	baseClone := cloneImage(base)
	h := baseClone.Bounds().Dy()
	lines := []string{
		"DL_OFFLINE_STREAM",
		title,
		fmt.Sprintf("#%d %s", count, time.Now().Format("15:04:05.000")),
	}
	for i, line := range lines {
		if err := drawText(baseClone, 5, (i+1)*h/4, line); err != nil {
			return nil, xerror.Errorf("unable to draw text onto in-mem image for offline stream: %w", err)
		}
	}
	return baseClone, nil
}

func renderBaseFrameCanvas(dims frame.Dimensions) image.Image {
	w, h := dims.W, dims.H
	var hw, hh float64 = float64(w / 2), float64(h / 2)
	r := float64(h) / 2
	θ := 2 * math.Pi / 3
	cr := &circle{hw - r*math.Sin(0), hh - r*math.Cos(0), r * 1.5}
	cg := &circle{hw - r*math.Sin(θ), hh - r*math.Cos(θ), r * 1.5}
	cb := &circle{hw - r*math.Sin(-θ), hh - r*math.Cos(-θ), r * 1.5}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{
				cr.Brightness(float64(x), float64(y)),
				cg.Brightness(float64(x), float64(y)),
				cb.Brightness(float64(x), float64(y)),
				255,
			})
		}
	}
	return img
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

var (
	fontOnce     sync.Once
	parsedFont   *truetype.Font
	parseFontErr error
)

func drawText(canvas *image.RGBA, x, y int, text string) error {
	fontOnce.Do(func() {
		parsedFont, parseFontErr = freetype.ParseFont(goregular.TTF)
	})
	if parseFontErr != nil {
		return parseFontErr
	}

	fontSize := float64(canvas.Bounds().Dy()) / 10
	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: image.White,
		Face: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			Hinting: font.HintingFull,
		}),
	}
	fontDrawer.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	fontDrawer.DrawString(text)
	return nil
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	if math.Sqrt(dx*dx+dy*dy)/c.R > 1 {
		return 0
	}
	return 255
}
