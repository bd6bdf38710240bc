package configdef

import (
	"errors"
	"fmt"

	"gopkg.in/dealancer/validate.v2"
)

const (
	CameraBackendOpenCV = "opencv"
	CameraBackendMock   = "mock"

	RecognizerNoop   = "noop"
	RecognizerStatic = "static"
	RecognizerNative = "native"

	RendererWindow = "window"
	RendererMJPEG  = "mjpeg"
	RendererNone   = "none"
)

type Camera struct {
	Title    string `json:"title" validate:"empty=false"`
	Address  string `json:"address"`
	Backend  string `json:"backend" validate:"one_of=opencv,mock"`
	Width    int    `json:"width" validate:"gte=2 & lte=8192"`
	Height   int    `json:"height" validate:"gte=2 & lte=8192"`
	FPS      int    `json:"fps" validate:"gte=1 & lte=120"`
	Rotation int    `json:"rotation"`
}

type Recognizer struct {
	Kind    string `json:"kind" validate:"one_of=noop,static,native"`
	Library string `json:"library"`
	Symbol  string `json:"symbol"`
	Code    int32  `json:"code"`
	Angle   int32  `json:"angle"`
}

type Renderer struct {
	Kind        string `json:"kind" validate:"one_of=window,mjpeg,none"`
	Title       string `json:"title"`
	Address     string `json:"address"`
	JPEGQuality int    `json:"jpeg_quality" validate:"gte=1 & lte=100"`
}

type Pipeline struct {
	DropOnRecognitionFailure bool `json:"drop_on_recognition_failure"`
	MaxConsecutiveExhaustion int  `json:"max_consecutive_exhaustion" validate:"gte=1"`
}

type Journal struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	Buffer  int    `json:"buffer" validate:"gte=1"`
}

type Values struct {
	Debug      bool       `json:"debug"`
	Camera     Camera     `json:"camera"`
	Recognizer Recognizer `json:"recognizer"`
	Renderer   Renderer   `json:"renderer"`
	Pipeline   Pipeline   `json:"pipeline"`
	Journal    Journal    `json:"journal"`
}

func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.Validate()
}

func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if v.Camera.Width%2 != 0 || v.Camera.Height%2 != 0 {
		return fmt.Errorf(validationErrorHeader, errors.New("camera width and height must be even"))
	}
	if v.Recognizer.Kind == RecognizerNative && len(v.Recognizer.Library) == 0 {
		return fmt.Errorf(validationErrorHeader, errors.New("native recognizer requires a library path"))
	}
	if v.Renderer.Kind == RendererMJPEG && len(v.Renderer.Address) == 0 {
		return fmt.Errorf(validationErrorHeader, errors.New("mjpeg renderer requires a listen address"))
	}
	return nil
}
