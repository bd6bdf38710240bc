package config

import "github.com/tauraamui/dragonlens/pkg/configdef"

type defaultSettingKey uint

const (
	CAMERATITLE              defaultSettingKey = 0x0
	CAMERAADDRESS            defaultSettingKey = 0x1
	CAMERABACKEND            defaultSettingKey = 0x2
	CAMERAWIDTH              defaultSettingKey = 0x3
	CAMERAHEIGHT             defaultSettingKey = 0x4
	CAMERAFPS                defaultSettingKey = 0x5
	RECOGNIZERKIND           defaultSettingKey = 0x6
	RECOGNIZERSYMBOL         defaultSettingKey = 0x7
	RENDERERKIND             defaultSettingKey = 0x8
	RENDERERTITLE            defaultSettingKey = 0x9
	RENDERERJPEGQUALITY      defaultSettingKey = 0xA
	MAXCONSECUTIVEEXHAUSTION defaultSettingKey = 0xB
	JOURNALBUFFER            defaultSettingKey = 0xC
)

var defaultSettings = map[defaultSettingKey]interface{}{
	CAMERATITLE:              "camera",
	CAMERAADDRESS:            "0",
	CAMERABACKEND:            configdef.CameraBackendOpenCV,
	CAMERAWIDTH:              640,
	CAMERAHEIGHT:             480,
	CAMERAFPS:                30,
	RECOGNIZERKIND:           configdef.RecognizerNoop,
	RECOGNIZERSYMBOL:         "recog",
	RENDERERKIND:             configdef.RendererWindow,
	RENDERERTITLE:            "dragonlens",
	RENDERERJPEGQUALITY:      80,
	MAXCONSECUTIVEEXHAUSTION: 30,
	JOURNALBUFFER:            64,
}

func defaultString(v *string, key defaultSettingKey) {
	if len(*v) == 0 {
		*v = defaultSettings[key].(string)
	}
}

func defaultInt(v *int, key defaultSettingKey) {
	if *v == 0 {
		*v = defaultSettings[key].(int)
	}
}

func loadDefaults(values *configdef.Values) {
	defaultString(&values.Camera.Title, CAMERATITLE)
	defaultString(&values.Camera.Backend, CAMERABACKEND)
	if values.Camera.Backend == configdef.CameraBackendOpenCV {
		defaultString(&values.Camera.Address, CAMERAADDRESS)
	}
	defaultInt(&values.Camera.Width, CAMERAWIDTH)
	defaultInt(&values.Camera.Height, CAMERAHEIGHT)
	defaultInt(&values.Camera.FPS, CAMERAFPS)

	defaultString(&values.Recognizer.Kind, RECOGNIZERKIND)
	if values.Recognizer.Kind == configdef.RecognizerNative {
		defaultString(&values.Recognizer.Symbol, RECOGNIZERSYMBOL)
	}

	defaultString(&values.Renderer.Kind, RENDERERKIND)
	defaultString(&values.Renderer.Title, RENDERERTITLE)
	defaultInt(&values.Renderer.JPEGQuality, RENDERERJPEGQUALITY)

	defaultInt(&values.Pipeline.MaxConsecutiveExhaustion, MAXCONSECUTIVEEXHAUSTION)
	defaultInt(&values.Journal.Buffer, JOURNALBUFFER)
}

func defaultValues() configdef.Values {
	values := configdef.Values{}
	loadDefaults(&values)
	return values
}
