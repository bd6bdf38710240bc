package recognition

import (
	"github.com/tauraamui/dragonlens/pkg/configdef"
	"github.com/tauraamui/xerror"
)

func Resolve(cfg configdef.Recognizer) (Recognizer, error) {
	switch cfg.Kind {
	case configdef.RecognizerNative:
		n, err := LoadNative(cfg.Library, cfg.Symbol)
		if err != nil {
			return nil, err
		}
		return n, nil
	case configdef.RecognizerStatic:
		return Static(cfg.Code, cfg.Angle), nil
	case configdef.RecognizerNoop, "":
		return Noop(), nil
	default:
		return nil, xerror.Errorf("unknown recognizer kind: %s", cfg.Kind)
	}
}
