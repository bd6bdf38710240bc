package config

import "github.com/tauraamui/dragonlens/pkg/configdef"

func DefaultDestroyer() configdef.Destroyer {
	return defaultDestroyer{}
}

type defaultDestroyer struct{}

func (d defaultDestroyer) Destroy() error {
	return destroy()
}
