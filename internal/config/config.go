package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tauraamui/dragonlens/pkg/configdef"
	"github.com/tauraamui/xerror"
)

const (
	vendorName     = "tacusci"
	appName        = "dragonlens"
	configFileName = "config.json"
	configPathEnv  = "DRAGON_LENS_CONFIG"
)

var fs afero.Fs = afero.NewOsFs()

var readConfigFile = func(path string) ([]byte, error) {
	return afero.ReadFile(fs, path)
}

func unmarshal(content []byte, values *configdef.Values) error {
	err := json.Unmarshal(content, values)
	if err != nil {
		return errors.Errorf("parsing configuration error: %v", err)
	}
	return nil
}

func resolveConfigPath() (string, error) {
	configPath := os.Getenv(configPathEnv)
	if len(configPath) > 0 {
		return configPath, nil
	}

	configParentDir, err := userConfigDir()
	if err != nil {
		return "", xerror.Errorf("unable to resolve %s location: %w", configFileName, err)
	}

	return filepath.Join(
		configParentDir,
		vendorName,
		appName,
		configFileName), nil
}

var userConfigDir = func() (string, error) {
	return os.UserConfigDir()
}
