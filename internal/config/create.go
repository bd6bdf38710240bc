package config

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/tauraamui/dragonlens/pkg/configdef"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/xerror"
)

func create() error {
	data, err := loadRawDefaultConfig()
	if err != nil {
		log.Fatal("unable to init default config into memory: %v", err)
	}

	path := mustResolveConfigPath()

	err = writeConfigToDisk(data, path, false)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return configdef.ErrConfigAlreadyExists
		}
		return err
	}

	log.Info("Created default config file: %s", path)
	return nil
}

func destroy() error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	if err := fs.Remove(path); err != nil {
		return xerror.Errorf("unable to delete config file: %w", err)
	}
	return nil
}

func writeConfigToDisk(data []byte, path string, overwrite bool) error {
	flags := os.O_RDWR | os.O_CREATE
	if !overwrite {
		flags |= os.O_EXCL
	}

	file, err := fs.OpenFile(path, flags, 0666)
	if err != nil {
		return xerror.Errorf("unable to create/open file: %w", err)
	}
	defer file.Close()

	bc, err := file.Write(data)
	if err != nil {
		return xerror.Errorf("unable to write config to file: %s: %w", path, err)
	}

	if bc != len(data) {
		return xerror.Errorf("unable to write full config data to file: %s: %w", path, io.ErrShortWrite)
	}

	return nil
}

func loadRawDefaultConfig() ([]byte, error) {
	return json.MarshalIndent(defaultValues(), "", " ")
}

func mustResolveConfigPath() string {
	path, err := resolveConfigPath()
	if err != nil {
		log.Fatal("unable to resolve config path: %v", err)
	}

	parentDirPath := filepath.Dir(path)
	if _, err := fs.Stat(parentDirPath); errors.Is(err, os.ErrNotExist) {
		err = fs.MkdirAll(parentDirPath, os.ModeDir|os.ModePerm)
		if err != nil {
			log.Fatal("unable to create config parent directory: %v", err)
		}
	}

	return path
}
