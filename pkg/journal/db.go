// Package journal records recognition outcomes to a local sqlite database.
package journal

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragonlens/pkg/journal/dbconn"
	"github.com/tauraamui/dragonlens/pkg/journal/models"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/xerror"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	vendorName       = "tacusci"
	appName          = "dragonlens"
	databaseFileName = "dl.db"
	databaseEnvVar   = "DRAGON_LENS_DB"
)

var (
	ErrCreateDBFile    = xerror.New("unable to create database file")
	ErrDBAlreadyExists = xerror.New("database file already exists")
)

var uc = os.UserCacheDir
var fs = afero.NewOsFs()

// Setup creates the database file and its tables.
func Setup() error {
	log.Info("Creating database file...")

	if err := createFile(); err != nil {
		return err
	}

	db, err := Connect("")
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("Created recognition journal")
	return nil
}

func Destroy() error {
	dbFilePath, err := resolveDBPath("")
	if err != nil {
		return xerror.Errorf("unable to delete database file: %w", err)
	}

	return fs.Remove(dbFilePath)
}

// Connect opens the journal at path, or at the default location when path
// is empty, migrating tables as needed.
func Connect(path string) (dbconn.GormWrapper, error) {
	dbPath, err := resolveDBPath(path)
	if err != nil {
		return nil, err
	}

	log.Debug("Connecting to DB: %s", dbPath)
	db, err := openDBConnection(dbPath)
	if err != nil {
		return nil, xerror.Errorf("unable to open db connection: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		if cerr := db.Close(); cerr != nil {
			log.Error("unable to close db connection: %v", cerr)
		}
		return nil, xerror.Errorf("unable to run automigrations: %w", err)
	}

	return db, nil
}

var openDBConnection = func(path string) (dbconn.GormWrapper, error) {
	logger := logger.New(nil, logger.Config{LogLevel: logger.Silent})
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger})
	if err != nil {
		return nil, err
	}
	return dbconn.Wrap(db), nil
}

func resolveDBPath(path string) (string, error) {
	if len(path) > 0 {
		return path, nil
	}

	if databasePath := os.Getenv(databaseEnvVar); len(databasePath) > 0 {
		return databasePath, nil
	}

	databaseParentDir, err := uc()
	if err != nil {
		return "", xerror.Errorf("unable to resolve %s database file location: %w", databaseFileName, err)
	}

	return filepath.Join(
		databaseParentDir,
		vendorName,
		appName,
		databaseFileName), nil
}

func createFile() error {
	path, err := resolveDBPath("")
	if err != nil {
		return err
	}

	if _, err := fs.Stat(path); errors.Is(err, os.ErrNotExist) {
		fs.MkdirAll(filepath.Dir(path), os.ModeDir|os.ModePerm) //nolint

		f, err := fs.Create(path)
		if err != nil {
			return xerror.Errorf("%v: %w", ErrCreateDBFile, err)
		}
		return f.Close()
	}

	return xerror.Errorf("%w: %s", ErrDBAlreadyExists, path)
}
