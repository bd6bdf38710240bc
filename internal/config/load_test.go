package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tauraamui/dragonlens/pkg/configdef"
	"github.com/tauraamui/dragonlens/pkg/log"
)

const testConfigPath = "/testroot/tacusci/dragonlens/config.json"

type LoadConfigTestSuite struct {
	suite.Suite
	configResolver configdef.Resolver
	fs             afero.Fs
	configFile     afero.File
	unsilence      func()
}

func (suite *LoadConfigTestSuite) SetupSuite() {
	suite.unsilence = log.Silence()
	suite.fs = afero.NewMemMapFs()
	suite.configResolver = DefaultResolver()
	require.NoError(suite.T(), os.Setenv(configPathEnv, testConfigPath))

	// use in memory FS in implementation for tests
	fs = suite.fs
}

func (suite *LoadConfigTestSuite) TearDownSuite() {
	fs = afero.NewOsFs()
	os.Unsetenv(configPathEnv)
	suite.unsilence()
}

func (suite *LoadConfigTestSuite) SetupTest() {
	require.NoError(suite.T(), suite.fs.MkdirAll(filepath.Dir(testConfigPath), os.ModeDir|os.ModePerm))

	configFile, err := suite.fs.Create(testConfigPath)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), configFile)

	suite.configFile = configFile

	// can be overridden this so reset it back before
	// each test to ensure that it's an opt in thing per
	// individual test
	suite.overwriteTestConfig(
		`{
			"debug": true,
			"camera": {
				"title": "Porch",
				"backend": "mock",
				"width": 320,
				"height": 240,
				"fps": 10,
				"rotation": 270
			},
			"recognizer": {"kind": "static", "code": 4, "angle": 15},
			"renderer": {"kind": "mjpeg", "address": ":8089"},
			"pipeline": {"drop_on_recognition_failure": true},
			"journal": {"enabled": true, "path": "/testroot/dl.db"}
		}`,
	)
}

func (suite *LoadConfigTestSuite) overwriteTestConfig(config string) {
	require.NoError(suite.T(), suite.configFile.Truncate(0))
	_, err := suite.configFile.Seek(0, 0)
	require.NoError(suite.T(), err)
	_, err = suite.configFile.WriteString(config)
	assert.NoError(suite.T(), err)
}

func (suite *LoadConfigTestSuite) TearDownTest() {
	require.NoError(suite.T(), suite.configFile.Close())
	suite.fs.Remove(testConfigPath)
}

func (suite *LoadConfigTestSuite) TestLoadConfig() {
	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), true, config.Debug)
	assert.Equal(suite.T(), configdef.Camera{
		Title:    "Porch",
		Backend:  configdef.CameraBackendMock,
		Width:    320,
		Height:   240,
		FPS:      10,
		Rotation: 270,
	}, config.Camera)
	assert.Equal(suite.T(), configdef.Recognizer{Kind: configdef.RecognizerStatic, Code: 4, Angle: 15}, config.Recognizer)
	assert.Equal(suite.T(), configdef.Renderer{
		Kind: configdef.RendererMJPEG, Title: "dragonlens", Address: ":8089", JPEGQuality: 80,
	}, config.Renderer)
	assert.Equal(suite.T(), configdef.Pipeline{DropOnRecognitionFailure: true, MaxConsecutiveExhaustion: 30}, config.Pipeline)
	assert.Equal(suite.T(), configdef.Journal{Enabled: true, Path: "/testroot/dl.db", Buffer: 64}, config.Journal)
}

func (suite *LoadConfigTestSuite) TestLoadEmptyConfigGivesDefaults() {
	suite.overwriteTestConfig(`{}`)

	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), defaultValues(), config)
	assert.Equal(suite.T(), "0", config.Camera.Address)
	assert.Equal(suite.T(), configdef.CameraBackendOpenCV, config.Camera.Backend)
	assert.Equal(suite.T(), 0, config.Camera.Rotation)
}

func (suite *LoadConfigTestSuite) TestLoadConfigFailsValidationOnOddDimensions() {
	suite.overwriteTestConfig(`{"camera": {"width": 641}}`)

	config, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	require.Empty(suite.T(), config)

	assert.EqualError(suite.T(), err, "validation failed: camera width and height must be even")
}

func (suite *LoadConfigTestSuite) TestLoadConfigFailsOnInvalidJSON() {
	suite.overwriteTestConfig(`{"debug" true,}`)

	_, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "parsing configuration error")
}

func TestLoadConfigTestSuite(t *testing.T) {
	suite.Run(t, &LoadConfigTestSuite{})
}

func TestResolveConfigPathFromUserConfigDir(t *testing.T) {
	userConfigDirRef := userConfigDir
	userConfigDir = func() (string, error) { return "test", nil }
	defer func() { userConfigDir = userConfigDirRef }()

	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("test", "tacusci", "dragonlens", "config.json"), path)
}

func TestResolveConfigPathFromEnv(t *testing.T) {
	require.NoError(t, os.Setenv(configPathEnv, "elsewhere/config.json"))
	defer os.Unsetenv(configPathEnv)

	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "elsewhere/config.json", path)
}
