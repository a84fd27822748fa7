package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl    string `json:"base_url"`
	MaxRetries int    `json:"max_retries"`
	OutputDir  string `json:"output_dir"`
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "config.local.json5", LocalPath("config.json5"))
	require.Equal(t, filepath.Join("a", "b.local.json5"), LocalPath(filepath.Join("a", "b.json5")))
	require.Equal(t, "noext.local", LocalPath("noext"))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	_, err := ReadConfig[testConfig](name)
	require.True(t, os.IsNotExist(err))

	err = os.WriteFile(name, []byte(`{
		// comments are allowed
		base_url: "https://example.com",
		max_retries: 5,
		output_dir: "downloads",
	}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, testConfig{BaseUrl: "https://example.com", MaxRetries: 5, OutputDir: "downloads"}, cfg)

	err = os.WriteFile(LocalPath(name), []byte(`{ max_retries: 2 }`), 0600)
	require.NoError(t, err)

	cfg, err = ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, testConfig{BaseUrl: "https://example.com", MaxRetries: 2, OutputDir: "downloads"}, cfg)
}

func TestReadConfigInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config.json5")
	err := os.WriteFile(name, []byte(`{ base_url: `), 0600)
	require.NoError(t, err)

	_, err = ReadConfig[testConfig](name)
	require.Error(t, err)
	require.False(t, os.IsNotExist(err))
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0777))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "telemetry_test.json5"),
		[]byte(`{ base_url: "found" }`),
		0600,
	))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := ReadRecursively[testConfig]("telemetry_test.json5")
	require.NoError(t, err)
	require.Equal(t, "found", cfg.BaseUrl)

	_, err = ReadRecursively[testConfig]("definitely-missing-config.json5")
	require.True(t, os.IsNotExist(err))
}
