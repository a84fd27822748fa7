package sanctions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"repdig-scraper/lib/scrapers/repdig"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestReadConfigDefaults(t *testing.T) {
	config, err := ReadConfig(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), config)
	require.NoError(t, config.Validate())
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	err := os.WriteFile(path, []byte(`{
		// the portal is slow today
		delay_ms: 5000,
		output_dir: "pdfs",
		db: "index.db",
	}`), 0666)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		base_url: "http://localhost:8080",
		max_retries: 2,
	}`), 0666)
	require.NoError(t, err)

	config, err := ReadConfig(path)
	require.NoError(t, err)

	expected := DefaultConfig()
	expected.DelayMs = 5000
	expected.OutputDir = "pdfs"
	expected.Db = "index.db"
	expected.BaseUrl = "http://localhost:8080"
	expected.MaxRetries = 2
	if diff := cmp.Diff(expected, config); diff != "" {
		t.Fatal(diff)
	}
	require.NoError(t, config.Validate())
}

func TestReadConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	err := os.WriteFile(path, []byte(`{ delay_ms: `), 0666)
	require.NoError(t, err)

	_, err = ReadConfig(path)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *Config)
		valid  bool
	}{
		{name: "defaults", modify: func(c *Config) {}, valid: true},
		{name: "zero delays", modify: func(c *Config) {
			c.DelayMs = 0
			c.RetryBaseDelayMs = 0
			c.MaxRetries = 0
		}, valid: true},
		{name: "not a url", modify: func(c *Config) { c.BaseUrl = "publico.oefa.gob.pe" }, valid: false},
		{name: "not http", modify: func(c *Config) { c.BaseUrl = "ftp://publico.oefa.gob.pe" }, valid: false},
		{name: "negative delay", modify: func(c *Config) { c.DelayMs = -1 }, valid: false},
		{name: "too many retries", modify: func(c *Config) { c.MaxRetries = 21 }, valid: false},
		{name: "no output dir", modify: func(c *Config) { c.OutputDir = "" }, valid: false},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.modify(&config)
			err := config.Validate()
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestConfigClientOptions(t *testing.T) {
	config := DefaultConfig()
	config.DelayMs = 1500
	config.CloudflareBypass = true

	opts := config.ClientOptions()
	require.Equal(t, repdig.DefaultBaseUrl, opts.BaseUrl)
	require.Equal(t, 1500*time.Millisecond, opts.RequestDelay)
	require.Equal(t, repdig.DefaultRetryBaseDelay, opts.RetryBaseDelay)
	require.Equal(t, repdig.DefaultMaxRetries, opts.MaxRetries)
	require.Equal(t, repdig.DefaultTimeout, opts.Timeout)
	require.True(t, opts.CloudflareBypass)
}
