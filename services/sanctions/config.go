package sanctions

import (
	"fmt"
	"os"
	"time"

	"repdig-scraper/lib/configutil"
	"repdig-scraper/lib/scrapers/repdig"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	BaseUrl          string `json:"base_url" validate:"required,http_url"`
	OutputDir        string `json:"output_dir" validate:"required"`
	DelayMs          int    `json:"delay_ms" validate:"gte=0"`
	MaxRetries       int    `json:"max_retries" validate:"gte=0,lte=20"`
	RetryBaseDelayMs int    `json:"retry_base_delay_ms" validate:"gte=0"`
	TimeoutMs        int    `json:"timeout_ms" validate:"gte=0"`
	// Db is the path of the sqlite record index, empty disables it.
	Db               string `json:"db"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

func DefaultConfig() Config {
	return Config{
		BaseUrl:          repdig.DefaultBaseUrl,
		OutputDir:        "downloads",
		DelayMs:          int(repdig.DefaultRequestDelay / time.Millisecond),
		MaxRetries:       repdig.DefaultMaxRetries,
		RetryBaseDelayMs: int(repdig.DefaultRetryBaseDelay / time.Millisecond),
		TimeoutMs:        int(repdig.DefaultTimeout / time.Millisecond),
	}
}

// ReadConfig reads `path` (and its .local override) on top of DefaultConfig.
// A missing file is not an error, the defaults are returned.
func ReadConfig(path string) (Config, error) {
	config := DefaultConfig()

	file, err := configutil.ReadConfig[Config](path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	if err == nil {
		// zero values in the file keep the default, only the command line flags
		// can set a field back to zero
		err = mergo.Merge(&config, file, mergo.WithOverride)
		if err != nil {
			return Config{}, err
		}
	}

	return config, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) ClientOptions() repdig.ClientOptions {
	return repdig.ClientOptions{
		BaseUrl:          c.BaseUrl,
		RequestDelay:     time.Duration(c.DelayMs) * time.Millisecond,
		RetryBaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxRetries:       c.MaxRetries,
		Timeout:          time.Duration(c.TimeoutMs) * time.Millisecond,
		CloudflareBypass: c.CloudflareBypass,
	}
}
