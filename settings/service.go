package settings

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable glosa reads.
const EnvPrefix = "GLOSA"

// Options controls how the glosa process runs. The translation
// configuration document itself lives in the config package.
type Options struct {
	// Listen is the HTTP listen address of `glosa serve`.
	Listen string `mapstructure:"listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// LogFile enables rotating file output when set.
	LogFile string `mapstructure:"log_file"`
	// LogMaxSizeMB is the rotation size of LogFile.
	LogMaxSizeMB int `mapstructure:"log_max_size_mb"`
	// BundledConfig replaces the embedded configuration document.
	BundledConfig string `mapstructure:"bundled_config"`
	// OverridePath is where updateConfig persists the user override.
	OverridePath string `mapstructure:"override_path"`
	// WatchOverride reloads the configuration when the override file
	// changes on disk.
	WatchOverride bool `mapstructure:"watch_override"`
	// TranslateTimeout bounds one translation request end to end
	// (primary attempt plus fallback).
	TranslateTimeout time.Duration `mapstructure:"translate_timeout"`
	// StatusTimeout bounds one status round-trip.
	StatusTimeout time.Duration `mapstructure:"status_timeout"`
	// RedisURL enables the translation cache when set.
	RedisURL string `mapstructure:"redis_url"`
	// CacheTTL is the lifetime of a cached translation.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// RateLimit is the sustained request rate of the HTTP surface (req/s);
	// zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the token bucket size.
	RateBurst int `mapstructure:"rate_burst"`
	// UILanguage selects the language of glosa's own messages.
	UILanguage string `mapstructure:"ui_language"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:8787")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("bundled_config", "")
	v.SetDefault("override_path", "")
	v.SetDefault("watch_override", true)
	v.SetDefault("translate_timeout", 30*time.Second)
	v.SetDefault("status_timeout", 5*time.Second)
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", 24*time.Hour)
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("ui_language", "")
}

// LoadOptions reads service options from, in increasing priority:
// built-in defaults, an optional glosa.yaml (current directory or the data
// directory), a .env file, and GLOSA_* environment variables.
func LoadOptions(configFile string) (*Options, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("glosa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := dataDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("reading service options: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("decoding service options: %w", err)
	}

	if opts.OverridePath == "" {
		p, err := OverridePath()
		if err != nil {
			return nil, err
		}
		opts.OverridePath = p
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

func (o *Options) validate() error {
	switch o.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", o.LogLevel)
	}
	if o.TranslateTimeout <= 0 {
		return fmt.Errorf("translate timeout must be positive, got %s", o.TranslateTimeout)
	}
	if o.StatusTimeout <= 0 {
		return fmt.Errorf("status timeout must be positive, got %s", o.StatusTimeout)
	}
	if o.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", o.RateLimit)
	}
	return nil
}

// loadEnvFile loads .env from the working directory when present.
// Variables already set in the environment win.
func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}
