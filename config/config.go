// Package config loads InspireHub client settings from a file and the
// environment.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"thde.io/inspirehub"
)

// EnvPrefix prefixes every environment variable, e.g. INSPIREHUB_API_BASE_URL.
const EnvPrefix = "INSPIREHUB"

type Config struct {
	APIBaseURL string        `mapstructure:"api_base_url" validate:"required,url"`
	StorageDir string        `mapstructure:"storage_dir"  validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout"      validate:"gt=0"`
	AuthScheme string        `mapstructure:"auth_scheme"  validate:"oneof=JWT Bearer"`
	PageSize   int           `mapstructure:"page_size"    validate:"gte=1,lte=100"`
	LogLevel   string        `mapstructure:"log_level"    validate:"oneof=trace debug info warn warning error"`
}

// Load reads the config file at path, or config.{yaml,toml,json} from
// the working directory and the user config dir when path is empty.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			vip.AddConfigPath(filepath.Join(dir, "inspirehub"))
		}
	}

	vip.SetEnvPrefix(EnvPrefix)
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("api_base_url", inspirehub.DefaultBaseURL)
	vip.SetDefault("storage_dir", defaultStorageDir())
	vip.SetDefault("timeout", 30*time.Second)
	vip.SetDefault("auth_scheme", inspirehub.AuthSchemeJWT)
	vip.SetDefault("page_size", inspirehub.DefaultPageSize)
	vip.SetDefault("log_level", logrus.InfoLevel.String())

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, trace.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, trace.Wrap(err, "decoding config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, trace.Wrap(err)
	}

	return &cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return trace.BadParameter("config validation failed: %v", err)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func defaultStorageDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".inspirehub"
	}
	return filepath.Join(dir, "inspirehub", "session")
}
