// Package config loads serve-mode settings from defaults, an optional
// config file, LOREBOARD_* environment variables, and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Serve holds the settings for the HTTP serve mode.
type Serve struct {
	// Listen is the address the API binds to. Defaults to loopback; this
	// is a local campaign backend, not a public service.
	Listen string `mapstructure:"listen"`

	// LogFile enables rotating file logging when set. Empty logs to
	// stderr.
	LogFile      string `mapstructure:"log_file"`
	LogMaxSizeMB int    `mapstructure:"log_max_size_mb"`
	LogMaxFiles  int    `mapstructure:"log_max_files"`

	// CORSOrigins restricts browser origins. Empty allows any origin.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LoadServe builds the serve configuration. flags may be nil; when given,
// set flags override file and environment values.
func LoadServe(flags *pflag.FlagSet) (*Serve, error) {
	v := viper.New()

	v.SetDefault("listen", "127.0.0.1:7321")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_files", 3)
	v.SetDefault("cors_origins", []string{})

	v.SetEnvPrefix("LOREBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// An explicit config file is optional.
	v.SetConfigName("loreboard")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		// Flag names use dashes, config keys use underscores.
		for key, flag := range map[string]string{
			"listen":       "listen",
			"log_file":     "log-file",
			"cors_origins": "cors-origins",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Serve
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

// LogWriter returns the destination for serve-mode logs: a size-rotated
// file when LogFile is set, stderr otherwise.
func (c *Serve) LogWriter() io.Writer {
	if c.LogFile == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxFiles,
	}
}
