// Package config loads the process configuration from an optional .env
// file and FLUXRECORD_-prefixed environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telemetrydb/fluxrecord/internal/errs"
)

// EnvPrefix namespaces every environment variable the process reads.
// FLUXRECORD_INFLUX_URL maps to influx.url and so on.
const EnvPrefix = "FLUXRECORD_"

type Config struct {
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"loglevel"`

	Influx  Influx  `mapstructure:"influx"`
	Service Service `mapstructure:"service"`
}

type Influx struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

type Service struct {
	Measurement string `mapstructure:"measurement"`

	// Tags and Fields are comma-separated key allowlists.
	Tags      string `mapstructure:"tags"`
	Fields    string `mapstructure:"fields"`
	TimeField string `mapstructure:"timefield"`
	IDField   string `mapstructure:"idfield"`

	Multi bool `mapstructure:"multi"`

	// PageDefault enables pagination when positive.
	PageDefault int `mapstructure:"pagedefault"`
	PageMax     int `mapstructure:"pagemax"`

	// Range is the default query window, e.g. "-1h" or "-30d".
	Range string `mapstructure:"range"`

	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout"`
}

func Default() Config {
	return Config{
		Listen:   ":8086",
		LogLevel: "info",
		Influx: Influx{
			URL: "http://localhost:8086",
		},
		Service: Service{
			TimeField:       "_time",
			Multi:           true,
			Range:           "-1h",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads .env (when present) and the environment over the defaults.
func Load() (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, errs.Config("reading .env: %v", err)
		}
	}

	// AutomaticEnv does not surface unknown keys to Unmarshal, so the
	// environment is walked explicitly, FLUXRECORD_INFLUX_URL -> influx.url.
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		prop := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, EnvPrefix), "_", "."))
		v.Set(prop, value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Config("unmarshaling config: %v", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Influx.Token == "":
		return errs.Config("influx token is required")
	case c.Influx.Org == "":
		return errs.Config("influx org is required")
	case c.Influx.Bucket == "":
		return errs.Config("influx bucket is required")
	case c.Service.Measurement == "":
		return errs.Config("measurement is required")
	}
	return nil
}

// TagKeys returns the tag allowlist parsed from its comma-separated form.
func (s Service) TagKeys() []string { return splitList(s.Tags) }

// FieldKeys returns the field allowlist parsed from its comma-separated form.
func (s Service) FieldKeys() []string { return splitList(s.Fields) }

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
