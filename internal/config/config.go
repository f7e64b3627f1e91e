// Package config loads the mock server settings: built-in defaults, then an
// optional YAML file, then environment variables. The result is validated
// before use.
//
// The defaults describe a deliberately open mock: any CORS origin, no auth
// on the API. Do not reuse them for anything that faces real users.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr     string `yaml:"addr" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Faults    Faults    `yaml:"faults"`
	CORS      CORS      `yaml:"cors"`
	Metrics   Metrics   `yaml:"metrics"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

type Faults struct {
	MinDelay    time.Duration `yaml:"min_delay" validate:"gte=0"`
	MaxDelay    time.Duration `yaml:"max_delay" validate:"gtefield=MinDelay"`
	FailureRate float64       `yaml:"failure_rate" validate:"gte=0,lte=1"`
	// Seed fixes the random source; 0 picks a fresh seed per process.
	Seed uint64 `yaml:"seed"`
	// MaxTestDelay caps /api/test/delay/{seconds}.
	MaxTestDelay time.Duration `yaml:"max_test_delay" validate:"gt=0"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token" validate:"required_if=Enabled true"`
}

type RateLimit struct {
	// PerMinute of 0 disables the limiter.
	PerMinute int `yaml:"per_minute" validate:"gte=0"`
}

func Default() Config {
	return Config{
		Addr:     ":8000",
		LogLevel: "info",
		Faults: Faults{
			MinDelay:     50 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			FailureRate:  0.10,
			MaxTestDelay: 10 * time.Second,
		},
		CORS: CORS{AllowedOrigins: []string{"*"}},
	}
}

// Load builds the config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Addr = ":" + v
	}
	if v, ok := lookup("TEMPLATEMOCK_ADDR"); ok && v != "" {
		cfg.Addr = v
	}
	if v, ok := lookup("TEMPLATEMOCK_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("TEMPLATEMOCK_CORS_ORIGINS"); ok && v != "" {
		cfg.CORS.AllowedOrigins = splitCSV(v)
	}
	if v, ok := lookup("METRICS_TOKEN"); ok && v != "" {
		cfg.Metrics.Token = v
	}

	var err error
	set := func(key string, parse func(string) error) {
		v, ok := lookup(key)
		if !ok || v == "" || err != nil {
			return
		}
		if perr := parse(v); perr != nil {
			err = fmt.Errorf("env %s=%q: %w", key, v, perr)
		}
	}

	set("TEMPLATEMOCK_MIN_DELAY", durationInto(&cfg.Faults.MinDelay))
	set("TEMPLATEMOCK_MAX_DELAY", durationInto(&cfg.Faults.MaxDelay))
	set("TEMPLATEMOCK_MAX_TEST_DELAY", durationInto(&cfg.Faults.MaxTestDelay))
	set("TEMPLATEMOCK_FAILURE_RATE", func(s string) (e error) {
		cfg.Faults.FailureRate, e = strconv.ParseFloat(s, 64)
		return e
	})
	set("TEMPLATEMOCK_SEED", func(s string) (e error) {
		cfg.Faults.Seed, e = strconv.ParseUint(s, 10, 64)
		return e
	})
	set("TEMPLATEMOCK_RATE_LIMIT", func(s string) (e error) {
		cfg.RateLimit.PerMinute, e = strconv.Atoi(s)
		return e
	})
	set("METRICS_ENABLED", func(s string) (e error) {
		cfg.Metrics.Enabled, e = strconv.ParseBool(s)
		return e
	})

	return err
}

func durationInto(dst *time.Duration) func(string) error {
	return func(s string) error {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
