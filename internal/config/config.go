package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds settings for both the relay and the headless client.
type Config struct {
	Addr      string
	StaticDir string
	Codec     string

	RateLimit        float64
	RateBurst        int
	RateLimitEnabled bool

	LogLevel  string
	LogFormat string

	ServerURL string
	Room      string
	Seed      uint64
}

func Default() Config {
	return Config{
		Addr:             ":3000",
		Codec:            "json",
		RateLimit:        100,
		RateBurst:        200,
		RateLimitEnabled: true,
		LogLevel:         "info",
		LogFormat:        "console",
		ServerURL:        "ws://localhost:3000/ws",
		Room:             "main",
	}
}

// Load reads the given .env files (".env" when none are named) and then the
// environment. A missing .env file is not an error; variables already set
// in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	parse := func(key string, fn func(string) error) {
		if v, ok := lookup(key); ok && v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("ROCKRELAY_ADDR", &cfg.Addr)
	str("ROCKRELAY_STATIC_DIR", &cfg.StaticDir)
	str("ROCKRELAY_CODEC", &cfg.Codec)
	str("ROCKRELAY_LOG_LEVEL", &cfg.LogLevel)
	str("ROCKRELAY_LOG_FORMAT", &cfg.LogFormat)
	str("ROCKRELAY_SERVER_URL", &cfg.ServerURL)
	str("ROCKRELAY_ROOM", &cfg.Room)

	parse("ROCKRELAY_RATE_LIMIT", func(v string) (err error) {
		cfg.RateLimit, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("ROCKRELAY_RATE_BURST", func(v string) (err error) {
		cfg.RateBurst, err = strconv.Atoi(v)
		return err
	})
	parse("ROCKRELAY_RATE_LIMIT_ENABLED", func(v string) (err error) {
		cfg.RateLimitEnabled, err = strconv.ParseBool(v)
		return err
	})
	parse("ROCKRELAY_SEED", func(v string) (err error) {
		cfg.Seed, err = strconv.ParseUint(v, 10, 64)
		return err
	})

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
