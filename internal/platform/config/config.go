// Package config builds the server configuration from an optional .env
// file overlaid with AEGIS_ prefixed environment variables, so main stays
// lean.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	guardconfig "aegis/internal/guard/config"
	"aegis/internal/guard/models"
	"aegis/pkg/secrets"
)

const envPrefix = "AEGIS_"

// Server captures process level configuration.
type Server struct {
	Addr              string
	LogLevel          string
	JWTSigningKey     string
	CSRFMaxAge        time.Duration
	SweepInterval     time.Duration
	ThrottlePerSecond int
	ThrottleBurst     int
	Limits            map[models.OperationKind]guardconfig.Limit
}

func defaults() Server {
	return Server{
		Addr:              ":8080",
		LogLevel:          "info",
		CSRFMaxAge:        30 * time.Minute,
		SweepInterval:     5 * time.Minute,
		ThrottlePerSecond: 1000,
		ThrottleBurst:     2000,
	}
}

// Load reads configuration from the .env file at envPath (skipped when the
// file does not exist) and then from AEGIS_ prefixed environment variables,
// which win. A missing JWT signing key gets a random per-process value so
// development setups work out of the box; production must set its own.
func Load(envPath string) (Server, error) {
	k := koanf.New(".")

	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := k.Load(file.Provider(envPath), dotenv.ParserEnv(envPrefix, ".", normalizeKey)); err != nil {
				return Server{}, fmt.Errorf("load %s: %w", envPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", normalizeKey), nil); err != nil {
		return Server{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := defaults()
	if v := k.String("addr"); v != "" {
		cfg.Addr = v
	}
	if v := k.String("log_level"); v != "" {
		cfg.LogLevel = v
	}
	cfg.JWTSigningKey = k.String("jwt_signing_key")
	if v := k.String("csrf_max_age"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Server{}, fmt.Errorf("csrf_max_age: %w", err)
		}
		cfg.CSRFMaxAge = d
	}
	if v := k.String("sweep_interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Server{}, fmt.Errorf("sweep_interval: %w", err)
		}
		cfg.SweepInterval = d
	}
	if k.Exists("throttle_per_second") {
		cfg.ThrottlePerSecond = k.Int("throttle_per_second")
	}
	if k.Exists("throttle_burst") {
		cfg.ThrottleBurst = k.Int("throttle_burst")
	}

	limits, err := loadLimits(k)
	if err != nil {
		return Server{}, err
	}
	cfg.Limits = limits

	if cfg.JWTSigningKey == "" {
		key, err := secrets.Generate()
		if err != nil {
			return Server{}, fmt.Errorf("generate signing key: %w", err)
		}
		cfg.JWTSigningKey = key
	}
	return cfg, nil
}

// loadLimits overlays per-operation rate limit overrides on the default
// table. Keys follow AEGIS_LIMIT_<OPERATION>_{WINDOW,MAX_ATTEMPTS,BLOCK},
// e.g. AEGIS_LIMIT_PROFILE_UPDATE_MAX_ATTEMPTS=20.
func loadLimits(k *koanf.Koanf) (map[models.OperationKind]guardconfig.Limit, error) {
	limits := guardconfig.Default().Limits
	for _, op := range models.Operations() {
		base := "limit_" + string(op)
		l := limits[op]

		if v := k.String(base + "_window"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s_window: %w", base, err)
			}
			l.Window = d
		}
		if k.Exists(base + "_max_attempts") {
			l.MaxAttempts = k.Int(base + "_max_attempts")
		}
		if v := k.String(base + "_block"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s_block: %w", base, err)
			}
			l.BlockDuration = d
		}
		limits[op] = l
	}
	return limits, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, envPrefix))
}
