package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPort is used when PORT is unset or cannot be parsed.
const DefaultPort = 5000

type Config struct {
	Port            int
	MetricsAddr     string
	RateLimitRPS    float64
	RateLimitBurst  int
	TrustProxy      bool
	LogRequests     bool
	ShutdownTimeout time.Duration

	// Warnings lists settings that were malformed and replaced by their default.
	Warnings []string
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func Default() Config {
	return Config{
		Port:            DefaultPort,
		MetricsAddr:     "",
		RateLimitRPS:    0,
		RateLimitBurst:  0,
		TrustProxy:      false,
		LogRequests:     true,
		ShutdownTimeout: 5 * time.Second,
	}
}

// ListenAddr is the address the responder binds, on all interfaces.
func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// RateLimitEnabled reports whether the per-IP limiter stage is installed.
func (c Config) RateLimitEnabled() bool {
	return c.RateLimitRPS > 0
}

func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Config from the given lookup. PORT is lenient: anything
// that is not a valid TCP port falls back to DefaultPort and is recorded in
// Warnings. The remaining settings fail fast on malformed input.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if raw, ok := get(lookup, "PORT"); ok {
		port, err := parsePort(raw)
		if err != nil {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("PORT %q: %v, using %d", raw, err, DefaultPort))
		} else {
			cfg.Port = port
		}
	}

	if addr, ok := get(lookup, "METRICS_ADDR"); ok {
		cfg.MetricsAddr = addr
	}

	if raw, ok := get(lookup, "RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", raw)
		}
		cfg.RateLimitRPS = rps
	}

	if raw, ok := get(lookup, "RATE_LIMIT_BURST"); ok {
		burst, err := strconv.Atoi(raw)
		if err != nil || burst < 1 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q", raw)
		}
		cfg.RateLimitBurst = burst
	}
	if cfg.RateLimitEnabled() && cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = max(1, int(2*cfg.RateLimitRPS))
	}

	if raw, ok := get(lookup, "TRUST_PROXY"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUST_PROXY %q", raw)
		}
		cfg.TrustProxy = v
	}

	if raw, ok := get(lookup, "LOG_REQUESTS"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_REQUESTS %q", raw)
		}
		cfg.LogRequests = v
	}

	if raw, ok := get(lookup, "SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", raw)
		}
		cfg.ShutdownTimeout = d
	}

	return &cfg, nil
}

// get treats empty values as unset.
func get(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("not an integer")
	}
	if port < 1 || port > 65535 {
		return 0, errors.New("out of range")
	}
	return port, nil
}
