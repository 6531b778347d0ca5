// Package config loads sentryd's runtime configuration from environment
// variables, overlaying fixed defaults in the teacher's flat os.Getenv
// idiom (see cmd/entity-store in the reference pack).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/im-sham/ghost-sentry/internal/lattice"
)

// Config is sentryd's complete runtime configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string
	// DBPath is the sqlite database file, or ":memory:" for an ephemeral
	// in-process database.
	DBPath string
	// CORSOrigins is the set of origins the gateway's CORS middleware
	// allows; empty means no cross-origin access.
	CORSOrigins []string
	// SinkMode selects the lattice.Sink implementation: dev persists
	// locally and fans out on the event bus, prod encodes each publish for
	// LatticeEndpoint and only logs it (no network delivery).
	SinkMode lattice.Mode
	// LatticeEndpoint is required when SinkMode is prod.
	LatticeEndpoint string
}

// Default returns the configuration used when no environment variable
// overrides a field.
func Default() Config {
	return Config{
		Port:        "8080",
		DBPath:      "ghost-sentry.db",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:5174"},
		SinkMode:    lattice.ModeDev,
	}
}

// Load builds a Config from Default, overlaying any set environment
// variables: PORT, DB_PATH, CORS_ORIGINS (comma-separated), SINK_MODE
// (dev|prod), LATTICE_ENDPOINT. It returns an error for a malformed or
// unrecognized value rather than silently falling back to the default.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitTrim(v)
	}
	if v := os.Getenv("LATTICE_ENDPOINT"); v != "" {
		cfg.LatticeEndpoint = v
	}
	if v := os.Getenv("SINK_MODE"); v != "" {
		switch lattice.Mode(v) {
		case lattice.ModeDev, lattice.ModeProd:
			cfg.SinkMode = lattice.Mode(v)
		default:
			return Config{}, fmt.Errorf("config: unrecognized SINK_MODE %q", v)
		}
	}

	return cfg, nil
}

func splitTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParsePositiveInt parses a positive integer environment-variable value,
// rejecting zero, negative, and non-numeric input.
func ParsePositiveInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", name, value)
	}
	return n, nil
}
