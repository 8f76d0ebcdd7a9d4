// Package config loads auditfwd settings from flags, environment, dotenv and
// config files, and discovers the monitored hosts.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// EnvPrefix prefixes every environment variable auditfwd reads.
const EnvPrefix = "AUDITFWD"

// HostDefaults are applied to a host when neither its own settings nor the
// defaults section set a value.
var HostDefaults = struct {
	Dialect      string
	Library      string
	Journal      string
	PollInterval time.Duration
	BatchSize    int
	QueryTimeout time.Duration
}{
	Dialect:      "db2i",
	Library:      "QSYS",
	Journal:      "QAUDJRN",
	PollInterval: 60 * time.Second,
	BatchSize:    500,
	QueryTimeout: 2 * time.Minute,
}

// Common contains process-wide defaults.
var Common = struct {
	LogLevel       string
	LogFormat      string
	StateBackend   string
	ServiceName    string
	ServiceVersion string
}{
	LogLevel:       "info",
	LogFormat:      "auto",
	StateBackend:   "file",
	ServiceName:    "auditfwd",
	ServiceVersion: "dev",
}

// DefaultDataDir returns the default data directory (~/.auditfwd).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".auditfwd"
	}
	return filepath.Join(home, ".auditfwd")
}
