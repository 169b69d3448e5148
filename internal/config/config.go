// Package config loads runtime configuration for the checkpoint CLI from
// environment variables, with an optional .env file for local use. It
// follows the teacher gateway's config.Load() shape: best-effort
// godotenv load, firstNonEmpty-style defaulting, then validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultLockTimeout = 10 * time.Second
	envWorkDir         = "CPT_WORKDIR"
	envVerbose         = "CPT_VERBOSE"
	envLockTimeout     = "CPT_LOCK_TIMEOUT"
)

// Config captures the CLI's runtime configuration.
type Config struct {
	// WorkDir is the directory in which the hidden ".cpt_" working
	// directory (holding the log file and snapshot files) is created.
	// Defaults to the current directory.
	WorkDir string

	// Verbose raises the log level to debug (source/checkpoint paths,
	// blake3 digests) instead of the default info level.
	Verbose bool

	// LockTimeout bounds how long fsio.Lock will poll a contended working
	// directory before giving up and returning fsio.ErrLockTimeout.
	LockTimeout time.Duration
}

// Load reads configuration from the environment, best-effort loading a
// .env file first so local runs don't require manual export.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	workDir := firstNonEmpty(os.Getenv(envWorkDir), ".")
	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("checkpoint: resolve %s: %w", envWorkDir, err)
	}

	cfg := Config{
		WorkDir:     absWorkDir,
		Verbose:     parseBoolEnv(envVerbose),
		LockTimeout: defaultLockTimeout,
	}

	if raw := strings.TrimSpace(os.Getenv(envLockTimeout)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("checkpoint: invalid %s=%q", envLockTimeout, raw)
		}
		cfg.LockTimeout = d
	}

	return cfg, nil
}

// LogFilePath returns the path to the checkpoint log inside WorkDir's
// hidden ".cpt_" working directory.
func (c Config) LogFilePath() string {
	return filepath.Join(c.WorkDir, ".cpt_", "CpLog")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBoolEnv(name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(name)))
	return err == nil && v
}
