package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envWorkDir, envVerbose, envLockTimeout} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			t.Cleanup(func() { os.Setenv(k, old) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Verbose {
		t.Fatal("Verbose defaulted to true")
	}
	if cfg.LockTimeout != defaultLockTimeout {
		t.Fatalf("LockTimeout = %v, want %v", cfg.LockTimeout, defaultLockTimeout)
	}
	wantSuffix := string(filepath.Separator) + "CpLog"
	if got := cfg.LogFilePath(); len(got) < len(wantSuffix) || got[len(got)-len(wantSuffix):] != wantSuffix {
		t.Fatalf("LogFilePath() = %q, want suffix %q", got, wantSuffix)
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.Setenv(envWorkDir, dir)
	os.Setenv(envVerbose, "true")
	os.Setenv(envLockTimeout, "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Verbose {
		t.Fatal("Verbose = false, want true")
	}
	if cfg.LockTimeout != 30*time.Second {
		t.Fatalf("LockTimeout = %v, want 30s", cfg.LockTimeout)
	}
	abs, _ := filepath.Abs(dir)
	if cfg.WorkDir != abs {
		t.Fatalf("WorkDir = %q, want %q", cfg.WorkDir, abs)
	}
}

func TestLoadRejectsInvalidLockTimeout(t *testing.T) {
	clearEnv(t)
	os.Setenv(envLockTimeout, "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("Load with invalid lock timeout returned nil error")
	}
}
