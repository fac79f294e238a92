package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	is := is.New(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	is.NoErr(err)

	maxLifetime, err := cfg.GCMaxLifetime()
	is.NoErr(err)
	is.Equal(maxLifetime, 24*time.Minute)
}

func TestLoadConfigFromFile(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "sessions.yaml")
	is.NoErr(os.WriteFile(path, []byte("session:\n  gcMaxLifetime: 1h\n"), 0o600))

	cfg, err := loadConfig(path)
	is.NoErr(err)

	maxLifetime, err := cfg.GCMaxLifetime()
	is.NoErr(err)
	is.Equal(maxLifetime, time.Hour)
}
