package config

import (
	"flag"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8099", cfg.Addr)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.ResyncInterval)
	assert.Equal(t, []string{"firebasestorage.googleapis.com"}, cfg.ImageHosts)
	assert.Equal(t, float64(20), cfg.CommandRate)
	assert.Equal(t, 10, cfg.CommandBurst)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LISTINGS_ADDR", ":9000")
	t.Setenv("LISTINGS_RESYNC_INTERVAL", "5s")
	t.Setenv("LISTINGS_IMAGE_HOSTS", "a.example.com, b.example.com")
	t.Setenv("LISTINGS_COMMAND_BURST", "not-a-number")
	t.Setenv("VERSION", "1.2.3")

	cfg := FromEnv()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ResyncInterval)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.ImageHosts)
	assert.Equal(t, 10, cfg.CommandBurst)
	assert.Equal(t, "1.2.3", cfg.Version)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("LISTINGS_DATA_DIR", "/env/data")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"-data", "/flag/data", "-image-hosts", "img.example.com", "-resync", "1m"})
	assert.Equal(t, nil, err)
	assert.Equal(t, "/flag/data", cfg.DataDir)
	assert.Equal(t, []string{"img.example.com"}, cfg.ImageHosts)
	assert.Equal(t, time.Minute, cfg.ResyncInterval)
	assert.Equal(t, ":8099", cfg.Addr)
}

func TestCommandLimitFlags(t *testing.T) {
	t.Setenv("LISTINGS_COMMAND_RATE", "5")
	t.Setenv("LISTINGS_COMMAND_BURST", "3")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := Load(fs, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 5.0, cfg.CommandRate)
	assert.Equal(t, 3, cfg.CommandBurst)

	fs = flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err = Load(fs, []string{"-command-rate", "0", "-command-burst", "40"})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0.0, cfg.CommandRate)
	assert.Equal(t, 40, cfg.CommandBurst)
}
