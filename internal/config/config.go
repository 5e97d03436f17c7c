// Package config loads server configuration from .env, the environment and flags.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/joho/godotenv"

	"github.com/imuhira/listings/internal/feed"
	"github.com/imuhira/listings/internal/imagehost"
)

// Config holds the server configuration.
type Config struct {
	Addr      string
	DataDir   string
	StaticDir string

	ResyncInterval time.Duration
	ImageHosts     []string

	// per-connection command limiter
	CommandRate  float64
	CommandBurst int

	// build or container label, environment only
	Version string
}

// Load reads .env (if present) and the environment, then lets command-line
// flags in fs override the result. fs must not have been parsed yet.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		glog.V(1).Infof("[config] no .env file, using process environment")
	}

	cfg := FromEnv()

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Data directory for the SQLite database")
	fs.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Directory for static frontend files")
	fs.DurationVar(&cfg.ResyncInterval, "resync", cfg.ResyncInterval, "Interval between live query refreshes")
	fs.Float64Var(&cfg.CommandRate, "command-rate", cfg.CommandRate, "Navigation commands per second allowed per connection (0 disables the limit)")
	fs.IntVar(&cfg.CommandBurst, "command-burst", cfg.CommandBurst, "Burst of navigation commands allowed per connection")
	hosts := fs.String("image-hosts", strings.Join(cfg.ImageHosts, ","), "Comma-separated allowed image hosts")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.ImageHosts = splitList(*hosts)

	return cfg, nil
}

// FromEnv builds a configuration from environment variables and defaults.
func FromEnv() *Config {
	return &Config{
		Addr:           getEnv("LISTINGS_ADDR", ":8099"),
		DataDir:        getEnv("LISTINGS_DATA_DIR", "/data"),
		StaticDir:      getEnv("LISTINGS_STATIC_DIR", "./static"),
		ResyncInterval: getEnvDuration("LISTINGS_RESYNC_INTERVAL", feed.DefaultResyncInterval),
		ImageHosts:     getEnvList("LISTINGS_IMAGE_HOSTS", imagehost.DefaultHosts),
		CommandRate:    getEnvFloat("LISTINGS_COMMAND_RATE", 20),
		CommandBurst:   getEnvInt("LISTINGS_COMMAND_BURST", 10),
		Version:        getEnv("VERSION", "dev"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		glog.Warningf("[config] %s=%q is not an integer, using %d", key, val, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
		glog.Warningf("[config] %s=%q is not a number, using %g", key, val, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
		glog.Warningf("[config] %s=%q is not a duration, using %s", key, val, fallback)
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if val, ok := os.LookupEnv(key); ok {
		return splitList(val)
	}
	return append([]string(nil), fallback...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
