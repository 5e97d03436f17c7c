// Package main is the entry point for the listings server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/imuhira/listings/internal/api"
	"github.com/imuhira/listings/internal/config"
	"github.com/imuhira/listings/internal/feed"
	"github.com/imuhira/listings/internal/imagehost"
	"github.com/imuhira/listings/internal/storage"
	"github.com/imuhira/listings/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	defer glog.Flush()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Addr); err != nil {
			glog.Exitf("Health check failed: %v", err)
		}
		return
	}

	if cfg.Version == "dev" {
		cfg.Version = version
	}

	glog.Infof("Starting listings server (version: %s)...", cfg.Version)

	db, err := storage.OpenDataDir(cfg.DataDir)
	if err != nil {
		glog.Exitf("Failed to open database in %q: %v", cfg.DataDir, err)
	}
	defer db.Close()

	repo := storage.NewListingRepository(db)

	listingFeed := feed.New(repo)
	defer listingFeed.Close()

	resyncer := feed.NewResyncer(listingFeed, cfg.ResyncInterval)
	if err := resyncer.Start(); err != nil {
		glog.Warningf("Failed to start resync scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	router := api.NewRouter(api.Services{
		DB:          db,
		Listings:    repo,
		Feed:        listingFeed,
		Resyncer:    resyncer,
		Hub:         hub,
		ImagePolicy: imagehost.NewPolicy(cfg.ImageHosts),
		Limits: websocket.SessionLimits{
			Rate:  cfg.CommandRate,
			Burst: cfg.CommandBurst,
		},
		StaticDir: cfg.StaticDir,
		Version:   cfg.Version,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		glog.Infof("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			glog.Exitf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	glog.Info("Shutting down server...")

	websocket.NewEventBroadcaster(hub).BroadcastNotification("warning", "Server restarting", "Live updates will resume shortly")
	resyncer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("Server shutdown error: %v", err)
	}

	glog.Info("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	resp, err := http.Get("http://localhost" + addr + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
