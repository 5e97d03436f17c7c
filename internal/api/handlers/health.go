// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/imuhira/listings/internal/api/middleware"
	"github.com/imuhira/listings/internal/feed"
	"github.com/imuhira/listings/internal/storage"
	"github.com/imuhira/listings/internal/storage/models"
	"github.com/imuhira/listings/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		middleware.WriteJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	Version        string             `json:"version"`
	SchemaVersion  int                `json:"schema_version"`
	Clients        int                `json:"clients"`
	LiveQueries    int                `json:"live_queries"`
	ActiveListings []models.KindCount `json:"active_listings"`
	ResyncInterval string             `json:"resync_interval"`
	NextResyncAt   string             `json:"next_resync_at,omitempty"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, repo *storage.ListingRepository, f *feed.Feed, resyncer *feed.Resyncer, hub *websocket.Hub, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := repo.CountByKind(r.Context())
		if err != nil {
			glog.Errorf("Counting listings failed: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to count listings")
			return
		}

		schema, err := storage.SchemaVersion(r.Context(), db)
		if err != nil {
			glog.Errorf("Reading schema version failed: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to read schema version")
			return
		}

		response := StatusResponse{
			Version:        version,
			SchemaVersion:  schema,
			Clients:        hub.ClientCount(),
			LiveQueries:    f.Count(),
			ActiveListings: counts,
		}
		if resyncer != nil {
			response.ResyncInterval = resyncer.Interval().String()
			if next := resyncer.NextRun(); next != nil {
				response.NextResyncAt = next.UTC().Format(time.RFC3339)
			}
		}

		middleware.WriteJSON(w, http.StatusOK, response)
	}
}
