// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/imuhira/listings/internal/api/handlers"
	"github.com/imuhira/listings/internal/api/middleware"
	"github.com/imuhira/listings/internal/feed"
	"github.com/imuhira/listings/internal/imagehost"
	"github.com/imuhira/listings/internal/storage"
	"github.com/imuhira/listings/internal/websocket"
)

// Services are the dependencies the routes are wired to.
type Services struct {
	DB          *storage.DB
	Listings    *storage.ListingRepository
	Feed        *feed.Feed
	Resyncer    *feed.Resyncer
	Hub         *websocket.Hub
	ImagePolicy *imagehost.Policy
	Limits      websocket.SessionLimits
	StaticDir   string
	Version     string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	events := websocket.NewEventBroadcaster(s.Hub)

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.DB, s.Listings, s.Feed, s.Resyncer, s.Hub, s.Version)).Methods("GET")

	// Live listing view
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub, s.Feed, s.Limits)).Methods("GET")

	// Listing endpoints
	api.HandleFunc("/listings", handlers.ListListings(s.Listings)).Methods("GET")
	api.HandleFunc("/listings", handlers.CreateListing(s.Listings, s.ImagePolicy, s.Feed, events)).Methods("POST")
	api.HandleFunc("/listings/{id}", handlers.GetListing(s.Listings)).Methods("GET")
	api.HandleFunc("/listings/{id}", handlers.UpdateListing(s.Listings, s.ImagePolicy, s.Feed, events)).Methods("PUT")
	api.HandleFunc("/listings/{id}", handlers.DeleteListing(s.Listings, s.Feed, events)).Methods("DELETE")
	api.HandleFunc("/listings/{id}/like", handlers.LikeListing(s.Listings, s.Feed, events)).Methods("POST")
	api.HandleFunc("/listings/{id}/active", handlers.SetListingActive(s.Listings, s.Feed, events)).Methods("PUT")

	r.HandleFunc("/dashboard", handlers.Dashboard(s.Listings)).Methods("GET")

	// Serve static frontend files
	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
