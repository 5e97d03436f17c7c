package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/imuhira/listings/internal/api/middleware"
	"github.com/imuhira/listings/internal/imagehost"
	"github.com/imuhira/listings/internal/storage"
	"github.com/imuhira/listings/internal/storage/models"
	"github.com/imuhira/listings/internal/websocket"
)

// Notifier is told about every listing write so live queries refresh.
type Notifier interface {
	Notify()
}

// ListingRequest is the body accepted by create and update.
type ListingRequest struct {
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Location      string             `json:"location"`
	Price         float64            `json:"price"`
	Kind          models.ListingKind `json:"type"`
	Images        []string           `json:"images"`
	Features      []string           `json:"features"`
	BedroomCount  int                `json:"bedrooms"`
	BathroomCount int                `json:"bathrooms"`
	AreaSize      float64            `json:"size"`
	IsActive      *bool              `json:"isActive"`
	IsFeatured    bool               `json:"isFeatured"`
	Latitude      float64            `json:"latitude"`
	Longitude     float64            `json:"longitude"`
}

// toListing builds a listing from the request; listings are active unless
// the request says otherwise.
func (req *ListingRequest) toListing() *models.Listing {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.Listing{
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		Price:         req.Price,
		Kind:          req.Kind,
		Images:        req.Images,
		Features:      req.Features,
		BedroomCount:  req.BedroomCount,
		BathroomCount: req.BathroomCount,
		AreaSize:      req.AreaSize,
		IsActive:      active,
		IsFeatured:    req.IsFeatured,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	}
}

// ListListings returns listings, by default only active ones.
// Query parameters: type=rent|sale, include_inactive=true.
func ListListings(repo *storage.ListingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := models.ListingFilter{ActiveOnly: true}

		if kind := r.URL.Query().Get("type"); kind != "" {
			k, err := models.ParseListingKind(kind)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
				return
			}
			filter.Kind = k
		}
		if v := r.URL.Query().Get("include_inactive"); v != "" {
			all, err := strconv.ParseBool(v)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "include_inactive must be a boolean")
				return
			}
			filter.ActiveOnly = !all
		}

		listings, err := repo.List(r.Context(), filter)
		if err != nil {
			glog.Errorf("Listing query %s failed: %v", filter, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query listings")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, listings)
	}
}

// GetListing returns a single listing by ID.
func GetListing(repo *storage.ListingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		l, err := repo.GetByID(r.Context(), id)
		if err != nil {
			glog.Errorf("Loading listing %s failed: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load listing")
			return
		}
		if l == nil {
			middleware.WriteNotFound(w, id)
			return
		}

		middleware.WriteJSON(w, http.StatusOK, l)
	}
}

// CreateListing stores a new listing.
func CreateListing(repo *storage.ListingRepository, policy *imagehost.Policy, notifier Notifier, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := decodeListing(w, r, policy)
		if !ok {
			return
		}

		if err := repo.Create(r.Context(), l); err != nil {
			glog.Errorf("Creating listing failed: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create listing")
			return
		}

		glog.Infof("Created %s listing %s (%s)", l.Kind, l.ID, l.Title)
		notifier.Notify()
		events.BroadcastListingChanged(l, websocket.ListingCreated)

		middleware.WriteJSON(w, http.StatusCreated, l)
	}
}

// UpdateListing replaces a listing's fields, images and features.
func UpdateListing(repo *storage.ListingRepository, policy *imagehost.Policy, notifier Notifier, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		l, ok := decodeListing(w, r, policy)
		if !ok {
			return
		}
		l.ID = id

		err := repo.Update(r.Context(), l)
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteNotFound(w, id)
			return
		}
		if err != nil {
			glog.Errorf("Updating listing %s failed: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update listing")
			return
		}

		updated, err := repo.GetByID(r.Context(), id)
		if err != nil || updated == nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to reload listing")
			return
		}

		notifier.Notify()
		events.BroadcastListingChanged(updated, websocket.ListingUpdated)

		middleware.WriteJSON(w, http.StatusOK, updated)
	}
}

// DeleteListing removes a listing.
func DeleteListing(repo *storage.ListingRepository, notifier Notifier, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		err := repo.Delete(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteNotFound(w, id)
			return
		}
		if err != nil {
			glog.Errorf("Deleting listing %s failed: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete listing")
			return
		}

		glog.Infof("Deleted listing %s", id)
		notifier.Notify()
		events.BroadcastListingChanged(&models.Listing{ID: id}, websocket.ListingDeleted)

		w.WriteHeader(http.StatusNoContent)
	}
}

// LikeListing increments a listing's like counter.
func LikeListing(repo *storage.ListingRepository, notifier Notifier, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		likes, err := repo.Like(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteNotFound(w, id)
			return
		}
		if err != nil {
			glog.Errorf("Liking listing %s failed: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to like listing")
			return
		}

		notifier.Notify()
		events.BroadcastListingChanged(&models.Listing{ID: id, LikeCount: likes}, websocket.ListingLiked)

		middleware.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "likes": likes})
	}
}

// SetListingActive shows or hides a listing from live views.
func SetListingActive(repo *storage.ListingRepository, notifier Notifier, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req struct {
			Active *bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Body must be {\"active\": true|false}")
			return
		}

		err := repo.SetActive(r.Context(), id, *req.Active)
		if errors.Is(err, storage.ErrNotFound) {
			middleware.WriteNotFound(w, id)
			return
		}
		if err != nil {
			glog.Errorf("Updating activity of listing %s failed: %v", id, err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update listing")
			return
		}

		change := websocket.ListingDeactivated
		if *req.Active {
			change = websocket.ListingActivated
		}
		notifier.Notify()
		events.BroadcastListingChanged(&models.Listing{ID: id}, change)

		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeListing(w http.ResponseWriter, r *http.Request, policy *imagehost.Policy) (*models.Listing, bool) {
	var req ListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return nil, false
	}

	l := req.toListing()
	if err := l.Validate(); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
		return nil, false
	}
	if err := policy.CheckAll(l.Images); err != nil {
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, err.Error(),
			map[string]any{"allowed_hosts": policy.Hosts()})
		return nil, false
	}

	return l, true
}
