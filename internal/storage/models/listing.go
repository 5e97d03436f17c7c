// Package models contains the domain models for the application.
package models

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// ListingKind identifies whether a listing is offered for rent or for sale.
type ListingKind string

const (
	KindRent ListingKind = "rent"
	KindSale ListingKind = "sale"
)

// DefaultKind is the filter a new view starts with.
const DefaultKind = KindSale

// ValidKinds is the set of allowed listing kinds.
var ValidKinds = []ListingKind{KindRent, KindSale}

// IsValid checks if a listing kind is recognized.
func (k ListingKind) IsValid() bool {
	for _, v := range ValidKinds {
		if k == v {
			return true
		}
	}
	return false
}

// Label returns the filter control label for the kind.
func (k ListingKind) Label() string {
	switch k {
	case KindRent:
		return "Rent"
	case KindSale:
		return "Buy"
	default:
		return string(k)
	}
}

// ActionLabel returns the call-to-action label shown on a listing of this kind.
func (k ListingKind) ActionLabel() string {
	switch k {
	case KindRent:
		return "Rent Now"
	case KindSale:
		return "Buy Now"
	default:
		return ""
	}
}

// ParseListingKind converts user input into a ListingKind.
func ParseListingKind(s string) (ListingKind, error) {
	k := ListingKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown listing kind %q (use 'rent' or 'sale')", s)
	}
	return k, nil
}

// Listing is a single property entry offered for rent or sale.
type Listing struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Location      string      `json:"location"`
	Price         float64     `json:"price"`
	Kind          ListingKind `json:"type"`
	Images        []string    `json:"images"`
	LikeCount     int         `json:"likes"`
	Features      []string    `json:"features"`
	BedroomCount  int         `json:"bedrooms"`
	BathroomCount int         `json:"bathrooms"`
	AreaSize      float64     `json:"size"`
	IsActive      bool        `json:"isActive"`
	IsFeatured    bool        `json:"isFeatured"`
	Latitude      float64     `json:"latitude"`
	Longitude     float64     `json:"longitude"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Validate reports the first problem that makes the listing unfit for storage.
func (l *Listing) Validate() error {
	switch {
	case strings.TrimSpace(l.Title) == "":
		return errors.New("title is required")
	case !l.Kind.IsValid():
		return fmt.Errorf("type must be 'rent' or 'sale', got %q", l.Kind)
	case l.Price < 0:
		return errors.New("price must not be negative")
	case l.LikeCount < 0:
		return errors.New("likes must not be negative")
	case l.BedroomCount < 0 || l.BathroomCount < 0:
		return errors.New("bedroom and bathroom counts must not be negative")
	case l.AreaSize < 0:
		return errors.New("size must not be negative")
	case l.Latitude < -90 || l.Latitude > 90:
		return errors.New("latitude must be within [-90, 90]")
	case l.Longitude < -180 || l.Longitude > 180:
		return errors.New("longitude must be within [-180, 180]")
	}
	for i, img := range l.Images {
		if strings.TrimSpace(img) == "" {
			return fmt.Errorf("image %d is empty", i)
		}
	}
	return nil
}

// Equal reports whether two listings carry the same content.
func (l *Listing) Equal(o *Listing) bool {
	return l.ID == o.ID &&
		l.Title == o.Title &&
		l.Description == o.Description &&
		l.Location == o.Location &&
		l.Price == o.Price &&
		l.Kind == o.Kind &&
		l.LikeCount == o.LikeCount &&
		l.BedroomCount == o.BedroomCount &&
		l.BathroomCount == o.BathroomCount &&
		l.AreaSize == o.AreaSize &&
		l.IsActive == o.IsActive &&
		l.IsFeatured == o.IsFeatured &&
		l.Latitude == o.Latitude &&
		l.Longitude == o.Longitude &&
		l.CreatedAt.Equal(o.CreatedAt) &&
		l.UpdatedAt.Equal(o.UpdatedAt) &&
		slices.Equal(l.Images, o.Images) &&
		slices.Equal(l.Features, o.Features)
}

// Clone returns a copy that shares no slices with l.
func (l *Listing) Clone() Listing {
	c := *l
	c.Images = slices.Clone(l.Images)
	c.Features = slices.Clone(l.Features)
	return c
}

// SameListings reports whether two result sets hold equal listings in the
// same order.
func SameListings(a, b []Listing) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}

// NormalizeFeatures trims, deduplicates and sorts the feature tags.
func (l *Listing) NormalizeFeatures() {
	seen := make(map[string]bool, len(l.Features))
	out := make([]string, 0, len(l.Features))
	for _, f := range l.Features {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	l.Features = out
}

// ListingFilter selects listings from the store.
// A zero Kind matches every kind.
type ListingFilter struct {
	Kind       ListingKind
	ActiveOnly bool
}

// ActiveOfKind is the filter used by live views: active listings of one kind.
func ActiveOfKind(kind ListingKind) ListingFilter {
	return ListingFilter{Kind: kind, ActiveOnly: true}
}

// Matches reports whether the listing satisfies the filter.
func (f ListingFilter) Matches(l *Listing) bool {
	if f.ActiveOnly && !l.IsActive {
		return false
	}
	if f.Kind != "" && l.Kind != f.Kind {
		return false
	}
	return true
}

// String renders the filter for logs.
func (f ListingFilter) String() string {
	kind := string(f.Kind)
	if kind == "" {
		kind = "*"
	}
	if f.ActiveOnly {
		return "active/" + kind
	}
	return "all/" + kind
}

// KindCount is the number of active listings of one kind.
type KindCount struct {
	Kind  ListingKind `json:"type"`
	Count int         `json:"count"`
}
