package viewstate

import "github.com/imuhira/listings/internal/storage/models"

// State is the coarse state of a view.
type State string

const (
	// StateEmpty means there is no active listing; the view shows a loading
	// placeholder and navigation does nothing.
	StateEmpty State = "empty"
	// StateLoaded means a listing is active.
	StateLoaded State = "loaded"
)

// FilterOption is one of the rent/sale toggle controls.
type FilterOption struct {
	Kind     models.ListingKind `json:"type"`
	Label    string             `json:"label"`
	Selected bool               `json:"selected"`
}

// View is an immutable snapshot of what a view should display.
type View struct {
	State              State              `json:"state"`
	Filter             models.ListingKind `json:"filter"`
	Filters            []FilterOption     `json:"filters"`
	ListingCount       int                `json:"listing_count"`
	ActiveListingIndex int                `json:"active_listing_index"`
	ActiveImageIndex   int                `json:"active_image_index"`
	ImageCount         int                `json:"image_count"`
	ActiveListing      *models.Listing    `json:"active_listing,omitempty"`
	ActiveImage        string             `json:"active_image,omitempty"`
	ActionLabel        string             `json:"action_label,omitempty"`
}

func (c *Controller) viewLocked() View {
	v := View{
		State:              StateEmpty,
		Filter:             c.filter,
		ListingCount:       len(c.listings),
		ActiveListingIndex: c.listingIdx,
		ActiveImageIndex:   c.imageIdx,
	}

	for _, kind := range models.ValidKinds {
		v.Filters = append(v.Filters, FilterOption{
			Kind:     kind,
			Label:    kind.Label(),
			Selected: kind == c.filter,
		})
	}

	if l := c.activeLocked(); l != nil {
		active := l.Clone()

		v.State = StateLoaded
		v.ActiveListing = &active
		v.ImageCount = len(l.Images)
		v.ActionLabel = l.Kind.ActionLabel()
		v.ActiveImage, _ = c.activeImageLocked()
	}

	return v
}
