package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/imuhira/listings/internal/storage/models"
)

// ErrNotFound is returned by mutations that target a listing that does not exist.
var ErrNotFound = errors.New("listing not found")

const listingColumns = `
	id, title, description, location, price, kind, like_count,
	bedroom_count, bathroom_count, area_size, is_active, is_featured,
	latitude, longitude, created_at, updated_at`

// ListingRepository provides data access for listings and their images and features.
type ListingRepository struct {
	BaseRepository
}

// NewListingRepository creates a new listing repository.
func NewListingRepository(db *DB) *ListingRepository {
	return &ListingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new listing. An empty ID is replaced with a generated one.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	if l.ID == "" {
		l.ID = GenerateID()
	}
	l.CreatedAt = r.Now()
	l.UpdatedAt = l.CreatedAt
	l.NormalizeFeatures()

	return r.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO listings (`+listingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			l.ID, l.Title, l.Description, l.Location, l.Price, l.Kind, l.LikeCount,
			l.BedroomCount, l.BathroomCount, l.AreaSize, l.IsActive, l.IsFeatured,
			l.Latitude, l.Longitude, l.CreatedAt, l.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting listing: %w", err)
		}
		return writeChildren(ctx, tx, l)
	})
}

// GetByID retrieves a listing by its ID. It returns nil when the listing does not exist.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing: %w", err)
	}

	if err := loadChildren(ctx, r.DB(), l); err != nil {
		return nil, err
	}
	return l, nil
}

// List retrieves the listings matching the filter, ordered by id.
func (r *ListingRepository) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings`
	var where []string
	var args []any

	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating listings: %w", err)
	}
	rows.Close()

	// children are loaded after the cursor is closed to keep the pool free
	for i := range listings {
		if err := loadChildren(ctx, r.DB(), &listings[i]); err != nil {
			return nil, err
		}
	}

	return listings, nil
}

// Update replaces every mutable field of an existing listing, including its
// images and features. LikeCount is preserved; use Like to change it.
func (r *ListingRepository) Update(ctx context.Context, l *models.Listing) error {
	l.UpdatedAt = r.Now()
	l.NormalizeFeatures()

	return r.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE listings SET
				title = ?, description = ?, location = ?, price = ?, kind = ?,
				bedroom_count = ?, bathroom_count = ?, area_size = ?,
				is_active = ?, is_featured = ?, latitude = ?, longitude = ?,
				updated_at = ?
			WHERE id = ?
		`,
			l.Title, l.Description, l.Location, l.Price, l.Kind,
			l.BedroomCount, l.BathroomCount, l.AreaSize,
			l.IsActive, l.IsFeatured, l.Latitude, l.Longitude,
			l.UpdatedAt, l.ID,
		)
		if err != nil {
			return fmt.Errorf("updating listing: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM listing_images WHERE listing_id = ?", l.ID); err != nil {
			return fmt.Errorf("clearing images: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM listing_features WHERE listing_id = ?", l.ID); err != nil {
			return fmt.Errorf("clearing features: %w", err)
		}
		return writeChildren(ctx, tx, l)
	})
}

// SetActive shows or hides a listing from live views.
func (r *ListingRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE listings SET is_active = ?, updated_at = ? WHERE id = ?
	`, active, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating listing activity: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Like increments the like counter and returns the new value.
func (r *ListingRepository) Like(ctx context.Context, id string) (int, error) {
	var likes int
	err := r.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE listings SET like_count = like_count + 1, updated_at = ? WHERE id = ?
		`, r.Now(), id)
		if err != nil {
			return fmt.Errorf("incrementing likes: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return tx.QueryRowContext(ctx, "SELECT like_count FROM listings WHERE id = ?", id).Scan(&likes)
	})
	return likes, err
}

// Delete removes a listing together with its images and features.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM listings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting listing: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByKind returns the number of active listings of every kind, including
// kinds with no listings.
func (r *ListingRepository) CountByKind(ctx context.Context) ([]models.KindCount, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM listings WHERE is_active = 1 GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("counting listings: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ListingKind]int)
	for rows.Next() {
		var kind models.ListingKind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]models.KindCount, 0, len(models.ValidKinds))
	for _, kind := range models.ValidKinds {
		result = append(result, models.KindCount{Kind: kind, Count: counts[kind]})
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	l := &models.Listing{}
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Location, &l.Price, &l.Kind, &l.LikeCount,
		&l.BedroomCount, &l.BathroomCount, &l.AreaSize, &l.IsActive, &l.IsFeatured,
		&l.Latitude, &l.Longitude, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func writeChildren(ctx context.Context, q Queryable, l *models.Listing) error {
	for i, ref := range l.Images {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO listing_images (listing_id, position, ref) VALUES (?, ?, ?)
		`, l.ID, i, ref); err != nil {
			return fmt.Errorf("inserting image %d: %w", i, err)
		}
	}
	for _, f := range l.Features {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO listing_features (listing_id, feature) VALUES (?, ?)
		`, l.ID, f); err != nil {
			return fmt.Errorf("inserting feature %q: %w", f, err)
		}
	}
	return nil
}

func loadChildren(ctx context.Context, q Queryable, l *models.Listing) error {
	images, err := queryStrings(ctx, q, `
		SELECT ref FROM listing_images WHERE listing_id = ? ORDER BY position
	`, l.ID)
	if err != nil {
		return fmt.Errorf("querying images for %s: %w", l.ID, err)
	}
	features, err := queryStrings(ctx, q, `
		SELECT feature FROM listing_features WHERE listing_id = ? ORDER BY feature
	`, l.ID)
	if err != nil {
		return fmt.Errorf("querying features for %s: %w", l.ID, err)
	}
	l.Images = images
	l.Features = features
	return nil
}

func queryStrings(ctx context.Context, q Queryable, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
