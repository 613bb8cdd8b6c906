package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/filter"
	"carma_backend/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listingColumns = `
	id, COALESCE(make, ''), COALESCE(model, ''), registration_year, COALESCE(first_registration_raw, ''),
	COALESCE(fuel_type, ''), COALESCE(transmission, ''), COALESCE(body_type, ''),
	COALESCE(exterior_color, ''), COALESCE(interior_color, ''),
	mileage_km, COALESCE(mileage_raw, ''), price_eur::float8, COALESCE(price_raw, ''),
	power_kw::float8, COALESCE(power_raw, ''), is_available,
	COALESCE(description, ''), COALESCE(listing_url, ''), COALESCE(data_source, ''), images, updated_at`

// Postgres implements Store on a pgx connection pool. Every query runs under
// its own timeout; pool acquisition and release are handled by pgxpool.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	log     *logger.Logger
}

// NewPostgres creates a Postgres-backed listing store.
func NewPostgres(pool *pgxpool.Pool, timeout time.Duration, log *logger.Logger) *Postgres {
	return &Postgres{pool: pool, timeout: timeout, log: log}
}

// Compile-time check that Postgres implements Store.
var _ Store = (*Postgres)(nil)

// GetByID retrieves a listing by id regardless of availability.
func (r *Postgres) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + listingColumns + ` FROM vehicle_listings WHERE id = $1`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, ErrNotFound
		}
		return domain.Listing{}, r.unavailable("get listing by id", err)
	}
	return l, nil
}

// Query retrieves available listings matching the predicate. Numeric ranges
// also let through rows whose typed column is empty but whose raw text is
// set; the caller normalizes and re-checks those.
func (r *Postgres) Query(ctx context.Context, p filter.Predicate, limit int) ([]domain.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query, args := buildCandidateQuery(p, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, r.unavailable("query candidates", err)
	}
	defer rows.Close()

	listings := make([]domain.Listing, 0, limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, r.unavailable("scan candidate", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, r.unavailable("iterate candidates", err)
	}
	return listings, nil
}

// CountAvailable returns the number of available listings.
func (r *Postgres) CountAvailable(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicle_listings WHERE is_available`).Scan(&count); err != nil {
		return 0, r.unavailable("count available listings", err)
	}
	return count, nil
}

// ListAvailableIDs pages through available listing ids in id order.
func (r *Postgres) ListAvailableIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id FROM vehicle_listings
		WHERE is_available AND id > $1
		ORDER BY id ASC
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, r.unavailable("list available ids", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, r.unavailable("collect available ids", err)
	}
	return ids, nil
}

func (r *Postgres) unavailable(op string, err error) error {
	if r.log != nil {
		r.log.DatabaseError(op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func buildCandidateQuery(p filter.Predicate, limit int) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "is_available")
	where = append(where, "carma_norm(make) = "+arg(p.Make))
	where = append(where, "carma_norm(model) = "+arg(p.Model))
	if p.ExcludeID != "" {
		where = append(where, "id <> "+arg(p.ExcludeID))
	}

	for _, eq := range []struct{ column, value string }{
		{"fuel_type", p.FuelType},
		{"transmission", p.Transmission},
		{"body_type", p.BodyType},
		{"exterior_color", p.ExteriorColor},
	} {
		if eq.value != "" {
			where = append(where, fmt.Sprintf("carma_norm(%s) = %s", eq.column, arg(eq.value)))
		}
	}

	if p.YearMin != nil && p.YearMax != nil {
		where = append(where, fmt.Sprintf(
			"(registration_year BETWEEN %s AND %s OR (registration_year IS NULL AND COALESCE(first_registration_raw, '') <> ''))",
			arg(*p.YearMin), arg(*p.YearMax)))
	}
	if p.MileageMax != nil {
		where = append(where, fmt.Sprintf(
			"(mileage_km <= %s OR (mileage_km IS NULL AND COALESCE(mileage_raw, '') <> ''))",
			arg(*p.MileageMax)))
	}
	if p.PriceMin != nil && p.PriceMax != nil {
		where = append(where, fmt.Sprintf(
			"(price_eur BETWEEN %s AND %s OR (price_eur IS NULL AND COALESCE(price_raw, '') <> ''))",
			arg(*p.PriceMin), arg(*p.PriceMax)))
	}
	if p.PowerMin != nil && p.PowerMax != nil {
		where = append(where, fmt.Sprintf(
			"(power_kw IS NULL OR power_kw BETWEEN %s AND %s)",
			arg(*p.PowerMin), arg(*p.PowerMax)))
	}

	query := `SELECT ` + listingColumns + `
		FROM vehicle_listings
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY price_eur ASC NULLS LAST, mileage_km ASC NULLS LAST, id ASC
		LIMIT ` + arg(limit)

	return query, args
}

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(
		&l.ID, &l.Make, &l.Model, &l.RegistrationYear, &l.FirstRegistrationRaw,
		&l.FuelType, &l.Transmission, &l.BodyType,
		&l.ExteriorColor, &l.InteriorColor,
		&l.MileageKM, &l.MileageRaw, &l.PriceEUR, &l.PriceRaw,
		&l.PowerKW, &l.PowerRaw, &l.Available,
		&l.Description, &l.ListingURL, &l.DataSource, &l.Images, &l.UpdatedAt,
	)
	return l, err
}
