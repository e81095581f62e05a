package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatsync/seatsync/internal/model"
)

// DirectoryRepository reads institutions, users and venues from PostgreSQL.
type DirectoryRepository struct {
	db *pgxpool.Pool
}

// NewDirectoryRepository constructs a DirectoryRepository.
func NewDirectoryRepository(db *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// Institutions returns all institutions ordered by name.
func (r *DirectoryRepository) Institutions(ctx context.Context) ([]model.Institution, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, short_name, code FROM institutions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()

	var out []model.Institution
	for rows.Next() {
		var i model.Institution
		if err := rows.Scan(&i.ID, &i.Name, &i.ShortName, &i.Code); err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// Institution returns a single institution or ErrNotFound.
func (r *DirectoryRepository) Institution(ctx context.Context, id string) (*model.Institution, error) {
	var i model.Institution
	err := r.db.QueryRow(ctx,
		`SELECT id, name, short_name, code FROM institutions WHERE id = $1`, id,
	).Scan(&i.ID, &i.Name, &i.ShortName, &i.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get institution: %w", err)
	}
	return &i, nil
}

func (r *DirectoryRepository) scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.InstitutionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// User returns a single user or ErrNotFound.
func (r *DirectoryRepository) User(ctx context.Context, id string) (*model.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT id, name, email, role, institution_id FROM users WHERE id = $1`, id))
}

// UserByEmail looks a user up by email within one institution.
func (r *DirectoryRepository) UserByEmail(ctx context.Context, institutionID, email string) (*model.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT id, name, email, role, institution_id FROM users
		 WHERE institution_id = $1 AND lower(email) = lower($2)`,
		institutionID, email))
}

const venueColumns = `id, institution_id, name, capacity, location, floor, amenities`

func scanVenue(row pgx.Row) (*model.Venue, error) {
	var v model.Venue
	if err := row.Scan(&v.ID, &v.InstitutionID, &v.Name, &v.Capacity, &v.Location, &v.Floor, &v.Amenities); err != nil {
		return nil, err
	}
	return &v, nil
}

// Venues returns an institution's venues ordered by floor, then name.
func (r *DirectoryRepository) Venues(ctx context.Context, institutionID string) ([]model.Venue, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+venueColumns+` FROM venues
		 WHERE institution_id = $1
		 ORDER BY floor, name`,
		institutionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	defer rows.Close()

	var out []model.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Venue returns a single venue or ErrNotFound.
func (r *DirectoryRepository) Venue(ctx context.Context, id string) (*model.Venue, error) {
	v, err := scanVenue(r.db.QueryRow(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get venue: %w", err)
	}
	return v, nil
}
