// Package repository implements storage for the booking ledger and the
// reference data it consults. Every store has an in-memory and a PostgreSQL
// implementation; PostgreSQL access uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatsync/seatsync/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a booking would overlap an occupied slot.
var ErrConflict = errors.New("venue is already booked for this time slot")

// ErrInvalidTransition is returned when a booking can't move to the
// requested status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ConflictError lists the dates on which an insert collided. It matches
// ErrConflict with errors.Is.
type ConflictError struct {
	Dates []model.Date
}

func (e *ConflictError) Error() string {
	if len(e.Dates) <= 1 {
		return ErrConflict.Error()
	}
	days := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		days[i] = d.String()
	}
	return fmt.Sprintf("%s on %s", ErrConflict, strings.Join(days, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func transitionError(from, to model.Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// collisions returns the dates of candidates that collide with stored
// bookings or with an earlier candidate of the same batch.
func collisions(stored []model.Booking, candidates []model.Booking) []model.Date {
	var dates []model.Date
	for i := range candidates {
		c := &candidates[i]
		hit := false
		for j := range stored {
			if stored[j].Collides(c) {
				hit = true
				break
			}
		}
		for j := 0; !hit && j < i; j++ {
			hit = candidates[j].Collides(c)
		}
		if hit {
			dates = append(dates, c.Date)
		}
	}
	return dates
}

const bookingColumns = `id, user_id, venue_id, institution_id, series_id, purpose,
	date, start_minute, end_minute, status, created_at`

// BookingRepository is the PostgreSQL booking ledger.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b          model.Booking
		day        time.Time
		start, end int
		status     string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.VenueID, &b.InstitutionID, &b.SeriesID, &b.Purpose,
		&day, &start, &end, &status, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Date = model.DateOf(day)
	b.Status = model.Status(status)
	b.StartTime = model.Clock(start)
	b.EndTime = model.Clock(end)
	return &b, nil
}

// List returns all bookings of an institution ordered by date and start
// time.
func (r *BookingRepository) List(ctx context.Context, institutionID string) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE institution_id = $1
		 ORDER BY date, start_minute, created_at`,
		institutionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Get returns a single booking or ErrNotFound.
func (r *BookingRepository) Get(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

const conflictQuery = `SELECT EXISTS (
	SELECT 1 FROM bookings
	WHERE institution_id = $1 AND venue_id = $2 AND date = $3
	  AND status <> 'CANCELLED'
	  AND start_minute < $5 AND end_minute > $4)`

// HasConflict reports whether a non-cancelled booking overlaps the slot.
func (r *BookingRepository) HasConflict(ctx context.Context, institutionID, venueID string, date model.Date, start, end model.Clock) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, conflictQuery,
		institutionID, venueID, date.Time(), int(start), int(end),
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check conflict: %w", err)
	}
	return taken, nil
}

// Insert stores all bookings or none of them.
//
// Two requests for the same slot that both check first and insert second
// would each see a free slot and double-book it. The institution row is
// therefore locked with SELECT … FOR UPDATE before any check runs, so
// concurrent inserts for one institution queue up behind each other and
// every check sees the previous insert's rows.
func (r *BookingRepository) Insert(ctx context.Context, institutionID string, bookings []model.Booking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx,
		`SELECT id FROM institutions WHERE id = $1 FOR UPDATE`,
		institutionID,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock institution row: %w", err)
	}

	var clashes []model.Date
	for i := range bookings {
		b := &bookings[i]
		var taken bool
		if err := tx.QueryRow(ctx, conflictQuery,
			institutionID, b.VenueID, b.Date.Time(), int(b.StartTime), int(b.EndTime),
		).Scan(&taken); err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if taken || len(collisions(bookings[:i], bookings[i:i+1])) > 0 {
			clashes = append(clashes, b.Date)
		}
	}
	if len(clashes) > 0 {
		return &ConflictError{Dates: clashes}
	}

	for i := range bookings {
		b := &bookings[i]
		_, err := tx.Exec(ctx,
			`INSERT INTO bookings (`+bookingColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			b.ID, b.UserID, b.VenueID, institutionID, b.SeriesID, b.Purpose,
			b.Date.Time(), int(b.StartTime), int(b.EndTime), string(b.Status), b.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateStatus moves a booking to a new status. The row is locked while the
// transition is checked so two admins can't act on a stale status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock booking row: %w", err)
	}
	if !b.Status.CanTransition(to) {
		return nil, transitionError(b.Status, to)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE bookings SET status = $2 WHERE id = $1`, id, string(to),
	); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	b.Status = to
	return b, nil
}
