// Package service implements booking rules, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seatsync/seatsync/internal/model"
	"github.com/seatsync/seatsync/internal/repository"
	"github.com/seatsync/seatsync/internal/schedule"
)

// ErrValidation is returned for malformed requests.
var ErrValidation = errors.New("validation failed")

// ErrForbidden is returned when the requester's role does not allow the
// operation.
var ErrForbidden = errors.New("not authorized")

// BookingLedger stores bookings per institution. Insert must check and
// append under one lock per institution and store all bookings or none.
type BookingLedger interface {
	List(ctx context.Context, institutionID string) ([]model.Booking, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	HasConflict(ctx context.Context, institutionID, venueID string, date model.Date, start, end model.Clock) (bool, error)
	Insert(ctx context.Context, institutionID string, bookings []model.Booking) error
	UpdateStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error)
}

// Directory resolves institutions and users.
type Directory interface {
	Institutions(ctx context.Context) ([]model.Institution, error)
	Institution(ctx context.Context, id string) (*model.Institution, error)
	User(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, institutionID, email string) (*model.User, error)
}

// VenueCatalog resolves venues.
type VenueCatalog interface {
	Venues(ctx context.Context, institutionID string) ([]model.Venue, error)
	Venue(ctx context.Context, id string) (*model.Venue, error)
}

// BookingService orchestrates booking operations.
type BookingService struct {
	ledger    BookingLedger
	directory Directory
	venues    VenueCatalog
	validate  *validator.Validate
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewBookingService constructs a BookingService with its dependencies.
func NewBookingService(ledger BookingLedger, directory Directory, venues VenueCatalog, logger *zap.Logger) *BookingService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &BookingService{
		ledger:    ledger,
		directory: directory,
		venues:    venues,
		validate:  v,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// check runs struct validation and turns the failures into one readable
// message.
func (s *BookingService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalid("%v", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return invalid("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "datetime":
		if fe.Param() == model.ClockLayout {
			return fe.Field() + " must be a time in HH:MM format"
		}
		return fe.Field() + " must be a date in YYYY-MM-DD format"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// slot is a parsed, validated date and time range.
type slot struct {
	date       model.Date
	start, end model.Clock
}

func parseSlot(date, start, end string) (slot, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return slot{}, invalid("%v", err)
	}
	st, err := model.ParseClock(start)
	if err != nil {
		return slot{}, invalid("%v", err)
	}
	et, err := model.ParseClock(end)
	if err != nil {
		return slot{}, invalid("%v", err)
	}
	if st >= et {
		return slot{}, invalid("end time must be after start time")
	}
	return slot{date: d, start: st, end: et}, nil
}

func (s *BookingService) requireInstitution(ctx context.Context, id string) error {
	if _, err := s.directory.Institution(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("institution %s: %w", id, repository.ErrNotFound)
		}
		return fmt.Errorf("get institution: %w", err)
	}
	return nil
}

// venueIn returns the venue if it belongs to the institution. Venues of
// other institutions are reported as not found.
func (s *BookingService) venueIn(ctx context.Context, institutionID, venueID string) (*model.Venue, error) {
	v, err := s.venues.Venue(ctx, venueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("venue %s: %w", venueID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("get venue: %w", err)
	}
	if v.InstitutionID != institutionID {
		return nil, fmt.Errorf("venue %s: %w", venueID, repository.ErrNotFound)
	}
	return v, nil
}

// ListInstitutions returns every institution.
func (s *BookingService) ListInstitutions(ctx context.Context) ([]model.Institution, error) {
	return s.directory.Institutions(ctx)
}

// ResolveUser returns the directory entry for a user id.
func (s *BookingService) ResolveUser(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("user id is required")
	}
	return s.directory.User(ctx, id)
}

// FindUser looks up a user by email within an institution.
func (s *BookingService) FindUser(ctx context.Context, institutionID, email string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid("email is required")
	}
	if err := s.requireInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	u, err := s.directory.UserByEmail(ctx, institutionID, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", email, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// ListVenues returns the venues of an institution.
func (s *BookingService) ListVenues(ctx context.Context, institutionID string) ([]model.Venue, error) {
	if err := s.requireInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.venues.Venues(ctx, institutionID)
}

// ListBookings returns the bookings of an institution.
func (s *BookingService) ListBookings(ctx context.Context, institutionID string) ([]model.Booking, error) {
	if err := s.requireInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, institutionID)
}

// PendingBookings returns the approval queue of an institution.
func (s *BookingService) PendingBookings(ctx context.Context, institutionID string) ([]model.Booking, error) {
	all, err := s.ListBookings(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	var pending []model.Booking
	for _, b := range all {
		if b.Status == model.StatusPending {
			pending = append(pending, b)
		}
	}
	return pending, nil
}

// CheckConflict reports whether the slot is occupied.
func (s *BookingService) CheckConflict(ctx context.Context, institutionID string, q model.ConflictQuery) (bool, error) {
	if err := s.check(q); err != nil {
		return false, err
	}
	sl, err := parseSlot(q.Date, q.StartTime, q.EndTime)
	if err != nil {
		return false, err
	}
	if err := s.requireInstitution(ctx, institutionID); err != nil {
		return false, err
	}
	if _, err := s.venueIn(ctx, institutionID, q.VenueID); err != nil {
		return false, err
	}
	return s.ledger.HasConflict(ctx, institutionID, q.VenueID, sl.date, sl.start, sl.end)
}

// Availability reports every venue of the institution as available or
// taken for the slot.
func (s *BookingService) Availability(ctx context.Context, institutionID string, q model.AvailabilityQuery) ([]model.VenueAvailability, error) {
	if err := s.check(q); err != nil {
		return nil, err
	}
	sl, err := parseSlot(q.Date, q.StartTime, q.EndTime)
	if err != nil {
		return nil, err
	}
	venues, err := s.ListVenues(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	out := make([]model.VenueAvailability, 0, len(venues))
	for _, v := range venues {
		taken, err := s.ledger.HasConflict(ctx, institutionID, v.ID, sl.date, sl.start, sl.end)
		if err != nil {
			return nil, err
		}
		status := model.SlotAvailable
		if taken {
			status = model.SlotTaken
		}
		out = append(out, model.VenueAvailability{Venue: v, Status: status})
	}
	return out, nil
}

func authorizeBooking(requester *model.User) error {
	if requester == nil {
		return fmt.Errorf("%w: requester is required", ErrForbidden)
	}
	if !requester.Role.CanBook() {
		return fmt.Errorf("%w: students are not authorized to book venues", ErrForbidden)
	}
	return nil
}

// draft validates a booking request and returns the booking it describes,
// without id or status.
func (s *BookingService) draft(ctx context.Context, requester *model.User, req model.CreateBookingRequest) (model.Booking, error) {
	req.Purpose = strings.TrimSpace(req.Purpose)
	if err := s.check(req); err != nil {
		return model.Booking{}, err
	}
	sl, err := parseSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return model.Booking{}, err
	}
	if _, err := s.venueIn(ctx, requester.InstitutionID, req.VenueID); err != nil {
		return model.Booking{}, err
	}
	return model.Booking{
		UserID:        requester.ID,
		VenueID:       req.VenueID,
		InstitutionID: requester.InstitutionID,
		Purpose:       req.Purpose,
		Date:          sl.date,
		StartTime:     sl.start,
		EndTime:       sl.end,
	}, nil
}

func initialStatus(role model.Role) model.Status {
	if role.AutoConfirms() {
		return model.StatusConfirmed
	}
	return model.StatusPending
}

// CreateBooking books a single slot for the requester. Administrators'
// bookings are confirmed at once; everyone else's wait for approval.
func (s *BookingService) CreateBooking(ctx context.Context, requester *model.User, req model.CreateBookingRequest) (*model.Booking, error) {
	if err := authorizeBooking(requester); err != nil {
		return nil, err
	}
	b, err := s.draft(ctx, requester, req)
	if err != nil {
		return nil, err
	}
	b.ID = s.newID()
	b.Status = initialStatus(requester.Role)
	b.CreatedAt = s.now()

	if err := s.ledger.Insert(ctx, b.InstitutionID, []model.Booking{b}); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Info("booking rejected: slot taken",
				zap.String("venue_id", b.VenueID),
				zap.String("date", b.Date.String()),
				zap.Stringer("start", b.StartTime),
				zap.Stringer("end", b.EndTime))
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("institution_id", b.InstitutionID),
		zap.String("venue_id", b.VenueID),
		zap.String("user_id", b.UserID),
		zap.String("status", string(b.Status)))
	return &b, nil
}

func (s *BookingService) rule(first model.Date, req model.RecurrenceRequest) (schedule.Rule, error) {
	end, err := model.ParseDate(req.EndDate)
	if err != nil {
		return schedule.Rule{}, invalid("%v", err)
	}
	r := schedule.Rule{Frequency: schedule.Frequency(req.Frequency), Start: first, End: end}
	if r.Frequency == schedule.Daily && len(req.Weekdays) > 0 {
		return schedule.Rule{}, invalid("weekdays only apply to WEEKLY recurrence")
	}
	for _, name := range req.Weekdays {
		wd, err := schedule.ParseWeekday(name)
		if err != nil {
			return schedule.Rule{}, invalid("%v", err)
		}
		r.Weekdays = append(r.Weekdays, wd)
	}
	return r, nil
}

// CreateSeries books the same slot on every date of a recurrence. The
// series is atomic: if any date is taken nothing is booked and the returned
// *repository.ConflictError lists every taken date.
func (s *BookingService) CreateSeries(ctx context.Context, requester *model.User, req model.CreateSeriesRequest) ([]model.Booking, error) {
	if err := authorizeBooking(requester); err != nil {
		return nil, err
	}
	if err := s.check(req.Recurrence); err != nil {
		return nil, err
	}
	tmpl, err := s.draft(ctx, requester, req.Booking)
	if err != nil {
		return nil, err
	}
	rule, err := s.rule(tmpl.Date, req.Recurrence)
	if err != nil {
		return nil, err
	}
	dates, err := rule.Dates()
	if err != nil {
		return nil, invalid("%v", err)
	}

	seriesID := s.newID()
	status := initialStatus(requester.Role)
	now := s.now()
	bookings := make([]model.Booking, len(dates))
	for i, d := range dates {
		b := tmpl
		b.ID = s.newID()
		b.SeriesID = seriesID
		b.Date = d
		b.Status = status
		b.CreatedAt = now
		bookings[i] = b
	}

	if err := s.ledger.Insert(ctx, tmpl.InstitutionID, bookings); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Info("series rejected: slots taken",
				zap.String("venue_id", tmpl.VenueID),
				zap.Int("dates", len(dates)),
				zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("create series: %w", err)
	}

	s.logger.Info("series created",
		zap.String("series_id", seriesID),
		zap.String("institution_id", tmpl.InstitutionID),
		zap.String("venue_id", tmpl.VenueID),
		zap.Int("bookings", len(bookings)),
		zap.String("status", string(status)))
	return bookings, nil
}

// UpdateStatus moves a booking along its lifecycle. It performs no role
// checks; Decide is the entry point for user-initiated changes.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, to model.Status) (*model.Booking, error) {
	if _, err := model.ParseStatus(string(to)); err != nil {
		return nil, invalid("%v", err)
	}
	b, err := s.ledger.UpdateStatus(ctx, id, to)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.logger.Info("booking status changed",
		zap.String("booking_id", b.ID),
		zap.String("status", string(b.Status)))
	return b, nil
}

// Decide applies a status change on behalf of a user. Only administrators
// confirm; administrators and the booking's owner may cancel. Bookings of
// other institutions are reported as not found.
func (s *BookingService) Decide(ctx context.Context, actor *model.User, id string, to model.Status) (*model.Booking, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: requester is required", ErrForbidden)
	}
	b, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.InstitutionID != actor.InstitutionID {
		return nil, repository.ErrNotFound
	}

	switch {
	case actor.Role == model.RoleAdmin:
	case to == model.StatusCancelled && b.UserID == actor.ID:
	default:
		return nil, fmt.Errorf("%w: %s may not set a booking to %s", ErrForbidden, strings.ToLower(string(actor.Role)), to)
	}
	return s.UpdateStatus(ctx, id, to)
}

// Approve confirms a pending booking.
func (s *BookingService) Approve(ctx context.Context, actor *model.User, id string) (*model.Booking, error) {
	return s.Decide(ctx, actor, id, model.StatusConfirmed)
}

// Reject cancels a booking.
func (s *BookingService) Reject(ctx context.Context, actor *model.User, id string) (*model.Booking, error) {
	return s.Decide(ctx, actor, id, model.StatusCancelled)
}
