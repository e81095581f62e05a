// Package model defines the core domain types for the venue booking system.
package model

import (
	"fmt"
	"time"
)

// Role is the directory role of a user. It decides what the user may book
// and whether their bookings need approval.
type Role string

const (
	RoleStudent  Role = "STUDENT"
	RoleClassRep Role = "CLASS_REP"
	RoleLecturer Role = "LECTURER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleClassRep, RoleLecturer, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

// CanBook reports whether the role may create bookings. Students only view.
func (r Role) CanBook() bool {
	return r != RoleStudent
}

// AutoConfirms reports whether bookings made by the role skip the approval
// queue.
func (r Role) AutoConfirms() bool {
	return r == RoleAdmin
}

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCancelled: true},
	StatusCancelled: {},
}

// CanTransition reports whether a booking in status s may move to next.
// Same-status moves are not transitions and are rejected.
func (s Status) CanTransition(next Status) bool {
	return allowedTransitions[s][next]
}

// Occupies reports whether a booking in this status holds its slot.
// Pending requests hold the slot too, so two requests can't both wait on
// approval for the same time.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Institution is a campus whose venues and bookings are scoped together.
type Institution struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Code      string `json:"code"`
}

// User is a directory entry. There are no credentials; a user is identified
// by id alone.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	InstitutionID string `json:"institution_id"`
}

// Venue is a bookable room. Venues are reference data and never mutated by
// the ledger.
type Venue struct {
	ID            string   `json:"id"`
	InstitutionID string   `json:"institution_id"`
	Name          string   `json:"name"`
	Capacity      int      `json:"capacity"`
	Location      string   `json:"location"`
	Floor         int      `json:"floor"`
	Amenities     []string `json:"amenities"`
}

// Booking is a reservation of a venue for a same-day time range.
type Booking struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	VenueID       string    `json:"venue_id"`
	InstitutionID string    `json:"institution_id"`
	SeriesID      string    `json:"series_id,omitempty"`
	Purpose       string    `json:"purpose"`
	Date          Date      `json:"date"`
	StartTime     Clock     `json:"start_time"`
	EndTime       Clock     `json:"end_time"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Collides reports whether b holds a slot that overlaps o on the same venue
// and day. Cancelled bookings never collide.
func (b *Booking) Collides(o *Booking) bool {
	if b.VenueID != o.VenueID || !b.Date.Equal(o.Date) {
		return false
	}
	if !b.Status.Occupies() || !o.Status.Occupies() {
		return false
	}
	return b.StartTime < o.EndTime && o.StartTime < b.EndTime
}

// Availability values reported per venue.
const (
	SlotAvailable = "AVAILABLE"
	SlotTaken     = "TAKEN"
)

// VenueAvailability is one row of the availability matrix.
type VenueAvailability struct {
	Venue  Venue  `json:"venue"`
	Status string `json:"status"`
}

// CreateBookingRequest is the payload for requesting a single booking.
type CreateBookingRequest struct {
	VenueID   string `json:"venue_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	Purpose   string `json:"purpose" validate:"required,max=200"`
}

// RecurrenceRequest describes how a booking repeats. Weekdays only apply
// to WEEKLY and default to the weekday of the first date.
type RecurrenceRequest struct {
	Frequency string   `json:"frequency" validate:"required,oneof=DAILY WEEKLY"`
	Weekdays  []string `json:"weekdays" validate:"omitempty,dive,oneof=SUN MON TUE WED THU FRI SAT"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// CreateSeriesRequest is the payload for a recurring booking. The booking's
// date is the first date of the series.
type CreateSeriesRequest struct {
	Booking    CreateBookingRequest `json:"booking"`
	Recurrence RecurrenceRequest    `json:"recurrence"`
}

// ConflictQuery asks whether a slot is free.
type ConflictQuery struct {
	VenueID   string `json:"venue_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start" validate:"required,datetime=15:04"`
	EndTime   string `json:"end" validate:"required,datetime=15:04"`
}

// AvailabilityQuery asks for the state of every venue in a time range.
type AvailabilityQuery struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start" validate:"required,datetime=15:04"`
	EndTime   string `json:"end" validate:"required,datetime=15:04"`
}

// UpdateStatusRequest is the payload for moving a booking to a new status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED CANCELLED"`
}

// ConflictResponse is the result of a conflict check.
type ConflictResponse struct {
	Conflict bool `json:"conflict"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error            string   `json:"error"`
	ConflictingDates []string `json:"conflicting_dates,omitempty"`
}
