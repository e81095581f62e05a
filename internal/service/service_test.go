package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seatsync/seatsync/internal/model"
	"github.com/seatsync/seatsync/internal/repository"
)

type fixture struct {
	svc    *BookingService
	ledger *repository.MemoryLedger
	dir    *repository.MemoryDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := repository.NewMemoryLedger()
	dir := repository.NewMemoryDirectory(repository.DefaultReference())
	svc := NewBookingService(ledger, dir, dir, zap.NewNop())

	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	svc.now = func() time.Time { return time.Date(2024, 2, 20, 8, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, ledger: ledger, dir: dir}
}

func (f *fixture) user(t *testing.T, id string) *model.User {
	t.Helper()
	u, err := f.dir.User(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	all, err := f.ledger.List(context.Background(), "inst-ccu")
	require.NoError(t, err)
	return len(all)
}

func request(venue, date, start, end string) model.CreateBookingRequest {
	return model.CreateBookingRequest{VenueID: venue, Date: date, StartTime: start, EndTime: end, Purpose: "Lecture"}
}

func TestCreateBooking_StudentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.user(t, "u4"), request("v1", "2024-03-01", "09:00", "11:00"))
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "students are not authorized to book venues")
	assert.Equal(t, 0, f.count(t))
}

func TestCreateBooking_StudentRejectedBeforeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBooking(context.Background(), f.user(t, "u4"), model.CreateBookingRequest{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateBooking_InitialStatusByRole(t *testing.T) {
	tests := []struct {
		user string
		want model.Status
	}{
		{"u1", model.StatusPending},
		{"u2", model.StatusPending},
		{"u3", model.StatusConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			f := newFixture(t)
			b, err := f.svc.CreateBooking(context.Background(), f.user(t, tt.user), request("v1", "2024-03-01", "09:00", "11:00"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Status)
			assert.Equal(t, tt.user, b.UserID)
			assert.Equal(t, "inst-ccu", b.InstitutionID)
			assert.Equal(t, "id-001", b.ID)
			assert.Empty(t, b.SeriesID)
		})
	}
}

func TestCreateBooking_ConflictScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.user(t, "u1"), request("v1", "2024-03-01", "09:00", "11:00"))
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, f.user(t, "u2"), request("v1", "2024-03-01", "10:00", "12:00"))
	require.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 1, f.count(t))

	// Touching ranges don't overlap.
	_, err = f.svc.CreateBooking(ctx, f.user(t, "u2"), request("v1", "2024-03-01", "11:00", "12:00"))
	require.NoError(t, err)

	// Another venue is independent.
	_, err = f.svc.CreateBooking(ctx, f.user(t, "u2"), request("v2", "2024-03-01", "10:00", "12:00"))
	require.NoError(t, err)
	assert.Equal(t, 3, f.count(t))
}

func TestCreateBooking_CancelledSlotIsFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.user(t, "u1"), request("v1", "2024-03-01", "09:00", "11:00"))
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.user(t, "u3"), b.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, f.user(t, "u2"), request("v1", "2024-03-01", "10:00", "12:00"))
	assert.NoError(t, err)
}

func TestCreateBooking_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     model.CreateBookingRequest
		wantMsg string
	}{
		{"missing venue", request("", "2024-03-01", "09:00", "11:00"), "venue_id is required"},
		{"bad date", request("v1", "01/03/2024", "09:00", "11:00"), "date must be a date in YYYY-MM-DD format"},
		{"bad time", request("v1", "2024-03-01", "9am", "11:00"), "start_time must be a time in HH:MM format"},
		{"end before start", request("v1", "2024-03-01", "11:00", "09:00"), "end time must be after start time"},
		{"empty range", request("v1", "2024-03-01", "09:00", "09:00"), "end time must be after start time"},
		{"blank purpose", model.CreateBookingRequest{VenueID: "v1", Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00", Purpose: "   "}, "purpose is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateBooking(context.Background(), f.user(t, "u1"), tt.req)
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, 0, f.count(t))
		})
	}
}

func TestCreateBooking_VenueOfOtherInstitution(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBooking(context.Background(), f.user(t, "u1"), request("v5", "2024-03-01", "09:00", "10:00"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.svc.CreateBooking(context.Background(), f.user(t, "u1"), request("v99", "2024-03-01", "09:00", "10:00"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateSeries_WeeklyMondays(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.CreateSeries(context.Background(), f.user(t, "u1"), model.CreateSeriesRequest{
		Booking:    request("v3", "2024-01-01", "14:00", "16:00"),
		Recurrence: model.RecurrenceRequest{Frequency: "WEEKLY", Weekdays: []string{"MON"}, EndDate: "2024-01-28"},
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22"}
	for i, b := range got {
		assert.Equal(t, want[i], b.Date.String())
		assert.Equal(t, got[0].SeriesID, b.SeriesID)
		assert.Equal(t, model.StatusPending, b.Status)
		assert.Equal(t, model.NewClock(14, 0), b.StartTime)
	}
	assert.NotEmpty(t, got[0].SeriesID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, 4, f.count(t))
}

func TestCreateSeries_AdminConfirmed(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.CreateSeries(context.Background(), f.user(t, "u3"), model.CreateSeriesRequest{
		Booking:    request("v4", "2024-05-01", "08:00", "09:00"),
		Recurrence: model.RecurrenceRequest{Frequency: "DAILY", EndDate: "2024-05-03"},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, b := range got {
		assert.Equal(t, model.StatusConfirmed, b.Status)
	}
}

func TestCreateSeries_ConflictIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.user(t, "u3"), request("v3", "2024-01-15", "15:00", "17:00"))
	require.NoError(t, err)

	_, err = f.svc.CreateSeries(ctx, f.user(t, "u1"), model.CreateSeriesRequest{
		Booking:    request("v3", "2024-01-01", "14:00", "16:00"),
		Recurrence: model.RecurrenceRequest{Frequency: "WEEKLY", Weekdays: []string{"MON"}, EndDate: "2024-01-28"},
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	var conflict *repository.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Dates, 1)
	assert.Equal(t, "2024-01-15", conflict.Dates[0].String())
	assert.Equal(t, 1, f.count(t))
}

func TestCreateSeries_Validation(t *testing.T) {
	tests := []struct {
		name string
		rec  model.RecurrenceRequest
	}{
		{"unknown frequency", model.RecurrenceRequest{Frequency: "MONTHLY", EndDate: "2024-02-01"}},
		{"end before start", model.RecurrenceRequest{Frequency: "DAILY", EndDate: "2023-12-31"}},
		{"span too long", model.RecurrenceRequest{Frequency: "DAILY", EndDate: "2024-04-02"}},
		{"weekdays with daily", model.RecurrenceRequest{Frequency: "DAILY", Weekdays: []string{"MON"}, EndDate: "2024-01-10"}},
		{"bad weekday", model.RecurrenceRequest{Frequency: "WEEKLY", Weekdays: []string{"MONDAY"}, EndDate: "2024-01-10"}},
		{"missing end date", model.RecurrenceRequest{Frequency: "WEEKLY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateSeries(context.Background(), f.user(t, "u1"), model.CreateSeriesRequest{
				Booking:    request("v1", "2024-01-01", "09:00", "10:00"),
				Recurrence: tt.rec,
			})
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 0, f.count(t))
		})
	}
}

func TestCreateSeries_StudentRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSeries(context.Background(), f.user(t, "u4"), model.CreateSeriesRequest{
		Booking:    request("v1", "2024-01-01", "09:00", "10:00"),
		Recurrence: model.RecurrenceRequest{Frequency: "DAILY", EndDate: "2024-01-05"},
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.user(t, "u1"), request("v1", "2024-03-01", "09:00", "11:00"))
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, b.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	got, err = f.svc.UpdateStatus(ctx, b.ID, model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	_, err = f.svc.UpdateStatus(ctx, b.ID, model.StatusCancelled)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, b.ID, model.StatusPending)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, b.ID, model.Status("ARCHIVED"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateStatus(ctx, "missing", model.StatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDecide_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.user(t, "u1"), request("v1", "2024-03-01", "09:00", "11:00"))
	require.NoError(t, err)

	// Only admins approve.
	_, err = f.svc.Approve(ctx, f.user(t, "u1"), b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Approve(ctx, f.user(t, "u2"), b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// Admins of another institution can't see it.
	_, err = f.svc.Approve(ctx, f.user(t, "u5"), b.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := f.svc.Approve(ctx, f.user(t, "u3"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	// A non-owner can't cancel; the owner can.
	_, err = f.svc.Reject(ctx, f.user(t, "u2"), b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	got, err = f.svc.Reject(ctx, f.user(t, "u1"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	_, err = f.svc.Reject(ctx, f.user(t, "u3"), b.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestPendingBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.user(t, "u3"), request("v1", "2024-03-01", "09:00", "10:00"))
	require.NoError(t, err)
	late, err := f.svc.CreateBooking(ctx, f.user(t, "u1"), request("v2", "2024-03-02", "09:00", "10:00"))
	require.NoError(t, err)
	early, err := f.svc.CreateBooking(ctx, f.user(t, "u2"), request("v3", "2024-03-01", "13:00", "14:00"))
	require.NoError(t, err)

	pending, err := f.svc.PendingBookings(ctx, "inst-ccu")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, early.ID, pending[0].ID)
	assert.Equal(t, late.ID, pending[1].ID)

	_, err = f.svc.PendingBookings(ctx, "inst-none")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCheckConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.user(t, "u1"), request("v1", "2024-03-01", "09:00", "11:00"))
	require.NoError(t, err)

	taken, err := f.svc.CheckConflict(ctx, "inst-ccu", model.ConflictQuery{VenueID: "v1", Date: "2024-03-01", StartTime: "10:30", EndTime: "12:00"})
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = f.svc.CheckConflict(ctx, "inst-ccu", model.ConflictQuery{VenueID: "v1", Date: "2024-03-01", StartTime: "11:00", EndTime: "12:00"})
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = f.svc.CheckConflict(ctx, "inst-ccu", model.ConflictQuery{VenueID: "v1", Date: "2024-03-01", StartTime: "12:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CheckConflict(ctx, "inst-lsp", model.ConflictQuery{VenueID: "v1", Date: "2024-03-01", StartTime: "09:00", EndTime: "10:00"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.user(t, "u1"), request("v2", "2024-03-01", "09:00", "11:00"))
	require.NoError(t, err)

	rows, err := f.svc.Availability(ctx, "inst-ccu", model.AvailabilityQuery{Date: "2024-03-01", StartTime: "10:00", EndTime: "10:30"})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	status := map[string]string{}
	for _, r := range rows {
		status[r.Venue.ID] = r.Status
	}
	assert.Equal(t, map[string]string{
		"v1": model.SlotAvailable,
		"v2": model.SlotTaken,
		"v3": model.SlotAvailable,
		"v4": model.SlotAvailable,
	}, status)

	_, err = f.svc.Availability(ctx, "inst-ccu", model.AvailabilityQuery{Date: "2024-03-01"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFindUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.FindUser(ctx, "inst-ccu", " Admin@Campus.edu ")
	require.NoError(t, err)
	assert.Equal(t, "u3", u.ID)

	_, err = f.svc.FindUser(ctx, "inst-lsp", "admin@campus.edu")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.svc.FindUser(ctx, "inst-ccu", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListVenues_UnknownInstitution(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListVenues(context.Background(), "inst-none")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	venues, err := f.svc.ListVenues(context.Background(), "inst-lsp")
	require.NoError(t, err)
	assert.Len(t, venues, 2)
}
