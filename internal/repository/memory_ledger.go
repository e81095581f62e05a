package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/seatsync/seatsync/internal/model"
	"github.com/seatsync/seatsync/internal/schedule"
)

// shelf holds one institution's bookings. Writers hold mu for the whole
// check-then-append so no two inserts can both see a slot as free.
type shelf struct {
	mu       sync.RWMutex
	bookings []model.Booking
}

// MemoryLedger is the booking ledger used when no database is configured.
// Institutions are locked independently; reads within an institution run
// concurrently.
type MemoryLedger struct {
	mu      sync.RWMutex
	shelves map[string]*shelf // institutionID -> shelf
	owner   map[string]string // bookingID -> institutionID
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		shelves: map[string]*shelf{},
		owner:   map[string]string{},
	}
}

func (l *MemoryLedger) shelf(institutionID string, create bool) *shelf {
	l.mu.RLock()
	s, ok := l.shelves[institutionID]
	l.mu.RUnlock()
	if ok || !create {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok = l.shelves[institutionID]; !ok {
		s = &shelf{}
		l.shelves[institutionID] = s
	}
	return s
}

func (l *MemoryLedger) List(_ context.Context, institutionID string) ([]model.Booking, error) {
	s := l.shelf(institutionID, false)
	if s == nil {
		return nil, nil
	}

	s.mu.RLock()
	out := make([]model.Booking, len(s.bookings))
	copy(out, s.bookings)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (l *MemoryLedger) Get(_ context.Context, id string) (*model.Booking, error) {
	l.mu.RLock()
	institutionID, ok := l.owner[id]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	s := l.shelf(institutionID, false)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			b := s.bookings[i]
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (l *MemoryLedger) HasConflict(_ context.Context, institutionID, venueID string, date model.Date, start, end model.Clock) (bool, error) {
	s := l.shelf(institutionID, false)
	if s == nil {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.bookings {
		b := &s.bookings[i]
		if b.VenueID != venueID || !b.Date.Equal(date) || !b.Status.Occupies() {
			continue
		}
		if schedule.Overlaps(start, end, b.StartTime, b.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

// Insert appends all bookings or none. On collision it returns a
// *ConflictError naming every clashing date.
func (l *MemoryLedger) Insert(_ context.Context, institutionID string, bookings []model.Booking) error {
	s := l.shelf(institutionID, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if clashes := collisions(s.bookings, bookings); len(clashes) > 0 {
		return &ConflictError{Dates: clashes}
	}

	l.mu.Lock()
	for i := range bookings {
		bookings[i].InstitutionID = institutionID
		l.owner[bookings[i].ID] = institutionID
	}
	l.mu.Unlock()
	s.bookings = append(s.bookings, bookings...)
	return nil
}

func (l *MemoryLedger) UpdateStatus(_ context.Context, id string, to model.Status) (*model.Booking, error) {
	l.mu.RLock()
	institutionID, ok := l.owner[id]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	s := l.shelf(institutionID, false)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		b := &s.bookings[i]
		if b.ID != id {
			continue
		}
		if !b.Status.CanTransition(to) {
			return nil, transitionError(b.Status, to)
		}
		b.Status = to
		out := *b
		return &out, nil
	}
	return nil, ErrNotFound
}
