// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seatsync/seatsync/internal/model"
	"github.com/seatsync/seatsync/internal/repository"
	"github.com/seatsync/seatsync/internal/service"
)

// BookingHandler holds all HTTP handlers for the booking API.
type BookingHandler struct {
	svc    *service.BookingService
	logger *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *service.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// Routes mounts the API on r. Mutating booking routes require a requester.
func (h *BookingHandler) Routes(r chi.Router) {
	r.Get("/health", HealthCheck)

	r.Get("/institutions", h.ListInstitutions)
	r.Route("/institutions/{institutionID}", func(r chi.Router) {
		r.Get("/users", h.FindUser)
		r.Get("/venues", h.ListVenues)
		r.Get("/availability", h.Availability)
		r.Get("/bookings", h.ListBookings)
		r.Get("/bookings/pending", h.PendingBookings)
		r.Get("/conflicts", h.CheckConflict)
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Use(h.Requester)
		r.Post("/", h.CreateBooking)
		r.Post("/series", h.CreateSeries)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// fail maps a service error onto a status code and writes it.
func (h *BookingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *repository.ConflictError
	switch {
	case errors.As(err, &conflict):
		resp := model.ErrorResponse{Error: conflict.Error()}
		for _, d := range conflict.Dates {
			resp.ConflictingDates = append(resp.ConflictingDates, d.String())
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ListInstitutions handles GET /institutions
func (h *BookingHandler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	insts, err := h.svc.ListInstitutions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if insts == nil {
		insts = []model.Institution{}
	}
	writeJSON(w, http.StatusOK, insts)
}

// FindUser handles GET /institutions/{institutionID}/users?email=
// It is the sign-in lookup: there are no credentials.
func (h *BookingHandler) FindUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.FindUser(r.Context(), chi.URLParam(r, "institutionID"), r.URL.Query().Get("email"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ListVenues handles GET /institutions/{institutionID}/venues
func (h *BookingHandler) ListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := h.svc.ListVenues(r.Context(), chi.URLParam(r, "institutionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if venues == nil {
		venues = []model.Venue{}
	}
	writeJSON(w, http.StatusOK, venues)
}

// Availability handles GET /institutions/{institutionID}/availability?date=&start=&end=
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.svc.Availability(r.Context(), chi.URLParam(r, "institutionID"), model.AvailabilityQuery{
		Date:      q.Get("date"),
		StartTime: q.Get("start"),
		EndTime:   q.Get("end"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ListBookings handles GET /institutions/{institutionID}/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListBookings(r.Context(), chi.URLParam(r, "institutionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// PendingBookings handles GET /institutions/{institutionID}/bookings/pending
func (h *BookingHandler) PendingBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.PendingBookings(r.Context(), chi.URLParam(r, "institutionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// CheckConflict handles GET /institutions/{institutionID}/conflicts?venue_id=&date=&start=&end=
func (h *BookingHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	taken, err := h.svc.CheckConflict(r.Context(), chi.URLParam(r, "institutionID"), model.ConflictQuery{
		VenueID:   q.Get("venue_id"),
		Date:      q.Get("date"),
		StartTime: q.Get("start"),
		EndTime:   q.Get("end"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ConflictResponse{Conflict: taken})
}

// CreateBooking handles POST /bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), RequesterFrom(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// CreateSeries handles POST /bookings/series
// All dates are booked or none are.
func (h *BookingHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSeriesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	bookings, err := h.svc.CreateSeries(r.Context(), RequesterFrom(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookings)
}

// UpdateStatus handles PATCH /bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.svc.Decide(r.Context(), RequesterFrom(r.Context()), chi.URLParam(r, "id"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Approve handles POST /bookings/{id}/approve
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Approve(r.Context(), RequesterFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Reject handles POST /bookings/{id}/reject
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Reject(r.Context(), RequesterFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
