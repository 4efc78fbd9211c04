package handler

import (
	"net/http"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/service"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type BookingHandler struct {
	bookingService service.BookingService
	validate       *validator.Validate
	log            logrus.FieldLogger
}

func NewBookingHandler(bookingService service.BookingService, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		validate:       validator.New(),
		log:            log,
	}
}

func (h *BookingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/bookings", h.CreateBooking)
	r.Get("/bookings/{id}", h.GetBooking)
	r.Post("/bookings/{id}/confirm", h.ConfirmBooking)
	r.Post("/bookings/{id}/cancel", h.CancelBooking)
	r.Get("/trips/{id}/bookings", h.ListTripBookings)
}

// POST /v1/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBookingRequest
	if err := decode(r, h.validate, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	booking, created, err := h.bookingService.CreateBooking(r.Context(), req.PassengerTripID, req.DriverTripID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	if !created {
		utils.Success(w, http.StatusOK, booking.ToResponse())
		return
	}
	utils.Created(w, booking.ToResponse())
}

// GET /v1/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "booking")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	booking, err := h.bookingService.GetBooking(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	utils.Success(w, http.StatusOK, booking.ToResponse())
}

// POST /v1/bookings/{id}/confirm
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "booking")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	if err := h.bookingService.ConfirmBooking(r.Context(), id); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"booking_id": id,
		"status":     "confirmed",
	})
}

// POST /v1/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "booking")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	outcome, err := h.bookingService.CancelBooking(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"booking_id": id,
		"status":     string(outcome),
	})
}

// GET /v1/trips/{id}/bookings
func (h *BookingHandler) ListTripBookings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "trip")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	bookings, err := h.bookingService.ListBookingsForTrip(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	resp := make([]*models.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, b.ToResponse())
	}
	utils.Success(w, http.StatusOK, map[string]interface{}{
		"bookings": resp,
		"count":    len(resp),
	})
}
