package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/service"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type TripHandler struct {
	tripService service.TripService
	validate    *validator.Validate
	log         logrus.FieldLogger
}

func NewTripHandler(tripService service.TripService, log logrus.FieldLogger) *TripHandler {
	return &TripHandler{
		tripService: tripService,
		validate:    validator.New(),
		log:         log,
	}
}

func (h *TripHandler) RegisterRoutes(r chi.Router) {
	r.Post("/trips", h.CreateTrip)
	r.Get("/trips/{id}", h.GetTrip)
	r.Post("/trips/{id}/cancel", h.CancelTrip)
	r.Post("/trips/{id}/complete", h.CompleteTrip)
	r.Get("/users/{id}/trips", h.ListTrips)
}

// POST /v1/trips
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTripRequest
	if err := decode(r, h.validate, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	trip, err := h.tripService.CreateTrip(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	utils.Created(w, trip.ToResponse())
}

// GET /v1/trips/{id}
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "trip")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	trip, err := h.tripService.GetTrip(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	utils.Success(w, http.StatusOK, trip.ToResponse())
}

// GET /v1/users/{id}/trips
func (h *TripHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	if ownerID == "" {
		utils.BadRequest(w, "user id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	trips, err := h.tripService.ListTrips(r.Context(), ownerID, limit)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	resp := make([]*models.TripResponse, 0, len(trips))
	for _, t := range trips {
		resp = append(resp, t.ToResponse())
	}
	utils.Success(w, http.StatusOK, map[string]interface{}{
		"trips": resp,
		"count": len(resp),
	})
}

// POST /v1/trips/{id}/cancel
func (h *TripHandler) CancelTrip(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.tripService.CancelTrip)
}

// POST /v1/trips/{id}/complete
func (h *TripHandler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.tripService.CompleteTrip)
}

type ownerActionFunc func(ctx context.Context, tripID, ownerID string) (*models.Trip, error)

func (h *TripHandler) ownerAction(w http.ResponseWriter, r *http.Request, action ownerActionFunc) {
	id, err := pathID(r, "trip")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	var req models.OwnerActionRequest
	if err := decode(r, h.validate, &req); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	trip, err := action(r.Context(), id, req.OwnerID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	utils.Success(w, http.StatusOK, trip.ToResponse())
}
