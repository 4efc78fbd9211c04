package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/models"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/service"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const maxMatchLimit = 100

type MatchHandler struct {
	matchingService service.MatchingService
	log             logrus.FieldLogger
}

func NewMatchHandler(matchingService service.MatchingService, log logrus.FieldLogger) *MatchHandler {
	return &MatchHandler{matchingService: matchingService, log: log}
}

func (h *MatchHandler) RegisterRoutes(r chi.Router) {
	r.Get("/trips/{id}/matches", h.FindMatches)
}

// GET /v1/trips/{id}/matches?max_distance_km=5&max_time_diff_min=30&vehicle_types=moto,car&limit=20
func (h *MatchHandler) FindMatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "trip")
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	constraints, err := parseConstraints(r.URL.Query())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	matches, err := h.matchingService.FindMatches(r.Context(), id, constraints)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	utils.Success(w, http.StatusOK, models.NewMatchListResponse(matches))
}

func parseConstraints(q url.Values) (models.MatchConstraints, error) {
	var c models.MatchConstraints

	if raw := q.Get("max_distance_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return c, apperrors.BadRequest("max_distance_km must be a positive number")
		}
		c.MaxDistanceKm = v
	}
	if raw := q.Get("max_time_diff_min"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return c, apperrors.BadRequest("max_time_diff_min must be a positive number")
		}
		c.MaxTimeDiffMin = v
	}
	if raw := q.Get("vehicle_types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			vt := models.VehicleType(strings.TrimSpace(part))
			if !vt.Valid() {
				return c, apperrors.BadRequest("unknown vehicle type: " + string(vt))
			}
			c.VehicleTypes = append(c.VehicleTypes, vt)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxMatchLimit {
			return c, apperrors.BadRequest("limit must be between 1 and 100")
		}
		c.Limit = v
	}
	return c, nil
}
