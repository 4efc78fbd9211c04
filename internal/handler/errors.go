package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/errors"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/logger"
	"github.com/Loansert-Organization/kigali-ride-awa-sub000/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

func handleError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= http.StatusInternalServerError {
			logger.FromContext(r.Context(), log).WithError(apiErr.Unwrap()).
				WithField("path", r.URL.Path).Warn("request failed")
		}
		utils.Error(w, apiErr)
		return
	}

	logger.FromContext(r.Context(), log).WithError(err).
		WithField("path", r.URL.Path).Error("unhandled error")
	utils.InternalError(w, "internal server error")
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, validate *validator.Validate, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return apperrors.BadRequest(err.Error())
	}
	return nil
}

// pathID returns a UUID path parameter. Ids that cannot exist are reported as not found.
func pathID(r *http.Request, resource string) (string, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return "", apperrors.BadRequest(resource + " id is required")
	}
	if !utils.IsValidUUID(id) {
		return "", apperrors.NotFound(resource)
	}
	return id, nil
}
