package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Loansert-Organization/kigali-ride-awa-sub000/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const heartbeatInterval = 30 * time.Second

// NotificationHandler streams a user's booking notifications over SSE.
type NotificationHandler struct {
	hub       *notify.Hub
	heartbeat time.Duration
	log       logrus.FieldLogger
}

func NewNotificationHandler(hub *notify.Hub, log logrus.FieldLogger) *NotificationHandler {
	return &NotificationHandler{hub: hub, heartbeat: heartbeatInterval, log: log}
}

func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{id}/notifications", h.StreamNotifications)
}

// GET /v1/users/{id}/notifications
func (h *NotificationHandler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	messages, unsubscribe := h.hub.Subscribe(userID)
	defer unsubscribe()

	h.log.WithField("user_id", userID).Debug("notification stream opened")

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: heartbeat\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}
