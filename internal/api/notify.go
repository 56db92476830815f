package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shaharia-lab/signup-notifier/internal/dispatch"
	"github.com/shaharia-lab/signup-notifier/internal/metrics"
	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

const maxNotifyBodyBytes = 64 << 10

var errTrailingData = errors.New("unexpected data after JSON body")

type notifyResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type validationResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// handleNotify validates a signup payload and schedules the admin email.
// It answers as soon as the message is queued; delivery results only reach
// the logs and metrics.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNotifyBodyBytes)

	payload, err := decodePayload(r.Body)
	if err != nil {
		s.rejectPayload(w, err)
		return
	}
	req, err := payload.Normalize()
	if err != nil {
		s.rejectPayload(w, err)
		return
	}

	id, err := s.scheduler.Schedule(notification.BuildMessage(req, s.addressing))
	switch {
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrClosed):
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusServiceUnavailable, errQueueUnavailable)
		return
	case err != nil:
		s.logger.Error("notify: scheduling failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, errSchedulingFailed)
		return
	}

	s.respond(w, http.StatusOK, notifyResponse{Status: "queued", ID: id})
}

// rejectPayload answers 422 for a *notification.ValidationError and 400 for
// anything that is not a single JSON object.
func (s *Server) rejectPayload(w http.ResponseWriter, err error) {
	var verr *notification.ValidationError
	if errors.As(err, &verr) {
		s.logger.Info("notify: payload rejected", slog.String("field", verr.Field), slog.String("reason", verr.Message))
		s.respond(w, http.StatusUnprocessableEntity, validationResponse{Error: verr.Message, Field: verr.Field})
		return
	}
	s.respondError(w, http.StatusBadRequest, errInvalidJSONBody)
}

// decodePayload reads exactly one JSON value. A field holding the wrong JSON
// type is reported as a *notification.ValidationError on its canonical name.
func decodePayload(body io.Reader) (notification.Payload, error) {
	var payload notification.Payload
	dec := json.NewDecoder(body)
	if err := dec.Decode(&payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return payload, typeError(typeErr.Field)
		}
		return payload, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return payload, errTrailingData
	}
	return payload, nil
}

func typeError(jsonField string) *notification.ValidationError {
	switch jsonField {
	case "mail", "email":
		return &notification.ValidationError{Field: "email", Message: "email/mail must be a string"}
	case "nombre":
		jsonField = "name"
	case "telefono":
		jsonField = "phone"
	}
	return &notification.ValidationError{Field: jsonField, Message: jsonField + " must be a string"}
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	metrics.NotifyRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	writeJSON(w, status, v)
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	metrics.NotifyRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	writeError(w, status, msg)
}
