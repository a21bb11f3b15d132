package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"restodash/internal/export"
	"restodash/internal/invoices"
	"restodash/internal/logger"
	"restodash/internal/validate"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError answers {"error": message} and logs the cause.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, cause error) {
	log := logger.FromContext(r.Context())
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(cause).Int("status", status).Str("path", r.URL.Path).Msg(message)

	writeJSON(w, status, map[string]string{"error": message})
}

// fail answers err with the message produced by userMessage.
func fail(w http.ResponseWriter, r *http.Request, err error, userMessage func(error) string) {
	writeError(w, r, statusFor(err), userMessage(err), err)
}

func statusFor(err error) int {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr), errors.Is(err, export.ErrEmptySelection):
		return http.StatusBadRequest
	case errors.Is(err, invoices.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decode(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return &validate.Error{Field: "corps", Message: "requête JSON invalide"}
	}
	return nil
}

func (s *Server) establishment(r *http.Request, fromBody string) (string, error) {
	for _, candidate := range []string{fromBody, r.URL.Query().Get("establishment_id"), s.deps.EstablishmentID} {
		if id := strings.TrimSpace(candidate); id != "" {
			return id, nil
		}
	}
	return "", &validate.Error{Field: "établissement", Message: "ce champ est obligatoire"}
}
