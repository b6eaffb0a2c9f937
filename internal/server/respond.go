package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/compiler"
	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/media"
	"github.com/abhisek/coursewell/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	var ce *compiler.CompileError
	switch {
	case errors.Is(err, dialogue.ErrUnauthorized),
		errors.Is(err, authoring.ErrForbidden),
		errors.Is(err, authoring.ErrOwnCourse),
		errors.Is(err, authoring.ErrNotCompleted):
		return http.StatusForbidden
	case errors.Is(err, dialogue.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, authoring.ErrNotPublished):
		return http.StatusNotFound
	case errors.As(err, &ce),
		errors.Is(err, authoring.ErrNoChapters):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, authoring.ErrInvalid),
		errors.Is(err, media.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()

	var ce *compiler.CompileError
	switch {
	case errors.As(err, &ce):
		s.log.Info("script rejected", "path", r.URL.Path, "reason", ce.Error())
		msg = compiler.AuthorMessage
	case status == http.StatusInternalServerError:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}
