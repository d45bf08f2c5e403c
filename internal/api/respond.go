package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"goflare.io/pace/internal/models"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed request detected by a handler.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.Is(err, models.ErrStatsNotFound),
		errors.Is(err, models.ErrUnknownPlayer),
		errors.Is(err, models.ErrParlayNotFound),
		errors.Is(err, models.ErrLegNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTarget),
		errors.Is(err, models.ErrUnknownStatType),
		errors.Is(err, models.ErrInvalidWeek),
		errors.Is(err, models.ErrInvalidLeg),
		errors.Is(err, models.ErrInvalidParlay),
		errors.As(err, &reqErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Server side failures are logged and
// answered with a generic message so provider URLs never reach clients.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		respondError(w, status, err.Error())
		return
	}

	h.logger.Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	message := "internal server error"
	if errors.Is(err, models.ErrUpstreamUnavailable) {
		message = "upstream unavailable"
	}
	respondError(w, status, message)
}

func badRequest(message string) error {
	return &requestError{msg: message}
}

// decodeBody reads a JSON request body into out.
func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	return v, nil
}
