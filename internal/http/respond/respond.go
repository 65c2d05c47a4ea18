// Package respond writes the API's JSON envelopes and maps domain errors to
// status codes.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/babyresell/babyresell/internal/item"
	"github.com/babyresell/babyresell/internal/payment"
	"github.com/babyresell/babyresell/internal/settings"
	"github.com/babyresell/babyresell/internal/theme"
	"github.com/babyresell/babyresell/internal/transaction"
	"github.com/babyresell/babyresell/internal/user"
)

var ErrBadRequest = errors.New("bad request")

var validate = validator.New()

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, envelope{Success: true, Message: msg})
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, envelope{Success: false, Message: msg})
}

var statusByError = []struct {
	err    error
	status int
}{
	{ErrBadRequest, http.StatusBadRequest},
	{settings.ErrUnknownSection, http.StatusBadRequest},
	{settings.ErrInvalidPatch, http.StatusBadRequest},
	{theme.ErrInvalidPalette, http.StatusBadRequest},
	{transaction.ErrInvalidOutcome, http.StatusBadRequest},
	{item.ErrInvalidListing, http.StatusBadRequest},

	{transaction.ErrForbidden, http.StatusForbidden},
	{item.ErrForbidden, http.StatusForbidden},

	{transaction.ErrNotFound, http.StatusNotFound},
	{item.ErrNotFound, http.StatusNotFound},
	{user.ErrNotFound, http.StatusNotFound},
	{theme.ErrNotFound, http.StatusNotFound},
	{theme.ErrNoActiveTheme, http.StatusNotFound},

	{transaction.ErrInvalidTransition, http.StatusConflict},
	{transaction.ErrDuplicateIntent, http.StatusConflict},
	{transaction.ErrItemUnavailable, http.StatusConflict},
	{transaction.ErrIntentMismatch, http.StatusConflict},
	{transaction.ErrNotFunded, http.StatusConflict},
	{item.ErrStatusChanged, http.StatusConflict},
	{theme.ErrNameTaken, http.StatusConflict},
	{payment.ErrNoDestination, http.StatusConflict},
}

// StatusFor returns the HTTP status an error should be reported with.
func StatusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}

	return http.StatusInternalServerError
}

// Err writes err with its mapped status. Server errors are logged and still
// carry the error text.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	Error(w, status, err.Error())
}

// DecodeJSON reads a JSON body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", ErrBadRequest, err)
	}

	return nil
}

// Decode reads a JSON body into the struct v and runs its validate tags.
func Decode(r *http.Request, v any) error {
	if err := DecodeJSON(r, v); err != nil {
		return err
	}

	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	return nil
}
