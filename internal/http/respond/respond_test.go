package respond_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babyresell/babyresell/internal/http/respond"
	"github.com/babyresell/babyresell/internal/payment"
	"github.com/babyresell/babyresell/internal/settings"
	"github.com/babyresell/babyresell/internal/theme"
	"github.com/babyresell/babyresell/internal/transaction"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("wrapped: %w", transaction.ErrInvalidTransition), want: http.StatusConflict},
		{err: transaction.ErrDuplicateIntent, want: http.StatusConflict},
		{err: transaction.ErrForbidden, want: http.StatusForbidden},
		{err: transaction.ErrNotFound, want: http.StatusNotFound},
		{err: theme.ErrNoActiveTheme, want: http.StatusNotFound},
		{err: settings.ErrUnknownSection, want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: boom", payment.ErrProvider), want: http.StatusInternalServerError},
		{err: errors.New("anything else"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, respond.StatusFor(tt.err))
		})
	}
}

func TestErr_CarriesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respond.Err(rec, req, fmt.Errorf("%w: stripe unavailable", payment.ErrProvider))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"payment provider error: stripe unavailable"}`, rec.Body.String())
}

func TestDecode(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}

	tests := map[string]bool{
		`{"name":"crib"}`: false,
		`{"name":""}`:     true,
		`{`:               true,
	}

	for in, wantErr := range tests {
		t.Run(in, func(t *testing.T) {
			var b body

			err := respond.Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(in)), &b)
			if wantErr {
				require.ErrorIs(t, err, respond.ErrBadRequest)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "crib", b.Name)
		})
	}
}
