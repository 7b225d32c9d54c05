package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/web/api"
)

func TestAPIErrorHandling(t *testing.T) {
	t.Parallel()

	t.Run("it exposes all error details safely for BadRequest", func(t *testing.T) {
		t.Parallel()

		// Arrange
		validationErr := errors.New("invalid from parameter: expected YYYY-MM-DD")

		// Act
		apiErr := api.BadRequest(validationErr)

		// Assert
		assert.Equal(t, http.StatusBadRequest, apiErr.HTTPCode())
		assert.Equal(t, "invalid from parameter: expected YYYY-MM-DD", apiErr.Error())
		assert.Equal(t, validationErr, apiErr.Cause())
	})

	t.Run("it hides sensitive details for InternalServerError", func(t *testing.T) {
		t.Parallel()

		// Arrange - internal database error (should NOT be exposed)
		internalErr := errors.New("database connection failed: password authentication failed for user 'admin'")

		// Act
		apiErr := api.InternalServerError(internalErr)

		// Assert
		assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPCode())
		assert.Equal(t, "Internal Server Error", apiErr.Error()) // Generic message, no sensitive info
		assert.Equal(t, internalErr, apiErr.Cause())             // Original error still available for logging
	})

	t.Run("it classifies unknown errors as InternalServerError", func(t *testing.T) {
		t.Parallel()

		// Arrange
		unknownErr := errors.New("some random error")

		// Act
		apiErr := api.Wrap(unknownErr)

		// Assert
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPCode())
		assert.Equal(t, "Internal Server Error", apiErr.Error())
		assert.Equal(t, unknownErr, apiErr.Cause())
	})

	t.Run("it creates correct JSON structure when marshaling", func(t *testing.T) {
		t.Parallel()

		// Arrange
		validationErr := errors.New("invalid per_page parameter: per_page must be between 1 and 100")
		apiErr := api.BadRequest(validationErr)

		// Act
		jsonBytes, err := json.Marshal(apiErr)

		// Assert
		require.NoError(t, err)

		var response map[string]any
		err = json.Unmarshal(jsonBytes, &response)
		require.NoError(t, err)

		assert.Equal(t, float64(http.StatusBadRequest), response["code"])
		assert.Equal(t, "invalid per_page parameter: per_page must be between 1 and 100", response["message"])
	})

	t.Run("it prevents double-wrapping of API errors", func(t *testing.T) {
		t.Parallel()

		// Arrange
		originalErr := errors.New("some validation error")
		apiErr1 := api.BadRequest(originalErr)

		// Act - try to wrap an already wrapped error
		apiErr2 := api.Wrap(apiErr1)

		// Assert - should return the same error, not double-wrap
		assert.Same(t, apiErr1, apiErr2)
	})

	t.Run("it supports error unwrapping correctly", func(t *testing.T) {
		t.Parallel()

		// Arrange
		originalErr := errors.New("original error")
		apiErr := api.BadRequest(originalErr)

		// Act & Assert - errors.Is should work through the wrapper
		assert.True(t, errors.Is(apiErr, originalErr))
		assert.Equal(t, originalErr, errors.Unwrap(apiErr))
	})

	t.Run("it exposes client error details for 4xx constructors", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("insufficient balance: requested 10, available 5")

		tests := []struct {
			name string
			err  *api.Error
			code int
		}{
			{name: "when not found", err: api.NotFound(cause), code: http.StatusNotFound},
			{name: "when conflicting", err: api.Conflict(cause), code: http.StatusConflict},
			{name: "when unprocessable", err: api.UnprocessableEntity(cause), code: http.StatusUnprocessableEntity},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				assert.Equal(t, tc.code, tc.err.HTTPCode())
				assert.Equal(t, cause.Error(), tc.err.Error())
				assert.ErrorIs(t, tc.err, cause)
			})
		}
	})

	t.Run("it hides upstream details for BadGateway", func(t *testing.T) {
		t.Parallel()

		// Arrange
		rpcErr := errors.New("POST https://rpc.example/v0_8?apikey=secret: 503")

		// Act
		apiErr := api.BadGateway(rpcErr)

		// Assert
		assert.Equal(t, http.StatusBadGateway, apiErr.HTTPCode())
		assert.NotContains(t, apiErr.Error(), "secret")
		assert.ErrorIs(t, apiErr, rpcErr)
	})

	t.Run("it returns nil when wrapping a nil error", func(t *testing.T) {
		t.Parallel()

		// Act
		result := api.Wrap(nil)

		// Assert
		assert.Nil(t, result)
	})
}
