package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteData(t *testing.T) {
	t.Run("session payload is wrapped", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteOK(w, map[string]interface{}{"email": "ana@example.com", "role": "librarian"}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"data":{"email":"ana@example.com","role":"librarian"}}`, w.Body.String())
	})

	t.Run("unhealthy readiness keeps its status", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteData(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"data":{"status":"unhealthy"}}`, w.Body.String())
	})

	t.Run("nil writes no body", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteRoleRequired(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteRoleRequired(w, "Admin access required", "admin"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeForbidden, resp.Error)
	assert.Equal(t, "Admin access required", resp.Message)
	assert.Equal(t, "admin", resp.Details["required_role"])
}

func TestWriteBadGateway(t *testing.T) {
	t.Run("catalog outage", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteBadGateway(w, "", map[string]interface{}{"status": 503}))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, CodeBadGateway, resp.Error)
		assert.Equal(t, "Catalog service unavailable", resp.Message)
		assert.Equal(t, float64(503), resp.Details["status"])
	})

	t.Run("explicit message wins", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteBadGateway(w, "Catalog timed out", nil))

		resp := decodeError(t, w)
		assert.Equal(t, "Catalog timed out", resp.Message)
		assert.Nil(t, resp.Details)
	})
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name        string
		write       func(w http.ResponseWriter) error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "invalid form body",
			write:       func(w http.ResponseWriter) error { return WriteBadRequest(w, "Invalid request body", nil) },
			wantStatus:  http.StatusBadRequest,
			wantCode:    CodeBadRequest,
			wantMessage: "Invalid request body",
		},
		{
			name:        "anonymous API call",
			write:       func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			wantStatus:  http.StatusUnauthorized,
			wantCode:    CodeUnauthorized,
			wantMessage: "Authentication required",
		},
		{
			name:        "csrf failure",
			write:       func(w http.ResponseWriter) error { return WriteForbidden(w, "CSRF token validation failed") },
			wantStatus:  http.StatusForbidden,
			wantCode:    CodeForbidden,
			wantMessage: "CSRF token validation failed",
		},
		{
			name:        "unknown endpoint",
			write:       func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			wantStatus:  http.StatusNotFound,
			wantCode:    CodeNotFound,
			wantMessage: "Resource not found",
		},
		{
			name:        "book already checked out",
			write:       func(w http.ResponseWriter) error { return WriteConflict(w, "book is already checked out", nil) },
			wantStatus:  http.StatusConflict,
			wantCode:    CodeConflict,
			wantMessage: "book is already checked out",
		},
		{
			name:        "sign-in throttled",
			write:       func(w http.ResponseWriter) error { return WriteTooManyRequests(w, "", nil) },
			wantStatus:  http.StatusTooManyRequests,
			wantCode:    CodeRateLimited,
			wantMessage: "Rate limit exceeded",
		},
		{
			name:        "session could not be issued",
			write:       func(w http.ResponseWriter) error { return WriteInternalServerError(w, "Failed to start session") },
			wantStatus:  http.StatusInternalServerError,
			wantCode:    CodeInternal,
			wantMessage: "Failed to start session",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestWriteBadRequest_FieldDetails(t *testing.T) {
	w := httptest.NewRecorder()
	ve := &ValidationError{Message: "Validation failed", Fields: map[string]string{"email": "email must be a valid email"}}

	require.NoError(t, WriteBadRequest(w, ve.Message, ve.Details()))

	resp := decodeError(t, w)
	assert.Equal(t, "email must be a valid email", resp.Details["email"])
}
