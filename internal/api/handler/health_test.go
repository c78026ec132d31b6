package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_Check(t *testing.T) {
	// Setup
	e := NewTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(nil)

	// Act
	err := h.Check(c)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"timestamp"`)
	assert.NotContains(t, rec.Body.String(), `"components"`)
}

func TestHealthHandler_Components(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("全て正常", func(t *testing.T) {
		e := NewTestEcho()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

		require.NoError(t, NewHealthHandler(map[string]HealthCheck{"postgres": ok, "redis": ok}).Check(c))

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, resp.Components)
	})

	t.Run("一部が停止していれば503", func(t *testing.T) {
		e := NewTestEcho()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

		require.NoError(t, NewHealthHandler(map[string]HealthCheck{"postgres": ok, "redis": down}).Check(c))

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "down", resp.Components["redis"])
		assert.Equal(t, "ok", resp.Components["postgres"])
	})
}
