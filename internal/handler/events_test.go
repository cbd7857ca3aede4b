package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swipekit/swipekit/internal/sse"
)

func TestEventsHandler_ServeHTTP(t *testing.T) {
	t.Run("rejects malformed account_id", func(t *testing.T) {
		handler := NewEventsHandler(nil)

		req := httptest.NewRequest(http.MethodGet, "/api/events?account_id=abc", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid account_id")
	})

	t.Run("rejects negative account_id", func(t *testing.T) {
		handler := NewEventsHandler(nil)

		req := httptest.NewRequest(http.MethodGet, "/api/events?account_id=-3", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEventsHandler_sendEvent(t *testing.T) {
	t.Run("formats SSE event correctly", func(t *testing.T) {
		handler := &EventsHandler{}
		rec := httptest.NewRecorder()
		flusher := rec // httptest.ResponseRecorder implements http.Flusher

		data := map[string]any{
			"accountId": int64(7),
		}

		err := handler.sendEvent(rec, flusher, "connected", data)

		assert.NoError(t, err)
		body := rec.Body.String()
		assert.Contains(t, body, "event: connected\n")
		assert.Contains(t, body, "data: ")
		assert.Contains(t, body, `"accountId":7`)
	})
}

func TestEventsHandler_sendRawEvent(t *testing.T) {
	t.Run("writes event and data lines", func(t *testing.T) {
		handler := &EventsHandler{}
		rec := httptest.NewRecorder()
		flusher := rec

		event := sse.Event{
			Type:      "account_banned",
			AccountID: 7,
			Data:      json.RawMessage(`{"reason":"ban indicators detected"}`),
		}

		err := handler.sendRawEvent(rec, flusher, event)

		assert.NoError(t, err)
		body := rec.Body.String()
		assert.Contains(t, body, "event: account_banned\n")
		assert.Contains(t, body, `"accountId":7`)
		assert.Contains(t, body, "ban indicators detected")
		assert.Contains(t, body, "\n\n")
	})
}
