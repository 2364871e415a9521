package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlineshop/backend/internal/audit"
)

func fixtureEntry() audit.Entry {
	return audit.Entry{
		Action:     "checkout",
		EntityName: "order",
		EntityID:   "order-1",
		UserID:     "user-1",
		UserEmail:  "jo@example.com",
		NewValues:  `{"order_total":"32.49"}`,
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		IPAddress:  "203.0.113.7",
		UserAgent:  "test-agent",
	}
}

func TestClient_Submit_RemoteSuccess(t *testing.T) {
	var received audit.Entry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audit-logs", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, "42")
	}))
	defer srv.Close()

	var fallbackBuf bytes.Buffer
	client := audit.NewClient(srv.URL, time.Second, zerolog.New(&fallbackBuf))

	receipt := client.Submit(context.Background(), fixtureEntry())

	require.NotNil(t, receipt.RemoteID)
	assert.Equal(t, int64(42), *receipt.RemoteID)
	assert.False(t, receipt.FellBack)
	assert.Equal(t, "checkout", received.Action)
	assert.Equal(t, "order-1", received.EntityID)
	assert.Zero(t, fallbackBuf.Len(), "no local record on remote success")
}

func TestClient_Submit_FallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var fallbackBuf bytes.Buffer
	client := audit.NewClient(srv.URL, time.Second, zerolog.New(&fallbackBuf))

	receipt := client.Submit(context.Background(), fixtureEntry())

	assert.Nil(t, receipt.RemoteID)
	assert.True(t, receipt.FellBack)
	assert.Contains(t, fallbackBuf.String(), `"entity_id":"order-1"`)
	assert.Contains(t, fallbackBuf.String(), `"user_email":"jo@example.com"`)
}

func TestClient_Submit_FallsBackOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable from the start

	var fallbackBuf bytes.Buffer
	client := audit.NewClient(srv.URL, time.Second, zerolog.New(&fallbackBuf))

	receipt := client.Submit(context.Background(), fixtureEntry())

	assert.Nil(t, receipt.RemoteID)
	assert.True(t, receipt.FellBack)
	assert.Contains(t, fallbackBuf.String(), "audit entry recorded locally")
}

func TestClient_Submit_FallsBackOnNonNumericResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not-an-id")
	}))
	defer srv.Close()

	var fallbackBuf bytes.Buffer
	client := audit.NewClient(srv.URL, time.Second, zerolog.New(&fallbackBuf))

	receipt := client.Submit(context.Background(), fixtureEntry())

	assert.Nil(t, receipt.RemoteID)
	assert.True(t, receipt.FellBack)
}
