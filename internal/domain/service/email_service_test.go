package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEmailServiceSend(t *testing.T) {
	var got EmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/email", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewHTTPEmailService(srv.URL+"/", time.Second)
	err := svc.Send(context.Background(), "buyer@example.com", "Offer accepted", "Your offer was accepted")

	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", got.To)
	assert.Equal(t, "Offer accepted", got.Subject)
}

func TestHTTPEmailServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewHTTPEmailService(srv.URL, time.Second)
	err := svc.Send(context.Background(), "buyer@example.com", "s", "t")
	assert.Error(t, err)
}

func TestHTTPEmailServiceSkipsEmptyRecipient(t *testing.T) {
	svc := NewHTTPEmailService("http://127.0.0.1:0", time.Second)
	assert.NoError(t, svc.Send(context.Background(), "", "s", "t"))
}
