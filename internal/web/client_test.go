package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDoSendsJSONToBaseURL(t *testing.T) {
	var gotPath, gotMethod, gotCT, gotCache string
	var gotBody map[string]string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		gotCache = r.Header.Get("Cache-Control")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true,"subscriber":{"email":"a@b.co"}}`))
	}))
	defer api.Close()

	client := NewClient(api.URL, time.Second)
	resp, err := client.Subscribe(context.Background(), "a@b.co")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/subscribe", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "no-store", gotCache)
	assert.Equal(t, "a@b.co", gotBody["email"])
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, resp.Data["ok"])
}

func TestClientDoReturnsAPIErrorWithBody(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error":"validation failed"}`))
	}))
	defer api.Close()

	resp, err := NewClient(api.URL, time.Second).Subscribe(context.Background(), "nope")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation failed", apiErr.Message)
	require.NotNil(t, resp)
	assert.Equal(t, false, resp.Data["ok"])
}

func TestClientDoFallsBackToStatusText(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer api.Close()

	_, err := NewClient(api.URL, time.Second).Health(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func TestClientDoTransportError(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	url := api.URL
	api.Close()

	resp, err := NewClient(url, time.Second).Health(context.Background())
	assert.Nil(t, resp)
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
