package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsletter-go/internal/logging"
)

func newTestServer(t *testing.T, apiBase string) *Server {
	t.Helper()
	logger := logging.NewLogger("error")
	logger.SetOutput(io.Discard)

	s, err := NewServer(&Config{
		Port:    "0",
		GinMode: gin.TestMode,
		Logger:  logger,
		Client:  NewClient(apiBase, time.Second),
	})
	require.NoError(t, err)
	return s
}

func fakeAPI(t *testing.T, health int) *httptest.Server {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(health)
			_, _ = w.Write([]byte(`{"ok":true,"version":"1.2.3","sha":"deadbeef"}`))
		case "/api/v1/subscribe":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["email"] == "taken@example.com" {
				_, _ = w.Write([]byte(`{"ok":true,"message":"already subscribed"}`))
				return
			}
			if !strings.Contains(body["email"], "@") {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"ok":false,"error":"validation failed"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true,"subscriber":{"email":"` + body["email"] + `"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(api.Close)
	return api
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func postForm(email string) *http.Request {
	form := url.Values{"email": {email}}
	req := httptest.NewRequest(http.MethodPost, "/subscribe", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIndexPage(t *testing.T) {
	api := fakeAPI(t, http.StatusOK)
	s := newTestServer(t, api.URL)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/subscribe"`)
	assert.Contains(t, w.Body.String(), api.URL)
}

func TestSubscribeFormPage(t *testing.T) {
	s := newTestServer(t, fakeAPI(t, http.StatusOK).URL)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/subscribe", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<form method="post" action="/subscribe">`)
	assert.NotContains(t, w.Body.String(), "outcome")
}

func TestSubscribeRendersSuccess(t *testing.T) {
	s := newTestServer(t, fakeAPI(t, http.StatusOK).URL)

	w := serve(s, postForm("new@example.com"))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `class="outcome ok"`)
	assert.Contains(t, body, "new@example.com")
}

func TestSubscribeRendersAlreadySubscribed(t *testing.T) {
	s := newTestServer(t, fakeAPI(t, http.StatusOK).URL)

	w := serve(s, postForm("taken@example.com"))

	assert.Contains(t, w.Body.String(), `class="outcome ok"`)
	assert.Contains(t, w.Body.String(), "already subscribed")
}

func TestSubscribeRendersAPIError(t *testing.T) {
	s := newTestServer(t, fakeAPI(t, http.StatusOK).URL)

	w := serve(s, postForm("not-an-email"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="outcome fail"`)
	assert.Contains(t, w.Body.String(), "validation failed")
}

func TestSubscribeRendersUnreachableAPI(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	base := api.URL
	api.Close()
	s := newTestServer(t, base)

	w := serve(s, postForm("a@b.co"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="outcome fail"`)
}

func TestHealthPageRendersAPIJSON(t *testing.T) {
	s := newTestServer(t, fakeAPI(t, http.StatusOK).URL)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deadbeef")
	assert.Contains(t, w.Body.String(), "1.2.3")
}

func TestHealthProxyPreservesStatus(t *testing.T) {
	s := newTestServer(t, fakeAPI(t, http.StatusServiceUnavailable).URL)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "deadbeef", body["sha"])
}

func TestHealthProxyUnreachableAPI(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	base := api.URL
	api.Close()
	s := newTestServer(t, base)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.NotEmpty(t, body["error"])
}

func TestStaticStylesheet(t *testing.T) {
	s := newTestServer(t, fakeAPI(t, http.StatusOK).URL)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "body")
}

func TestSubscribeRejectsOversizedForm(t *testing.T) {
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer api.Close()

	logger := logging.NewLogger("error")
	logger.SetOutput(io.Discard)
	s, err := NewServer(&Config{
		Port:      "0",
		GinMode:   gin.TestMode,
		BodyLimit: 128,
		Logger:    logger,
		Client:    NewClient(api.URL, time.Second),
	})
	require.NoError(t, err)

	w := serve(s, postForm(strings.Repeat("a", 512)+"@example.com"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request body too large")
	assert.Zero(t, calls.Load())

	w = serve(s, postForm("small@example.com"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), calls.Load())
}
