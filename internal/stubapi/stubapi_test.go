package stubapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	client  *resty.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := NewStore(nil)
	handler := New(store, NewAuth([]byte("test-signing-key"), time.Hour), "http://short.test")
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testServer{handler: handler, client: resty.New().SetBaseURL(server.URL)}
}

func (ts *testServer) register(t *testing.T, email string) string {
	t.Helper()
	var result authResponse
	response, err := ts.client.R().
		SetBody(registerRequest{Username: "alice", Email: email, Password: "secret1"}).
		SetResult(&result).
		Post("/api/auth/register")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode(), response.String())
	require.NotEmpty(t, result.Token)
	require.NotNil(t, result.User)
	return result.Token
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice@example.com")

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "duplicate registration",
			path:       "/api/auth/register",
			body:       registerRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Email already registered",
		},
		{
			name:       "invalid email",
			path:       "/api/auth/register",
			body:       registerRequest{Username: "bob", Email: "bob", Password: "secret1"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Email should be valid",
		},
		{
			name:       "login",
			path:       "/api/auth/login",
			body:       loginRequest{Email: "alice@example.com", Password: "secret1"},
			wantStatus: http.StatusOK,
			wantMsg:    "Login successful",
		},
		{
			name:       "bad password",
			path:       "/api/auth/login",
			body:       loginRequest{Email: "alice@example.com", Password: "nope"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Invalid email or password",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var result struct {
				Message string `json:"message"`
			}
			response, err := ts.client.R().
				SetBody(test.body).
				SetResult(&result).
				SetError(&result).
				Post(test.path)
			require.NoError(t, err)
			assert.Equal(t, test.wantStatus, response.StatusCode())
			assert.Equal(t, test.wantMsg, result.Message)
		})
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/urls/my-urls", "/api/analytics/all", "/api/analytics/abc"} {
		response, err := ts.client.R().Get(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode(), path)
	}

	response, err := ts.client.R().SetAuthToken("garbage").Get("/api/urls/my-urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
}

func TestURLLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice@example.com")

	var created urlResponse
	response, err := ts.client.R().
		SetAuthToken(token).
		SetBody(map[string]interface{}{"url": "https://example.com/page", "expiryHours": nil}).
		SetResult(&created).
		Post("/api/urls/shorten")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode(), response.String())
	assert.Len(t, created.ShortCode, AmtOfSymbolsToGenerate)
	assert.Equal(t, "http://short.test/"+created.ShortCode, created.ShortURL)
	assert.Nil(t, created.ExpiresAt)
	_, err = time.Parse(timestampLayout, created.CreatedAt)
	assert.NoError(t, err, "createdAt is zone-less")

	request := httptest.NewRequest(http.MethodGet, "/"+created.ShortCode, nil)
	request.Header.Set("X-Forwarded-For", "8.8.8.8")
	request.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, request)
	result := w.Result()
	defer result.Body.Close()
	assert.Equal(t, http.StatusFound, result.StatusCode)
	assert.Equal(t, "https://example.com/page", result.Header.Get("Location"))

	var page pageResponse
	response, err = ts.client.R().
		SetAuthToken(token).
		SetQueryParams(map[string]string{"page": "0", "size": "10"}).
		SetResult(&page).
		Get("/api/urls/my-urls")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode())
	assert.Equal(t, int64(1), page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(1), page.Content[0].Clicks)

	var all []analyticsResponse
	response, err = ts.client.R().SetAuthToken(token).SetResult(&all).Get("/api/analytics/all")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode())
	require.Len(t, all, 1)
	require.Len(t, all[0].RecentClicks, 1)
	assert.Equal(t, "8.8.8.8", all[0].RecentClicks[0].IPAddress)
	assert.Equal(t, "test-agent", all[0].RecentClicks[0].UserAgent)

	response, err = ts.client.R().SetAuthToken(token).Delete("/api/urls/" + created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
	assert.Equal(t, DeleteAck, response.String())

	response, err = ts.client.R().SetAuthToken(token).Get("/api/analytics/" + created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, response.StatusCode())
}

func TestShortenRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice@example.com")

	tests := []struct {
		name    string
		body    map[string]interface{}
		wantMsg string
	}{
		{name: "missing url", body: map[string]interface{}{"url": ""}, wantMsg: "URL is required"},
		{name: "private host", body: map[string]interface{}{"url": "http://10.0.0.1/"}, wantMsg: "Private IP addresses are not allowed"},
		{name: "non-positive expiry", body: map[string]interface{}{"url": "https://example.com", "expiryHours": 0}, wantMsg: "Expiry hours must be positive"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var result errorResponse
			response, err := ts.client.R().
				SetAuthToken(token).
				SetBody(test.body).
				SetError(&result).
				Post("/api/urls/shorten")
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, response.StatusCode())
			assert.Equal(t, test.wantMsg, result.Message)
		})
	}
}

func TestOtherUsersURLsAreForbidden(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register(t, "alice@example.com")
	intruder := ts.register(t, "mallory@example.com")

	var created urlResponse
	_, err := ts.client.R().
		SetAuthToken(owner).
		SetBody(map[string]interface{}{"url": "https://example.com"}).
		SetResult(&created).
		Post("/api/urls/shorten")
	require.NoError(t, err)

	response, err := ts.client.R().SetAuthToken(intruder).Delete("/api/urls/" + created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, response.StatusCode())
}
