package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/urlify/internal/db/memorystorage"
	"github.com/patric-chuzhbe/urlify/internal/mockapi"
	"github.com/patric-chuzhbe/urlify/internal/models"
	"github.com/patric-chuzhbe/urlify/internal/session"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(request *http.Request) (*http.Response, error) {
	return f(request)
}

func newSessions(t *testing.T) *session.Store {
	t.Helper()
	persistent, err := memorystorage.New()
	require.NoError(t, err)
	return session.New(persistent)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestBearerTokenIsReadPerCall(t *testing.T) {
	var seen []string
	var mu sync.Mutex

	router := chi.NewRouter()
	router.Get("/api/urls/my-urls", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(AuthorizationHeader))
		mu.Unlock()
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		writeJSON(t, w, http.StatusOK, models.Page[models.URLRecord]{TotalPages: 3, Number: 2, Size: 10})
	})
	server := httptest.NewServer(router)
	defer server.Close()

	sessions := newSessions(t)
	navigator := &mockapi.NavigatorMock{}
	theGateway := New(server.URL+"/api", time.Second, sessions, navigator)

	_, err := theGateway.ListURLs(context.Background(), 2, 10)
	require.NoError(t, err)

	require.NoError(t, sessions.Login("tok-1", models.User{ID: "1"}))
	page, err := theGateway.ListURLs(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.NotNil(t, page.Content)

	require.NoError(t, sessions.Login("tok-2", models.User{ID: "1"}))
	_, err = theGateway.ListURLs(context.Background(), 2, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer tok-1", "Bearer tok-2"}, seen)
	navigator.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestUnauthorizedClearsSessionAndNavigates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	sessions := newSessions(t)
	require.NoError(t, sessions.Login("tok", models.User{ID: "1"}))

	navigator := &mockapi.NavigatorMock{}
	navigator.On("Navigate", mock.Anything, LoginRoute).Return()

	theGateway := New(server.URL, time.Second, sessions, navigator)
	_, err := theGateway.FetchAllAnalytics(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
	assert.False(t, sessions.IsAuthenticated())
	navigator.AssertExpectations(t)

	var resourceErr *models.ResourceError
	require.True(t, errors.As(err, &resourceErr))
	assert.Equal(t, "token expired", resourceErr.Message)
}

func TestConcurrentUnauthorizedClearsOnce(t *testing.T) {
	const calls = 16

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sessions := newSessions(t)
	require.NoError(t, sessions.Login("tok", models.User{ID: "1"}))

	var cleared atomic.Int32
	sessions.Subscribe(func(current *models.Session) {
		if current == nil {
			cleared.Add(1)
		}
	})

	navigator := &mockapi.NavigatorMock{}
	navigator.On("Navigate", mock.Anything, LoginRoute).Return().Times(calls)

	theGateway := New(server.URL, 5*time.Second, sessions, navigator)

	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := theGateway.ListURLs(context.Background(), 0, 10)
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	}
	assert.Equal(t, int32(1), cleared.Load())
	navigator.AssertExpectations(t)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMessage string
	}{
		{
			name:        "json message",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"message":"Invalid URL format"}`,
			wantMessage: "Invalid URL format",
		},
		{
			name:        "json error only",
			status:      http.StatusInternalServerError,
			contentType: "application/json",
			body:        `{"status":500,"error":"Internal Server Error"}`,
			wantMessage: "Internal Server Error",
		},
		{
			name:        "plain text",
			status:      http.StatusNotFound,
			contentType: "text/plain",
			body:        "URL not found\n",
			wantMessage: "URL not found",
		},
		{
			name:        "empty body",
			status:      http.StatusForbidden,
			contentType: "text/plain",
			body:        "",
			wantMessage: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", test.contentType)
				w.WriteHeader(test.status)
				_, _ = io.WriteString(w, test.body)
			}))
			defer server.Close()

			navigator := &mockapi.NavigatorMock{}
			theGateway := New(server.URL, time.Second, newSessions(t), navigator)

			_, err := theGateway.CreateShortURL(context.Background(), "https://example.com", nil)

			var resourceErr *models.ResourceError
			require.True(t, errors.As(err, &resourceErr))
			assert.Equal(t, test.status, resourceErr.StatusCode)
			assert.Equal(t, test.wantMessage, resourceErr.Message)
			assert.False(t, errors.Is(err, models.ErrUnauthorized))
			navigator.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
		})
	}
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	theGateway := New(server.URL, time.Second, newSessions(t), &mockapi.NavigatorMock{})

	_, err := theGateway.FetchAnalytics(context.Background(), "abc")

	var transportErr *models.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestUndecodableSuccessBody(t *testing.T) {
	transport := roundTripFunc(func(request *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader("<html>oops</html>")),
			Request:    request,
		}, nil
	})

	theGateway := New("http://api.invalid/api", time.Second, newSessions(t), &mockapi.NavigatorMock{}, WithTransport(transport))

	_, err := theGateway.ListURLs(context.Background(), 0, 10)

	var transportErr *models.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		wantMalformed bool
	}{
		{
			name:     "token and user",
			response: `{"token":"jwt","user":{"id":"u1","username":"ann","email":"ann@example.com"}}`,
		},
		{
			name:          "no user",
			response:      `{"token":"jwt"}`,
			wantMalformed: true,
		},
		{
			name:          "no token",
			response:      `{"user":{"id":"u1"}}`,
			wantMalformed: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			router := chi.NewRouter()
			router.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
				var body models.LoginRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "ann@example.com", body.Email)
				assert.Equal(t, "secret", body.Password)
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, test.response)
			})
			server := httptest.NewServer(router)
			defer server.Close()

			theGateway := New(server.URL, time.Second, newSessions(t), &mockapi.NavigatorMock{})

			got, err := theGateway.Authenticate(context.Background(), "ann@example.com", "secret")
			if test.wantMalformed {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				var transportErr *models.TransportError
				assert.True(t, errors.As(err, &transportErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "jwt", got.Token)
			assert.Equal(t, "ann", got.User.Username)
		})
	}
}

func TestCreateShortURLSendsNullExpiry(t *testing.T) {
	var bodies []string
	router := chi.NewRouter()
	router.Post("/urls/shorten", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(raw))
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"id":          "1",
			"shortCode":   "abc123",
			"originalUrl": "https://example.com",
			"createdAt":   "2024-01-01T10:00:00",
			"expiresAt":   nil,
			"clicks":      0,
		})
	})
	server := httptest.NewServer(router)
	defer server.Close()

	theGateway := New(server.URL, time.Second, newSessions(t), &mockapi.NavigatorMock{})

	record, err := theGateway.CreateShortURL(context.Background(), "https://example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc123", record.ShortCode)
	assert.Nil(t, record.ExpiresAt)

	hours := 3
	_, err = theGateway.CreateShortURL(context.Background(), "https://example.com", &hours)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"url":"https://example.com","expiryHours":null}`, bodies[0])
	assert.JSONEq(t, `{"url":"https://example.com","expiryHours":3}`, bodies[1])
}

func TestDeleteURLReturnsAck(t *testing.T) {
	router := chi.NewRouter()
	router.Delete("/urls/{shortCode}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", chi.URLParam(r, "shortCode"))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "URL deleted successfully")
	})
	server := httptest.NewServer(router)
	defer server.Close()

	theGateway := New(server.URL, time.Second, newSessions(t), &mockapi.NavigatorMock{})

	ack, err := theGateway.DeleteURL(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "URL deleted successfully", ack)
}

func TestStagesInIsolation(t *testing.T) {
	tests := []struct {
		name         string
		token        string
		status       int
		wasSignedIn  bool
		wantAuthSent string
		wantLogout   bool
	}{
		{name: "success keeps the session", token: "tok", status: http.StatusOK, wantAuthSent: "Bearer tok"},
		{name: "401 clears the session", token: "tok", status: http.StatusUnauthorized, wasSignedIn: true, wantAuthSent: "Bearer tok", wantLogout: true},
		{name: "401 after the session was already cleared", status: http.StatusUnauthorized, wantLogout: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var sentAuth string
			transport := roundTripFunc(func(request *http.Request) (*http.Response, error) {
				sentAuth = request.Header.Get(AuthorizationHeader)
				return &http.Response{
					StatusCode: test.status,
					Header:     http.Header{"Content-Type": []string{"text/plain"}},
					Body:       io.NopCloser(strings.NewReader("")),
					Request:    request,
				}, nil
			})

			sessions := &mockapi.SessionsMock{}
			sessions.On("Token").Return(test.token)
			navigator := &mockapi.NavigatorMock{}
			if test.wantLogout {
				sessions.On("Logout").Return(test.wasSignedIn).Once()
				navigator.On("Navigate", mock.Anything, LoginRoute).Return().Once()
			}

			client := resty.New().
				SetTransport(transport).
				OnBeforeRequest(BearerToken(sessions)).
				OnAfterResponse(Unauthorized(sessions, navigator))

			_, err := client.R().Get("http://api.invalid/api/analytics/all")

			assert.Equal(t, test.wantAuthSent, sentAuth)
			if test.wantLogout {
				assert.ErrorIs(t, err, models.ErrUnauthorized)
			} else {
				assert.NoError(t, err)
				sessions.AssertNotCalled(t, "Logout")
			}
			sessions.AssertExpectations(t)
			navigator.AssertExpectations(t)
		})
	}
}
