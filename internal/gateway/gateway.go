// Package gateway is the only way the console talks to the remote URL shortener API.
// Every call passes through the same pipeline: correlation id and bearer token on the
// way out, authorization-failure handling and status mapping on the way back.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/models"
	"github.com/patric-chuzhbe/urlify/internal/navigation"
)

// ErrMalformedResponse is wrapped into a *models.TransportError when a 2xx answer
// lacks what the operation needs.
var ErrMalformedResponse = errors.New("malformed response")

type sessionStore interface {
	Token() string
	Logout() bool
}

type Gateway struct {
	client *resty.Client
}

type InitOption func(*initOptions)

type initOptions struct {
	transport http.RoundTripper
}

// WithTransport replaces the HTTP transport, e.g. with a fake in tests.
func WithTransport(transport http.RoundTripper) InitOption {
	return func(options *initOptions) {
		options.transport = transport
	}
}

func New(
	baseURL string,
	timeout time.Duration,
	sessions sessionStore,
	navigator navigation.Navigator,
	optionsProto ...InitOption,
) *Gateway {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(logger.Log)
	if options.transport != nil {
		client.SetTransport(options.transport)
	}

	client.
		OnBeforeRequest(RequestID).
		OnBeforeRequest(BearerToken(sessions)).
		OnAfterResponse(Trace).
		OnAfterResponse(Unauthorized(sessions, navigator)).
		OnAfterResponse(Status)

	return &Gateway{client: client}
}

func (g *Gateway) request(ctx context.Context) *resty.Request {
	return g.client.R().SetContext(ctx)
}

// classify keeps errors produced by the response stages and reports everything else
// (network failures, undecodable bodies) as a transport failure.
func classify(err error) error {
	var resourceErr *models.ResourceError
	if errors.As(err, &resourceErr) {
		return resourceErr
	}
	var transportErr *models.TransportError
	if errors.As(err, &transportErr) {
		return transportErr
	}
	return &models.TransportError{Err: err}
}

func (g *Gateway) authenticate(ctx context.Context, path string, body interface{}) (*models.Session, error) {
	var result models.AuthResponse
	_, err := g.request(ctx).
		SetBody(body).
		ForceContentType("application/json").
		SetResult(&result).
		Post(path)
	if err != nil {
		return nil, classify(err)
	}

	if result.Token == "" || result.User == nil {
		return nil, &models.TransportError{
			Err: fmt.Errorf("in internal/gateway/gateway.go/authenticate(): %s without token or user: %w", path, ErrMalformedResponse),
		}
	}

	return &models.Session{Token: result.Token, User: *result.User}, nil
}

func (g *Gateway) Authenticate(ctx context.Context, email, password string) (*models.Session, error) {
	return g.authenticate(ctx, "/auth/login", models.LoginRequest{Email: email, Password: password})
}

func (g *Gateway) Register(ctx context.Context, username, email, password string) (*models.Session, error) {
	return g.authenticate(
		ctx,
		"/auth/register",
		models.RegisterRequest{Username: username, Email: email, Password: password},
	)
}

// CreateShortURL sends expiryHours as null when it is nil.
func (g *Gateway) CreateShortURL(ctx context.Context, longURL string, expiryHours *int) (*models.URLRecord, error) {
	var result models.URLRecord
	_, err := g.request(ctx).
		SetBody(models.ShortenRequest{URL: longURL, ExpiryHours: expiryHours}).
		ForceContentType("application/json").
		SetResult(&result).
		Post("/urls/shorten")
	if err != nil {
		return nil, classify(err)
	}
	if result.ShortCode == "" {
		return nil, &models.TransportError{
			Err: fmt.Errorf("in internal/gateway/gateway.go/CreateShortURL(): no short code: %w", ErrMalformedResponse),
		}
	}

	return &result, nil
}

// ListURLs fetches one zero-based page of the user's URLs.
func (g *Gateway) ListURLs(ctx context.Context, page, size int) (*models.Page[models.URLRecord], error) {
	var result models.Page[models.URLRecord]
	_, err := g.request(ctx).
		SetQueryParams(map[string]string{
			"page": strconv.Itoa(page),
			"size": strconv.Itoa(size),
		}).
		ForceContentType("application/json").
		SetResult(&result).
		Get("/urls/my-urls")
	if err != nil {
		return nil, classify(err)
	}
	if result.Content == nil {
		result.Content = []models.URLRecord{}
	}

	return &result, nil
}

// DeleteURL returns the acknowledgement text of the service.
func (g *Gateway) DeleteURL(ctx context.Context, shortCode string) (string, error) {
	response, err := g.request(ctx).
		SetPathParam("shortCode", shortCode).
		Delete("/urls/{shortCode}")
	if err != nil {
		return "", classify(err)
	}

	ack := strings.TrimSpace(response.String())
	var parsed messageBody
	if strings.HasPrefix(ack, "{") && json.Unmarshal([]byte(ack), &parsed) == nil && parsed.Message != "" {
		ack = parsed.Message
	}

	return ack, nil
}

func (g *Gateway) FetchAnalytics(ctx context.Context, shortCode string) (*models.AnalyticsRecord, error) {
	var result models.AnalyticsRecord
	_, err := g.request(ctx).
		SetPathParam("shortCode", shortCode).
		ForceContentType("application/json").
		SetResult(&result).
		Get("/analytics/{shortCode}")
	if err != nil {
		return nil, classify(err)
	}

	return &result, nil
}

func (g *Gateway) FetchAllAnalytics(ctx context.Context) ([]models.AnalyticsRecord, error) {
	var result []models.AnalyticsRecord
	_, err := g.request(ctx).
		ForceContentType("application/json").
		SetResult(&result).
		Get("/analytics/all")
	if err != nil {
		return nil, classify(err)
	}
	if result == nil {
		result = []models.AnalyticsRecord{}
	}

	return result, nil
}
