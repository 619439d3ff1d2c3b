// Package mockapi provides testify-based mocks of the collaborators consumed by the
// resource controllers and the console router: the API gateway, the notification
// sink, the navigator, the session and the delete confirmation.
package mockapi

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/urlify/internal/models"
)

// GatewayMock is a testify mock of every gateway operation.
type GatewayMock struct {
	mock.Mock

	// OnListURLs, when set, replaces the generic mock handler for ListURLs.
	// Tests that need to hold a response back (e.g. to reorder concurrent
	// fetches) use it.
	OnListURLs func(ctx context.Context, page, size int) (*models.Page[models.URLRecord], error)
}

func (m *GatewayMock) Authenticate(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	session, _ := args.Get(0).(*models.Session)
	return session, args.Error(1)
}

func (m *GatewayMock) Register(ctx context.Context, username, email, password string) (*models.Session, error) {
	args := m.Called(ctx, username, email, password)
	session, _ := args.Get(0).(*models.Session)
	return session, args.Error(1)
}

// CreateShortURL mocks POST /urls/shorten.
func (m *GatewayMock) CreateShortURL(ctx context.Context, longURL string, expiryHours *int) (*models.URLRecord, error) {
	args := m.Called(ctx, longURL, expiryHours)
	record, _ := args.Get(0).(*models.URLRecord)
	return record, args.Error(1)
}

// ListURLs mocks GET /urls/my-urls.
func (m *GatewayMock) ListURLs(ctx context.Context, page, size int) (*models.Page[models.URLRecord], error) {
	if m.OnListURLs != nil {
		return m.OnListURLs(ctx, page, size)
	}
	args := m.Called(ctx, page, size)
	result, _ := args.Get(0).(*models.Page[models.URLRecord])
	return result, args.Error(1)
}

func (m *GatewayMock) DeleteURL(ctx context.Context, shortCode string) (string, error) {
	args := m.Called(ctx, shortCode)
	return args.String(0), args.Error(1)
}

func (m *GatewayMock) FetchAnalytics(ctx context.Context, shortCode string) (*models.AnalyticsRecord, error) {
	args := m.Called(ctx, shortCode)
	record, _ := args.Get(0).(*models.AnalyticsRecord)
	return record, args.Error(1)
}

func (m *GatewayMock) FetchAllAnalytics(ctx context.Context) ([]models.AnalyticsRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]models.AnalyticsRecord)
	return records, args.Error(1)
}

// NotifierMock records toasts.
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Success(message string) {
	m.Called(message)
}

func (m *NotifierMock) Error(message string) {
	m.Called(message)
}

type NavigatorMock struct {
	mock.Mock
}

func (m *NavigatorMock) Navigate(ctx context.Context, route string) {
	m.Called(ctx, route)
}

// SessionsMock mocks the part of the session store the gateway depends on.
type SessionsMock struct {
	mock.Mock
}

func (m *SessionsMock) Token() string {
	args := m.Called()
	return args.String(0)
}

func (m *SessionsMock) Logout() bool {
	args := m.Called()
	return args.Bool(0)
}

type ConfirmerMock struct {
	mock.Mock
}

func (m *ConfirmerMock) Confirm(ctx context.Context, shortCode string) bool {
	args := m.Called(ctx, shortCode)
	return args.Bool(0)
}
