// Package router is the console's view layer: it maps browser and JSON requests onto
// the session store, the URL controller and the analytics aggregator, and renders
// their state as JSON view models.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/urlify/internal/analytics"
	"github.com/patric-chuzhbe/urlify/internal/guard"
	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/models"
	"github.com/patric-chuzhbe/urlify/internal/navigation"
	"github.com/patric-chuzhbe/urlify/internal/notifications"
	"github.com/patric-chuzhbe/urlify/internal/session"
	"github.com/patric-chuzhbe/urlify/internal/urlcontroller"
)

const (
	DashboardRoute  = "/dashboard"
	DefaultQRSize   = 256
	MaxQRSize       = 1024
	fallbackLogin   = "Login failed"
	fallbackSignup  = "Registration failed"
	confirmedDelete = "yes"
)

type sessionStore interface {
	IsAuthenticated() bool
	Login(token string, user models.User) error
	Logout() bool
	User() (models.User, bool)
	Subscribe(fn session.Listener) func()
}

type authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.Session, error)
	Register(ctx context.Context, username, email, password string) (*models.Session, error)
}

type urlController interface {
	Create(ctx context.Context, rawURL string, expiry *time.Time) (*urlcontroller.CreateResult, error)
	GoToPage(ctx context.Context, page int) (urlcontroller.Listing, error)
	Delete(ctx context.Context, shortCode string, confirmer urlcontroller.Confirmer) (string, error)
	Listing() urlcontroller.Listing
	QRCode(shortCode string, size int) ([]byte, error)
}

type analyticsAggregator interface {
	Report(ctx context.Context) analytics.Report
	Item(ctx context.Context, shortCode string) (*analytics.Item, error)
}

type inbox interface {
	Drain() []notifications.Notification
}

type Router struct {
	sessions    sessionStore
	auth        authenticator
	urls        urlController
	analytics   analyticsAggregator
	inbox       inbox
	guard       *guard.Guard
	backendRoot string
	location    *time.Location

	mu          sync.Mutex
	lastCreated *urlcontroller.CreateResult
}

type InitOption func(*Router)

// WithLocation sets the zone expiry dates without an offset are read in.
func WithLocation(location *time.Location) InitOption {
	return func(r *Router) {
		r.location = location
	}
}

type loginView struct {
	View          string `json:"view"`
	Authenticated bool   `json:"authenticated"`
}

type dashboardView struct {
	View        string                      `json:"view"`
	User        models.User                 `json:"user"`
	LastCreated *urlcontroller.CreateResult `json:"lastCreated"`
}

type urlsView struct {
	View    string                `json:"view"`
	Listing urlcontroller.Listing `json:"listing"`
	HasPrev bool                  `json:"hasPrev"`
	HasNext bool                  `json:"hasNext"`
}

type deleteView struct {
	Message string                `json:"message"`
	Listing urlcontroller.Listing `json:"listing"`
}

type errorView struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// New builds the console handler. backendRoot is where unknown single-segment paths
// (short codes) are forwarded to.
func New(
	sessions sessionStore,
	auth authenticator,
	urls urlController,
	aggregator analyticsAggregator,
	notificationsInbox inbox,
	backendRoot string,
	optionsProto ...InitOption,
) http.Handler {
	rt := &Router{
		sessions:    sessions,
		auth:        auth,
		urls:        urls,
		analytics:   aggregator,
		inbox:       notificationsInbox,
		guard:       guard.New(sessions),
		backendRoot: strings.TrimRight(backendRoot, "/"),
		location:    time.Local,
	}
	for _, protoOption := range optionsProto {
		protoOption(rt)
	}
	sessions.Subscribe(rt.forgetOnSignOut)

	router := chi.NewRouter()
	router.Use(
		middleware.Recoverer,
		logger.WithLoggingHTTPMiddleware,
		middleware.Compress(5, "application/json"),
		withNavigation,
	)

	router.Get(`/`, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, DashboardRoute, http.StatusTemporaryRedirect)
	})
	router.Get(guard.LoginRoute, rt.GetLogin)
	router.Post(guard.LoginRoute, rt.PostLogin)
	router.Get(`/register`, rt.GetRegister)
	router.Post(`/register`, rt.PostRegister)
	router.Post(`/logout`, rt.PostLogout)
	router.Get(`/notifications`, rt.GetNotifications)

	router.Group(func(r chi.Router) {
		r.Use(rt.guard.Middleware)
		r.Get(DashboardRoute, rt.GetDashboard)
		r.Post(DashboardRoute, rt.PostDashboard)
		r.Get(`/urls`, rt.GetUrls)
		r.Post(`/urls/{shortCode}/delete`, rt.PostUrlsDelete)
		r.Get(`/urls/{shortCode}/qr`, rt.GetUrlsQr)
		r.Get(`/analytics`, rt.GetAnalytics)
		r.Get(`/analytics/{shortCode}`, rt.GetAnalyticsItem)
	})

	router.Get(`/{shortCode}`, rt.GetRedirecttobackend)

	return router
}

// withNavigation gives every request a place where a route change requested while
// handling it (e.g. by the gateway after a 401) can be recorded.
func withNavigation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := navigation.WithRecorder(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// navigated performs the route change requested during the request, if any.
func navigated(w http.ResponseWriter, r *http.Request) bool {
	recorder, ok := navigation.RecorderFrom(r.Context())
	if !ok {
		return false
	}
	route, requested := recorder.Route()
	if !requested {
		return false
	}

	if route == guard.LoginRoute {
		guard.SendToLogin(w, r)
		return true
	}
	http.Redirect(w, r, route, http.StatusSeeOther)
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(w).Encode()`: ", zap.Error(err))
	}
}

func statusOf(err error) int {
	var validationErr *models.ValidationError
	var resourceErr *models.ResourceError
	var transportErr *models.TransportError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, urlcontroller.ErrDeleteNotConfirmed):
		return http.StatusBadRequest
	case errors.As(err, &resourceErr):
		return resourceErr.StatusCode
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeFailure(w http.ResponseWriter, err error, fallback string) {
	view := errorView{Error: models.UserMessage(err, fallback)}
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		view.Field = validationErr.Field
	}
	writeJSON(w, statusOf(err), view)
}

// readInput returns the submitted fields of a form post or a flat JSON object.
func readInput(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		result := map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	result := make(map[string]string, len(r.Form))
	for key := range r.Form {
		result[key] = strings.TrimSpace(r.Form.Get(key))
	}
	return result, nil
}

func badInput(w http.ResponseWriter, err error) {
	logger.Log.Debugln("Error calling the `readInput()`: ", zap.Error(err))
	writeJSON(w, http.StatusBadRequest, errorView{Error: "Malformed request"})
}

func required(input map[string]string, fields ...string) error {
	for _, field := range fields {
		if input[field] == "" {
			return &models.ValidationError{Field: field, Message: "Please enter your " + field}
		}
	}
	return nil
}

func (rt *Router) GetLogin(w http.ResponseWriter, r *http.Request) {
	if rt.sessions.IsAuthenticated() {
		http.Redirect(w, r, DashboardRoute, http.StatusTemporaryRedirect)
		return
	}
	writeJSON(w, http.StatusOK, loginView{View: "login"})
}

func (rt *Router) GetRegister(w http.ResponseWriter, r *http.Request) {
	if rt.sessions.IsAuthenticated() {
		http.Redirect(w, r, DashboardRoute, http.StatusTemporaryRedirect)
		return
	}
	writeJSON(w, http.StatusOK, loginView{View: "register"})
}

// signedIn stores the session and moves on to the dashboard.
func (rt *Router) signedIn(w http.ResponseWriter, r *http.Request, session *models.Session) {
	if err := rt.sessions.Login(session.Token, session.User); err != nil {
		logger.Log.Debugln("Error calling the `rt.sessions.Login()`: ", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorView{Error: "Failed to store the session"})
		return
	}
	http.Redirect(w, r, DashboardRoute, http.StatusSeeOther)
}

// PostLogin exchanges credentials for a session. A rejected login answers with the
// service's message instead of navigating: the user already is on the login page.
func (rt *Router) PostLogin(w http.ResponseWriter, r *http.Request) {
	input, err := readInput(r)
	if err != nil {
		badInput(w, err)
		return
	}
	if err := required(input, "email", "password"); err != nil {
		writeFailure(w, err, fallbackLogin)
		return
	}

	session, err := rt.auth.Authenticate(r.Context(), input["email"], input["password"])
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.auth.Authenticate()`: ", zap.Error(err))
		writeFailure(w, err, fallbackLogin)
		return
	}

	rt.signedIn(w, r, session)
}

func (rt *Router) PostRegister(w http.ResponseWriter, r *http.Request) {
	input, err := readInput(r)
	if err != nil {
		badInput(w, err)
		return
	}
	if err := required(input, "username", "email", "password"); err != nil {
		writeFailure(w, err, fallbackSignup)
		return
	}

	session, err := rt.auth.Register(r.Context(), input["username"], input["email"], input["password"])
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.auth.Register()`: ", zap.Error(err))
		writeFailure(w, err, fallbackSignup)
		return
	}

	rt.signedIn(w, r, session)
}

// forgetOnSignOut drops per-user view state whenever the session ends, including
// logouts forced by the gateway.
func (rt *Router) forgetOnSignOut(current *models.Session) {
	if current != nil {
		return
	}

	rt.mu.Lock()
	rt.lastCreated = nil
	rt.mu.Unlock()
}

func (rt *Router) PostLogout(w http.ResponseWriter, r *http.Request) {
	rt.sessions.Logout()
	http.Redirect(w, r, guard.LoginRoute, http.StatusSeeOther)
}

func (rt *Router) GetNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.inbox.Drain())
}

func (rt *Router) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := rt.sessions.User()

	rt.mu.Lock()
	lastCreated := rt.lastCreated
	rt.mu.Unlock()

	writeJSON(w, http.StatusOK, dashboardView{View: "dashboard", User: user, LastCreated: lastCreated})
}

// PostDashboard creates a short URL from the "url" field and the optional "expiry"
// field (a datetime-local value or RFC 3339).
func (rt *Router) PostDashboard(w http.ResponseWriter, r *http.Request) {
	input, err := readInput(r)
	if err != nil {
		badInput(w, err)
		return
	}

	expiry, err := urlcontroller.ParseExpiry(input["expiry"], rt.location)
	if err != nil {
		writeFailure(w, err, urlcontroller.FallbackCreate)
		return
	}

	created, err := rt.urls.Create(r.Context(), input["url"], expiry)
	if err != nil {
		if navigated(w, r) {
			return
		}
		writeFailure(w, err, urlcontroller.FallbackCreate)
		return
	}

	rt.mu.Lock()
	rt.lastCreated = created
	rt.mu.Unlock()

	writeJSON(w, http.StatusCreated, created)
}

func toURLsView(listing urlcontroller.Listing) urlsView {
	return urlsView{
		View:    "urls",
		Listing: listing,
		HasPrev: listing.Page > 0,
		HasNext: listing.Page < listing.TotalPages-1,
	}
}

// GetUrls shows the zero-based page given by the "page" query parameter.
func (rt *Router) GetUrls(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 0
	}

	listing, err := rt.urls.GoToPage(r.Context(), page)
	switch {
	case err == nil, errors.Is(err, urlcontroller.ErrStaleResponse):
	case navigated(w, r):
		return
	default:
		writeFailure(w, err, urlcontroller.FallbackList)
		return
	}

	writeJSON(w, http.StatusOK, toURLsView(listing))
}

func (rt *Router) PostUrlsDelete(w http.ResponseWriter, r *http.Request) {
	input, err := readInput(r)
	if err != nil {
		badInput(w, err)
		return
	}

	confirmer := urlcontroller.ConfirmFunc(func(ctx context.Context, shortCode string) bool {
		return strings.EqualFold(input["confirm"], confirmedDelete)
	})

	ack, err := rt.urls.Delete(r.Context(), chi.URLParam(r, "shortCode"), confirmer)
	if err != nil {
		if navigated(w, r) {
			return
		}
		writeFailure(w, err, urlcontroller.FallbackDelete)
		return
	}
	if navigated(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, deleteView{Message: ack, Listing: rt.urls.Listing()})
}

func (rt *Router) GetUrlsQr(w http.ResponseWriter, r *http.Request) {
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size <= 0 || size > MaxQRSize {
		size = DefaultQRSize
	}

	png, err := rt.urls.QRCode(chi.URLParam(r, "shortCode"), size)
	if err != nil {
		logger.Log.Debugln("Error calling the `rt.urls.QRCode()`: ", zap.Error(err))
		http.Error(w, "Failed to render the QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		logger.Log.Debugln("Error calling the `w.Write()`: ", zap.Error(err))
	}
}

// GetAnalytics never answers with an error: a failed fetch is an empty report.
func (rt *Router) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	report := rt.analytics.Report(r.Context())
	if navigated(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) GetAnalyticsItem(w http.ResponseWriter, r *http.Request) {
	item, err := rt.analytics.Item(r.Context(), chi.URLParam(r, "shortCode"))
	if err != nil {
		if navigated(w, r) {
			return
		}
		writeFailure(w, err, "Failed to fetch analytics")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// GetRedirecttobackend treats an unknown single-segment path as a short code and
// hands it to the service that resolves it.
func (rt *Router) GetRedirecttobackend(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	http.Redirect(w, r, rt.backendRoot+"/"+shortCode, http.StatusTemporaryRedirect)
}
