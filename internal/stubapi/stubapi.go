// Package stubapi is a self-contained, in-memory implementation of the remote URL
// shortener REST API. It backs local development of the console and its end-to-end
// tests; nothing it stores survives a restart.
package stubapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/urlify/internal/logger"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	DeleteAck       = "URL deleted successfully"
	timestampLayout = "2006-01-02T15:04:05.999999"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type shortenRequest struct {
	URL         string `json:"url" validate:"required"`
	ExpiryHours *int   `json:"expiryHours" validate:"omitempty,gt=0"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type authResponse struct {
	Token   string        `json:"token"`
	Email   string        `json:"email"`
	Message string        `json:"message"`
	User    *userResponse `json:"user"`
}

// The service emits zone-less date-times, like the real one does.
type urlResponse struct {
	ID          string  `json:"id"`
	OriginalURL string  `json:"originalUrl"`
	ShortCode   string  `json:"shortCode"`
	ShortURL    string  `json:"shortUrl"`
	Clicks      int64   `json:"clicks"`
	ExpiresAt   *string `json:"expiresAt"`
	CreatedAt   string  `json:"createdAt"`
}

type pageResponse struct {
	Content       []urlResponse `json:"content"`
	TotalPages    int           `json:"totalPages"`
	TotalElements int64         `json:"totalElements"`
	Size          int           `json:"size"`
	Number        int           `json:"number"`
}

type clickResponse struct {
	Timestamp string `json:"timestamp"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	Referer   string `json:"referer"`
}

type analyticsResponse struct {
	ShortCode    string          `json:"shortCode"`
	OriginalURL  string          `json:"originalUrl"`
	TotalClicks  int64           `json:"totalClicks"`
	CreatedAt    string          `json:"createdAt"`
	ExpiresAt    *string         `json:"expiresAt"`
	RecentClicks []clickResponse `json:"recentClicks"`
}

type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Service struct {
	store      *Store
	auth       *Auth
	validate   *validator.Validate
	publicBase string
}

// New builds the stub service router. publicBase is the origin short URLs are
// reported under, e.g. "http://localhost:8081".
func New(store *Store, auth *Auth, publicBase string) http.Handler {
	s := &Service{
		store:      store,
		auth:       auth,
		validate:   validator.New(),
		publicBase: strings.TrimRight(publicBase, "/"),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(logger.WithLoggingHTTPMiddleware)

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateUser)
			r.Post("/urls/shorten", s.shorten)
			r.Get("/urls/my-urls", s.myURLs)
			r.Delete("/urls/{shortCode}", s.deleteURL)
			r.Get("/analytics/all", s.allAnalytics)
			r.Get("/analytics/{shortCode}", s.analytics)
		})
	})
	router.Get("/{shortCode}", s.redirect)

	return router
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}

func writeJSON(response http.ResponseWriter, status int, body interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(body); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(response).Encode()`: ", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, errorResponse{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ErrURLNotFound),
		errors.Is(err, ErrShortURLNotFound),
		errors.Is(err, ErrShortURLExpired):
		return http.StatusNotFound
	case errors.Is(err, ErrKeyGenerationLimit):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func userIDFrom(request *http.Request) string {
	userID, _ := request.Context().Value(UserIDKey).(string)
	return userID
}

// decode reads the JSON body into target and validates it. On failure the error
// answer is already written.
func (s *Service) decode(response http.ResponseWriter, request *http.Request, target interface{}) bool {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		logger.Log.Debugln("Error calling the `json.NewDecoder(request.Body).Decode()`: ", zap.Error(err))
		writeError(response, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := s.validate.Struct(target); err != nil {
		writeError(response, http.StatusBadRequest, validationMessage(err))
		return false
	}

	return true
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return "Validation failed"
	}

	first := fieldErrors[0]
	switch first.Tag() {
	case "required":
		return first.Field() + " is required"
	case "email":
		return "Email should be valid"
	case "gt":
		return "Expiry hours must be positive"
	}
	return first.Field() + " is invalid"
}

func (s *Service) authenticated(response http.ResponseWriter, status int, found *user, message string) {
	token, err := s.auth.buildJWTString(found.ID, found.Email)
	if err != nil {
		logger.Log.Debugln("Error calling the `s.auth.buildJWTString()`: ", zap.Error(err))
		writeError(response, http.StatusInternalServerError, "Failed to issue a token")
		return
	}

	writeJSON(response, status, authResponse{
		Token:   token,
		Email:   found.Email,
		Message: message,
		User: &userResponse{
			ID:       found.ID,
			Username: found.Username,
			Email:    found.Email,
		},
	})
}

func (s *Service) register(response http.ResponseWriter, request *http.Request) {
	var body registerRequest
	if !s.decode(response, request, &body) {
		return
	}

	created, err := s.store.Register(body.Username, body.Email, body.Password)
	if err != nil {
		writeError(response, statusOf(err), err.Error())
		return
	}

	s.authenticated(response, http.StatusCreated, created, "User registered successfully")
}

func (s *Service) login(response http.ResponseWriter, request *http.Request) {
	var body loginRequest
	if !s.decode(response, request, &body) {
		return
	}

	found, err := s.store.Login(body.Email, body.Password)
	if err != nil {
		writeError(response, statusOf(err), err.Error())
		return
	}

	s.authenticated(response, http.StatusOK, found, "Login successful")
}

func (s *Service) toURLResponse(source *shortURL) urlResponse {
	return urlResponse{
		ID:          source.ID,
		OriginalURL: source.OriginalURL,
		ShortCode:   source.ShortCode,
		ShortURL:    s.publicBase + "/" + source.ShortCode,
		Clicks:      int64(len(source.Clicks)),
		ExpiresAt:   formatOptionalTime(source.ExpiresAt),
		CreatedAt:   formatTime(source.CreatedAt),
	}
}

func (s *Service) shorten(response http.ResponseWriter, request *http.Request) {
	var body shortenRequest
	if !s.decode(response, request, &body) {
		return
	}

	created, err := s.store.CreateURL(userIDFrom(request), body.URL, body.ExpiryHours)
	if err != nil {
		writeError(response, statusOf(err), err.Error())
		return
	}

	writeJSON(response, http.StatusCreated, s.toURLResponse(created))
}

func queryInt(request *http.Request, name string, fallback int) int {
	value, err := strconv.Atoi(request.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return value
}

func (s *Service) myURLs(response http.ResponseWriter, request *http.Request) {
	page := max(queryInt(request, "page", 0), 0)
	size := queryInt(request, "size", DefaultPageSize)
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}

	items, total, err := s.store.ListURLs(userIDFrom(request), page, size)
	if err != nil {
		writeError(response, http.StatusInternalServerError, err.Error())
		return
	}

	result := pageResponse{
		Content:       make([]urlResponse, 0, len(items)),
		TotalPages:    (total + size - 1) / size,
		TotalElements: int64(total),
		Size:          size,
		Number:        page,
	}
	for i := range items {
		result.Content = append(result.Content, s.toURLResponse(&items[i]))
	}

	writeJSON(response, http.StatusOK, result)
}

func (s *Service) deleteURL(response http.ResponseWriter, request *http.Request) {
	err := s.store.DeleteURL(userIDFrom(request), chi.URLParam(request, "shortCode"))
	if err != nil {
		writeError(response, statusOf(err), err.Error())
		return
	}

	response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	response.WriteHeader(http.StatusOK)
	if _, err := response.Write([]byte(DeleteAck)); err != nil {
		logger.Log.Debugln("Error calling the `response.Write()`: ", zap.Error(err))
	}
}

func toAnalyticsResponse(source *shortURL, clicksLimit int) analyticsResponse {
	result := analyticsResponse{
		ShortCode:    source.ShortCode,
		OriginalURL:  source.OriginalURL,
		TotalClicks:  int64(len(source.Clicks)),
		CreatedAt:    formatTime(source.CreatedAt),
		ExpiresAt:    formatOptionalTime(source.ExpiresAt),
		RecentClicks: make([]clickResponse, 0, min(len(source.Clicks), clicksLimit)),
	}
	// Newest first.
	for i := len(source.Clicks) - 1; i >= 0 && len(result.RecentClicks) < clicksLimit; i-- {
		visit := source.Clicks[i]
		result.RecentClicks = append(result.RecentClicks, clickResponse{
			Timestamp: formatTime(visit.At),
			IPAddress: visit.IPAddress,
			UserAgent: visit.UserAgent,
			Referer:   visit.Referer,
		})
	}
	return result
}

func (s *Service) analytics(response http.ResponseWriter, request *http.Request) {
	found, err := s.store.Analytics(userIDFrom(request), chi.URLParam(request, "shortCode"))
	if err != nil {
		writeError(response, statusOf(err), err.Error())
		return
	}

	writeJSON(response, http.StatusOK, toAnalyticsResponse(&found, SingleAnalyticsClicks))
}

func (s *Service) allAnalytics(response http.ResponseWriter, request *http.Request) {
	owned := s.store.AllAnalytics(userIDFrom(request))
	result := make([]analyticsResponse, 0, len(owned))
	for i := range owned {
		result = append(result, toAnalyticsResponse(&owned[i], AllAnalyticsClicks))
	}

	writeJSON(response, http.StatusOK, result)
}

func (s *Service) redirect(response http.ResponseWriter, request *http.Request) {
	original, err := s.store.Resolve(
		chi.URLParam(request, "shortCode"),
		clientIP(request),
		request.UserAgent(),
		request.Referer(),
	)
	if err != nil {
		writeError(response, statusOf(err), err.Error())
		return
	}

	http.Redirect(response, request, original, http.StatusFound)
}
