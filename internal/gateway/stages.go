package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/models"
	"github.com/patric-chuzhbe/urlify/internal/navigation"
)

const (
	RequestIDHeader     = "X-Request-ID"
	AuthorizationHeader = "Authorization"
	LoginRoute          = "/login"
)

type tokenSource interface {
	Token() string
}

type sessionTerminator interface {
	Logout() bool
}

// RequestID tags every outbound call with a fresh correlation id unless the caller set one.
func RequestID(_ *resty.Client, request *resty.Request) error {
	if request.Header.Get(RequestIDHeader) == "" {
		request.SetHeader(RequestIDHeader, uuid.NewString())
	}
	return nil
}

// BearerToken attaches the token held by sessions at the moment the call is made.
// No header is sent while logged out.
func BearerToken(sessions tokenSource) resty.RequestMiddleware {
	return func(_ *resty.Client, request *resty.Request) error {
		token := sessions.Token()
		if token == "" {
			request.Header.Del(AuthorizationHeader)
			return nil
		}
		request.SetHeader(AuthorizationHeader, "Bearer "+token)
		return nil
	}
}

// Trace logs every answered call at debug level.
func Trace(_ *resty.Client, response *resty.Response) error {
	logger.Log.Debugln(
		"method", response.Request.Method,
		"url", response.Request.URL,
		"status", response.StatusCode(),
		"duration", response.Time(),
		"request_id", response.Request.Header.Get(RequestIDHeader),
	)
	return nil
}

// Unauthorized turns any 401 into a global logout followed by navigation to the
// login page. Every affected call navigates; only the first one clears the session.
func Unauthorized(sessions sessionTerminator, navigator navigation.Navigator) resty.ResponseMiddleware {
	return func(_ *resty.Client, response *resty.Response) error {
		if response.StatusCode() != http.StatusUnauthorized {
			return nil
		}

		if sessions.Logout() {
			logger.Log.Infoln("session cleared after an authorization failure", "url", response.Request.URL)
		}
		navigator.Navigate(response.Request.Context(), LoginRoute)

		return &models.ResourceError{
			StatusCode: http.StatusUnauthorized,
			Message:    serverMessage(response),
		}
	}
}

// Status converts every remaining non-2xx answer into a *models.ResourceError.
func Status(_ *resty.Client, response *resty.Response) error {
	if response.IsSuccess() {
		return nil
	}

	return &models.ResourceError{
		StatusCode: response.StatusCode(),
		Message:    serverMessage(response),
	}
}

type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// serverMessage extracts the explanation from a JSON {message} / {error} body,
// or uses a plain-text body as is.
func serverMessage(response *resty.Response) string {
	body := strings.TrimSpace(string(response.Body()))
	if body == "" {
		return ""
	}

	if strings.HasPrefix(body, "{") {
		var parsed messageBody
		if err := json.Unmarshal([]byte(body), &parsed); err == nil {
			if parsed.Message != "" {
				return parsed.Message
			}
			return parsed.Error
		}
	}

	if strings.HasPrefix(body, "<") {
		return ""
	}

	return body
}
