// Package models holds the types shared between the session layer, the API gateway
// and the resource controllers, together with the wire shapes of the remote REST API.
package models

// User is the identity snapshot returned by the remote service at login time.
// It is never refreshed by the console.
type User struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is the authenticated identity of the current device.
// Token and User are always set and cleared together.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the body of both /auth/login and /auth/register.
type AuthResponse struct {
	Token   string `json:"token"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message,omitempty"`
	User    *User  `json:"user"`
}

// ShortenRequest is the body of POST /urls/shorten. A nil ExpiryHours is sent as null.
type ShortenRequest struct {
	URL         string `json:"url"`
	ExpiryHours *int   `json:"expiryHours"`
}

// URLRecord is a shortened URL owned by the current user.
type URLRecord struct {
	ID          string     `json:"id"`
	ShortCode   string     `json:"shortCode"`
	OriginalURL string     `json:"originalUrl"`
	ShortURL    string     `json:"shortUrl,omitempty"`
	CreatedAt   Timestamp  `json:"createdAt"`
	ExpiresAt   *Timestamp `json:"expiresAt,omitempty"`
	Clicks      int64      `json:"clicks"`
}

// ClickEvent is a single server-recorded visit of a short URL.
type ClickEvent struct {
	Timestamp Timestamp `json:"timestamp"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	Referer   string    `json:"referer"`
}

// AnalyticsRecord is a URL together with its click history.
type AnalyticsRecord struct {
	ShortCode    string       `json:"shortCode"`
	OriginalURL  string       `json:"originalUrl"`
	TotalClicks  int64        `json:"totalClicks"`
	CreatedAt    Timestamp    `json:"createdAt"`
	ExpiresAt    *Timestamp   `json:"expiresAt,omitempty"`
	RecentClicks []ClickEvent `json:"recentClicks"`
}

// Page is one slice of a server-paginated collection.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

// DailyClicks is one bucket of a date-bucketed click series.
type DailyClicks struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// The durable keys of the session mirror.
const (
	TokenKey = "token"
	UserKey  = "user"
)
