// Package urlcontroller holds the client-side state of the user's short URLs:
// creation with expiry computation, the paginated listing and deletion.
package urlcontroller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/models"
)

const PageSize = 10

const (
	MessageCreated      = "Short URL created successfully!"
	MessageDeleted      = "URL deleted successfully"
	FallbackCreate      = "Failed to create short URL"
	FallbackList        = "Failed to fetch URLs"
	FallbackDelete      = "Failed to delete URL"
	MessageURLRequired  = "Please enter a URL"
	MessageURLInvalid   = "Please enter a valid URL"
	MessageExpiryFormat = "Please enter a valid expiry date"
)

var (
	// ErrStaleResponse is returned by a listing fetch that was superseded by a newer one
	// before its response arrived. The response is discarded.
	ErrStaleResponse = errors.New("stale listing response discarded")

	ErrDeleteNotConfirmed = errors.New("deletion was not confirmed")
)

type urlGateway interface {
	CreateShortURL(ctx context.Context, longURL string, expiryHours *int) (*models.URLRecord, error)
	ListURLs(ctx context.Context, page, size int) (*models.Page[models.URLRecord], error)
	DeleteURL(ctx context.Context, shortCode string) (string, error)
}

type notifier interface {
	Success(message string)
	Error(message string)
}

// Confirmer asks the user whether shortCode really should be deleted.
type Confirmer interface {
	Confirm(ctx context.Context, shortCode string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, shortCode string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, shortCode string) bool {
	return f(ctx, shortCode)
}

// Listing is a snapshot of the latest accepted page.
type Listing struct {
	Page          int                `json:"page"`
	TotalPages    int                `json:"totalPages"`
	TotalElements int64              `json:"totalElements"`
	URLs          []models.URLRecord `json:"urls"`
}

type CreateResult struct {
	Record   models.URLRecord `json:"record"`
	ShortURL string           `json:"shortUrl"`
}

type Controller struct {
	gateway  urlGateway
	notifier notifier
	origin   string
	clock    func() time.Time
	validate *validator.Validate

	mu         sync.Mutex
	page       int
	generation uint64
	listing    Listing
}

type InitOption func(*Controller)

// WithClock replaces time.Now, which expiry computation is relative to.
func WithClock(clock func() time.Time) InitOption {
	return func(c *Controller) {
		c.clock = clock
	}
}

// New creates a controller. origin is the public origin short URLs are built on.
func New(gateway urlGateway, notifier notifier, origin string, optionsProto ...InitOption) *Controller {
	result := &Controller{
		gateway:  gateway,
		notifier: notifier,
		origin:   strings.TrimRight(origin, "/"),
		clock:    time.Now,
		validate: validator.New(),
		listing:  Listing{URLs: []models.URLRecord{}},
	}
	for _, protoOption := range optionsProto {
		protoOption(result)
	}

	return result
}

// ExpiryHours converts an absolute expiry into whole hours from now, rounded up.
// Expiries in the past or less than an hour away become 1.
func ExpiryHours(now, expiry time.Time) int {
	hours := int(math.Ceil(expiry.Sub(now).Hours()))
	return max(1, hours)
}

var expiryLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// ParseExpiry reads a datetime-local form value in loc, or an RFC 3339 value.
// An empty value means "never expires".
func ParseExpiry(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	for _, layout := range expiryLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &parsed, nil
		}
	}

	return nil, &models.ValidationError{Field: "expiry", Message: MessageExpiryFormat}
}

func (c *Controller) validateURL(rawURL string) error {
	if rawURL == "" {
		return &models.ValidationError{Field: "url", Message: MessageURLRequired}
	}
	if err := c.validate.Var(rawURL, "url"); err != nil {
		return &models.ValidationError{Field: "url", Message: MessageURLInvalid}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return &models.ValidationError{Field: "url", Message: MessageURLInvalid}
	}

	return nil
}

// ShortURL is the absolute short URL of shortCode on the public origin.
func (c *Controller) ShortURL(shortCode string) string {
	return c.origin + "/" + shortCode
}

func (c *Controller) fail(err error, fallback string) {
	if errors.Is(err, models.ErrUnauthorized) {
		return
	}
	c.notifier.Error(models.UserMessage(err, fallback))
}

// Create validates rawURL and shortens it. Validation failures are returned without
// calling the service or notifying.
func (c *Controller) Create(ctx context.Context, rawURL string, expiry *time.Time) (*CreateResult, error) {
	if err := c.validateURL(rawURL); err != nil {
		return nil, err
	}

	var expiryHours *int
	if expiry != nil {
		hours := ExpiryHours(c.clock(), *expiry)
		expiryHours = &hours
	}

	record, err := c.gateway.CreateShortURL(ctx, rawURL, expiryHours)
	if err != nil {
		c.fail(err, FallbackCreate)
		return nil, fmt.Errorf("in internal/urlcontroller/urlcontroller.go/Create(): error while `gateway.CreateShortURL()` calling: %w", err)
	}

	c.notifier.Success(MessageCreated)

	return &CreateResult{
		Record:   *record,
		ShortURL: c.ShortURL(record.ShortCode),
	}, nil
}

// GoToPage fetches page and makes it current once the response is accepted. A response
// that arrives after a newer fetch was started is discarded with ErrStaleResponse; a failed
// fetch leaves the current page as it was.
func (c *Controller) GoToPage(ctx context.Context, page int) (Listing, error) {
	if page < 0 {
		page = 0
	}

	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	result, err := c.gateway.ListURLs(ctx, page, PageSize)

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		logger.Log.Debugln("discarding stale listing response", "page", page)
		return c.Listing(), ErrStaleResponse
	}
	if err != nil {
		c.mu.Unlock()
		c.fail(err, FallbackList)
		return c.Listing(), fmt.Errorf("in internal/urlcontroller/urlcontroller.go/GoToPage(): error while `gateway.ListURLs()` calling: %w", err)
	}
	c.page = page
	c.listing = Listing{
		Page:          page,
		TotalPages:    result.TotalPages,
		TotalElements: result.TotalElements,
		URLs:          append([]models.URLRecord{}, result.Content...),
	}
	snapshot := c.snapshot()
	c.mu.Unlock()

	return snapshot, nil
}

// Refresh re-fetches the current page.
func (c *Controller) Refresh(ctx context.Context) (Listing, error) {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()

	return c.GoToPage(ctx, page)
}

// NextPage moves forward, staying on the last known page.
func (c *Controller) NextPage(ctx context.Context) (Listing, error) {
	c.mu.Lock()
	page := min(c.page+1, max(0, c.listing.TotalPages-1))
	c.mu.Unlock()

	return c.GoToPage(ctx, page)
}

// PreviousPage moves back, staying on the first page.
func (c *Controller) PreviousPage(ctx context.Context) (Listing, error) {
	c.mu.Lock()
	page := max(0, c.page-1)
	c.mu.Unlock()

	return c.GoToPage(ctx, page)
}

func (c *Controller) snapshot() Listing {
	result := c.listing
	result.URLs = append([]models.URLRecord{}, c.listing.URLs...)
	return result
}

func (c *Controller) Listing() Listing {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshot()
}

// Delete removes shortCode once confirmer agrees, then re-fetches the current page.
// Without confirmation the service is not called.
func (c *Controller) Delete(ctx context.Context, shortCode string, confirmer Confirmer) (string, error) {
	if !confirmer.Confirm(ctx, shortCode) {
		return "", ErrDeleteNotConfirmed
	}

	ack, err := c.gateway.DeleteURL(ctx, shortCode)
	if err != nil {
		c.fail(err, FallbackDelete)
		return "", fmt.Errorf("in internal/urlcontroller/urlcontroller.go/Delete(): error while `gateway.DeleteURL()` calling: %w", err)
	}

	c.notifier.Success(MessageDeleted)

	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		logger.Log.Debugln("error while refreshing after delete", zap.Error(err))
	}

	return ack, nil
}

// QRCode renders the absolute short URL of shortCode as a PNG of size x size pixels.
func (c *Controller) QRCode(shortCode string, size int) ([]byte, error) {
	png, err := qrcode.Encode(c.ShortURL(shortCode), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("in internal/urlcontroller/urlcontroller.go/QRCode(): error while `qrcode.Encode()` calling: %w", err)
	}

	return png, nil
}
