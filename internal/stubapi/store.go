package stubapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	TriesToGenerateUniqueKey = 10
	AmtOfSymbolsToGenerate   = 7
	MaxURLLength             = 2048
	AllAnalyticsClicks       = 10
	SingleAnalyticsClicks    = 100
)

var (
	ErrEmailTaken         = errors.New("Email already registered")
	ErrBadCredentials     = errors.New("Invalid email or password")
	ErrURLNotFound        = errors.New("URL not found")
	ErrShortURLNotFound   = errors.New("Short URL not found")
	ErrShortURLExpired    = errors.New("Short URL has expired")
	ErrNotOwner           = errors.New("You don't have permission to access this URL")
	ErrKeyGenerationLimit = errors.New("the number of attempts to generate a unique key has been exceeded")
)

var urlPattern = regexp.MustCompile(`(?i)^(https?://)([\w.-]+)(:[0-9]{1,5})?(/.*)?$`)

type user struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
}

type click struct {
	At        time.Time
	IPAddress string
	UserAgent string
	Referer   string
}

type shortURL struct {
	ID          string
	ShortCode   string
	OriginalURL string
	OwnerID     string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	Clicks      []click
}

func (u *shortURL) expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}

// Store is the in-memory state of the stub service.
type Store struct {
	mu           sync.RWMutex
	clock        func() time.Time
	usersByEmail map[string]*user
	urlsByCode   map[string]*shortURL
}

func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		clock:        clock,
		usersByEmail: map[string]*user{},
		urlsByCode:   map[string]*shortURL{},
	}
}

func (s *Store) Register(username, email, password string) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("in internal/stubapi/store.go/Register(): error while `bcrypt.GenerateFromPassword()` calling: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[email]; exists {
		return nil, ErrEmailTaken
	}
	created := &user{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	s.usersByEmail[email] = created

	return created, nil
}

func (s *Store) Login(email, password string) (*user, error) {
	s.mu.RLock()
	found, exists := s.usersByEmail[email]
	s.mu.RUnlock()
	if !exists {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(found.PasswordHash, []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	return found, nil
}

// validateURL mirrors the checks of the real service: http(s) only, bounded length,
// no loopback or private hosts.
func validateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("URL cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("URL exceeds maximum length of %d characters", MaxURLLength)
	}
	if !urlPattern.MatchString(rawURL) {
		return errors.New("Invalid URL format. Must start with http:// or https://")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("Malformed URL: %w", err)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" {
		return errors.New("Localhost and loopback addresses are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() {
			return errors.New("Localhost and loopback addresses are not allowed")
		}
		if ip.IsPrivate() {
			return errors.New("Private IP addresses are not allowed")
		}
	}

	return nil
}

func generateRandomString(length int) string {
	const symbols = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	var result strings.Builder

	for i := 0; i < length; i++ {
		randomIndex, _ := rand.Int(rand.Reader, big.NewInt(int64(len(symbols))))
		result.WriteByte(symbols[randomIndex.Int64()])
	}

	return result.String()
}

func (s *Store) generateShortKey() (string, error) {
	for i := 0; i < TriesToGenerateUniqueKey; i++ {
		shortKey := generateRandomString(AmtOfSymbolsToGenerate)
		if _, exists := s.urlsByCode[shortKey]; !exists {
			return shortKey, nil
		}
	}
	return "", ErrKeyGenerationLimit
}

// CreateURL shortens rawURL for ownerID. expiryHours <= 0 or nil means no expiry.
func (s *Store) CreateURL(ownerID, rawURL string, expiryHours *int) (*shortURL, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateShortKey()
	if err != nil {
		return nil, err
	}

	now := s.clock()
	created := &shortURL{
		ID:          uuid.NewString(),
		ShortCode:   code,
		OriginalURL: rawURL,
		OwnerID:     ownerID,
		CreatedAt:   now,
	}
	if expiryHours != nil && *expiryHours > 0 {
		expiresAt := now.Add(time.Duration(*expiryHours) * time.Hour)
		created.ExpiresAt = &expiresAt
	}
	s.urlsByCode[code] = created

	return created, nil
}

func (s *Store) ownedBy(ownerID string) []*shortURL {
	result := make([]*shortURL, 0)
	for _, candidate := range s.urlsByCode {
		if candidate.OwnerID == ownerID {
			result = append(result, candidate)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ShortCode < result[j].ShortCode
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// ListURLs returns one page of ownerID's URLs, newest first, and the total count.
func (s *Store) ListURLs(ownerID string, page, size int) ([]shortURL, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ownedBy(ownerID)
	result := make([]shortURL, 0, size)
	from := page * size
	for i := from; i < len(owned) && i < from+size; i++ {
		result = append(result, copyURL(owned[i]))
	}

	return result, len(owned), nil
}

func copyURL(source *shortURL) shortURL {
	result := *source
	result.Clicks = append([]click{}, source.Clicks...)
	return result
}

func (s *Store) owned(ownerID, code string) (*shortURL, error) {
	found, exists := s.urlsByCode[code]
	if !exists {
		return nil, ErrURLNotFound
	}
	if found.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return found, nil
}

func (s *Store) DeleteURL(ownerID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(ownerID, code); err != nil {
		return err
	}
	delete(s.urlsByCode, code)

	return nil
}

func (s *Store) Analytics(ownerID, code string) (shortURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, err := s.owned(ownerID, code)
	if err != nil {
		return shortURL{}, err
	}

	return copyURL(found), nil
}

func (s *Store) AllAnalytics(ownerID string) []shortURL {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ownedBy(ownerID)
	result := make([]shortURL, 0, len(owned))
	for _, item := range owned {
		result = append(result, copyURL(item))
	}

	return result
}

// Resolve returns the original URL of code and records the visit.
func (s *Store) Resolve(code, ipAddress, userAgent, referer string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found, exists := s.urlsByCode[code]
	if !exists {
		return "", ErrShortURLNotFound
	}
	now := s.clock()
	if found.expired(now) {
		return "", ErrShortURLExpired
	}
	found.Clicks = append(found.Clicks, click{
		At:        now,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Referer:   referer,
	})

	return found.OriginalURL, nil
}
