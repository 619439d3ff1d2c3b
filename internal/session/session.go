// Package session owns the authenticated identity of the console. The in-memory
// session is the source of truth; the persistent store is only a mirror that lets
// the session survive a restart.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/models"
)

type persistentStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(keys ...string) error
}

// Listener is called after every change of the session with the new state
// (nil after logout).
type Listener func(current *models.Session)

type Store struct {
	persistent persistentStore
	validate   *validator.Validate

	mu        sync.RWMutex
	current   *models.Session
	listeners map[int]Listener
	nextID    int
}

// New restores the session from the persistent store before returning, so no
// caller can observe a half-initialized store. A corrupt persisted user is removed
// and the store starts logged out.
func New(persistent persistentStore) *Store {
	result := &Store{
		persistent: persistent,
		validate:   validator.New(),
		listeners:  map[int]Listener{},
	}
	result.current = result.restore()

	return result
}

func (s *Store) restore() *models.Session {
	token, tokenFound, err := s.persistent.Get(models.TokenKey)
	if err != nil {
		logger.Log.Debugln("error while reading the persisted token", zap.Error(err))
		return nil
	}
	rawUser, userFound, err := s.persistent.Get(models.UserKey)
	if err != nil {
		logger.Log.Debugln("error while reading the persisted user", zap.Error(err))
		return nil
	}

	var user models.User
	if userFound {
		user, err = s.decodeUser(rawUser)
		if err != nil {
			logger.Log.Infoln("removing corrupt persisted user", zap.Error(err))
			if err := s.persistent.Remove(models.UserKey); err != nil {
				logger.Log.Debugln("error while removing the persisted user", zap.Error(err))
			}
			return nil
		}
	}

	if !tokenFound || !userFound || token == "" {
		return nil
	}

	return &models.Session{Token: token, User: user}
}

func (s *Store) decodeUser(raw string) (models.User, error) {
	var user models.User

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" || trimmed == "undefined" {
		return user, fmt.Errorf("empty user value %q", trimmed)
	}
	if err := json.Unmarshal([]byte(trimmed), &user); err != nil {
		return user, err
	}
	if err := s.validate.Struct(user); err != nil {
		return user, err
	}

	return user, nil
}

// Login mirrors the pair to the persistent store and then makes it current.
// The token is opaque and is not inspected.
func (s *Store) Login(token string, user models.User) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("in internal/session/session.go/Login(): error while `json.Marshal()` calling: %w", err)
	}

	s.mu.Lock()
	if err := s.persistent.Set(models.TokenKey, token); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("in internal/session/session.go/Login(): error while `persistent.Set()` calling: %w", err)
	}
	if err := s.persistent.Set(models.UserKey, string(rawUser)); err != nil {
		removeErr := s.persistent.Remove(models.TokenKey)
		s.mu.Unlock()
		return errors.Join(
			fmt.Errorf("in internal/session/session.go/Login(): error while `persistent.Set()` calling: %w", err),
			removeErr,
		)
	}
	s.current = &models.Session{Token: token, User: user}
	current := *s.current
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(&current)
	}

	return nil
}

// Logout clears the session. It reports whether this call was the one that cleared it;
// listeners are notified only in that case.
func (s *Store) Logout() bool {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return false
	}
	if err := s.persistent.Remove(models.TokenKey, models.UserKey); err != nil {
		logger.Log.Debugln("error while removing the persisted session", zap.Error(err))
	}
	s.current = nil
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(nil)
	}

	return true
}

func (s *Store) snapshotListeners() []Listener {
	result := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		result = append(result, listener)
	}
	return result
}

// IsAuthenticated is recomputed on every call.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current != nil && s.current.Token != ""
}

// Token returns the current token or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ""
	}
	return s.current.Token
}

func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return models.User{}, false
	}
	return s.current.User, true
}

// Current returns a copy of the session, nil when logged out.
func (s *Store) Current() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	current := *s.current
	return &current
}

// Subscribe registers fn for session changes and returns the function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
