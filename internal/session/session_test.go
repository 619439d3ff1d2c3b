package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/urlify/internal/db/memorystorage"
	"github.com/patric-chuzhbe/urlify/internal/models"
)

type countingStore struct {
	*memorystorage.MemoryStorage
	removals atomic.Int32
}

func (c *countingStore) Remove(keys ...string) error {
	c.removals.Add(1)
	return c.MemoryStorage.Remove(keys...)
}

var errDiskFull = errors.New("disk full")

type failingUserStore struct {
	*memorystorage.MemoryStorage
}

func (f *failingUserStore) Set(key, value string) error {
	if key == models.UserKey {
		return errDiskFull
	}
	return f.MemoryStorage.Set(key, value)
}

func newMemory(t *testing.T) *memorystorage.MemoryStorage {
	t.Helper()
	theStorage, err := memorystorage.New()
	require.NoError(t, err)
	return theStorage
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	persistent := newMemory(t)
	store := New(persistent)
	require.False(t, store.IsAuthenticated())

	user := models.User{ID: "7", Username: "ann", Email: "ann@example.com"}
	require.NoError(t, store.Login("tok-1", user))

	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "tok-1", store.Token())
	got, ok := store.User()
	assert.True(t, ok)
	assert.Equal(t, user, got)

	restored := New(persistent)
	require.NotNil(t, restored.Current(), "a fresh store should restore the mirrored session")
	assert.Equal(t, models.Session{Token: "tok-1", User: user}, *restored.Current())

	assert.True(t, store.Logout())
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.Current())
	assert.Equal(t, "", store.Token())

	_, found, err := persistent.Get(models.TokenKey)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Nil(t, New(persistent).Current())
}

func TestRestoreCorruptUser(t *testing.T) {
	tests := []struct {
		name string
		user string
	}{
		{name: "literal null", user: "null"},
		{name: "literal undefined", user: "undefined"},
		{name: "not json", user: "{broken"},
		{name: "not an object", user: `"ann"`},
		{name: "missing id", user: `{"username":"ann"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			persistent := newMemory(t)
			require.NoError(t, persistent.Set(models.TokenKey, "tok"))
			require.NoError(t, persistent.Set(models.UserKey, test.user))

			store := New(persistent)
			assert.False(t, store.IsAuthenticated())

			_, found, err := persistent.Get(models.UserKey)
			require.NoError(t, err)
			assert.False(t, found, "the corrupt user should be removed")

			again := New(persistent)
			assert.False(t, again.IsAuthenticated())
		})
	}
}

func TestRestoreIncompletePair(t *testing.T) {
	persistent := newMemory(t)
	require.NoError(t, persistent.Set(models.UserKey, `{"id":"1"}`))

	assert.False(t, New(persistent).IsAuthenticated())

	_, found, err := persistent.Get(models.UserKey)
	require.NoError(t, err)
	assert.True(t, found, "a valid user is left in place")
}

func TestConcurrentLogoutClearsOnce(t *testing.T) {
	persistent := &countingStore{MemoryStorage: newMemory(t)}
	store := New(persistent)
	require.NoError(t, store.Login("tok", models.User{ID: "1"}))

	var notifications atomic.Int32
	unsubscribe := store.Subscribe(func(current *models.Session) {
		if current == nil {
			notifications.Add(1)
		}
	})
	defer unsubscribe()

	const workers = 32
	var cleared atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Logout() {
				cleared.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), cleared.Load())
	assert.Equal(t, int32(1), notifications.Load())
	assert.Equal(t, int32(1), persistent.removals.Load())
}

func TestSubscribe(t *testing.T) {
	store := New(newMemory(t))

	var seen []*models.Session
	unsubscribe := store.Subscribe(func(current *models.Session) {
		seen = append(seen, current)
	})

	require.NoError(t, store.Login("tok", models.User{ID: "1"}))
	store.Logout()
	unsubscribe()
	require.NoError(t, store.Login("tok-2", models.User{ID: "2"}))

	require.Len(t, seen, 2)
	assert.Equal(t, "tok", seen[0].Token)
	assert.Nil(t, seen[1])
}

func TestLoginFailureLeavesNoPartialPair(t *testing.T) {
	persistent := &failingUserStore{MemoryStorage: newMemory(t)}
	store := New(persistent)

	err := store.Login("tok-1", models.User{ID: "7", Email: "ann@example.com"})

	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, store.IsAuthenticated())
	_, found, err := persistent.Get(models.TokenKey)
	require.NoError(t, err)
	assert.False(t, found, "the token must not outlive a failed user write")
	assert.Nil(t, New(persistent).Current())
}
