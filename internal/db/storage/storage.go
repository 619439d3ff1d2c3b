// Package storage declares the durable key-value mirror the session layer writes through.
package storage

// Storage is a small string key-value store that survives restarts of the console.
// Implementations are safe for concurrent use.
type Storage interface {
	Get(key string) (string, bool, error)

	Set(key, value string) error

	// Remove deletes the keys; keys that are not present are ignored.
	Remove(keys ...string) error

	Close() error
}
