// Package memorystorage is the non-durable session mirror, used when no file,
// database or Redis is configured.
package memorystorage

import (
	"github.com/patric-chuzhbe/urlify/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewInMemory(),
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}
