// Package jsondb keeps the session mirror in a JSON file. Every mutation is written
// through to disk immediately.
package jsondb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

type CacheStruct struct {
	Values map[string]string
}

func initDBFile(fileName string) error {
	if err := os.MkdirAll(filepath.Dir(fileName), 0700); err != nil {
		return err
	}

	return writeToJSONFile(fileName, CacheStruct{Values: map[string]string{}})
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cache)
	if err != nil {
		return err
	}
	if cache.Values == nil {
		cache.Values = map[string]string{}
	}

	return nil
}

// New opens the file, creating it (and its directory) when it does not exist yet.
func New(fileName string) (*JSONDB, error) {
	db := JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `parseJSONFile()` calling: %w", err)
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `initDBFile()` calling: %w", err)
		}
		db.Cache.Values = map[string]string{}
	}

	return &db, nil
}

// NewInMemory returns a JSONDB that never touches the disk.
func NewInMemory() *JSONDB {
	return &JSONDB{
		Cache: CacheStruct{Values: map[string]string{}},
	}
}

func (db *JSONDB) flush() error {
	if db.fileName == "" {
		return nil
	}
	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) Get(key string) (string, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	value, found := db.Cache.Values[key]

	return value, found, nil
}

func (db *JSONDB) Set(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Values[key] = value

	return db.flush()
}

func (db *JSONDB) Remove(keys ...string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	changed := false
	for _, key := range keys {
		if _, found := db.Cache.Values[key]; found {
			delete(db.Cache.Values, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	return db.flush()
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.flush()
}
