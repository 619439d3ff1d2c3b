// Package sqlitedb keeps the session mirror in a SQLite database. The schema is
// managed by goose migrations embedded into the binary.
package sqlitedb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationDialect = "sqlite3"

type SQLiteDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

// New opens the database and applies pending migrations.
// ":memory:" and "file::memory:" DSNs are supported; the pool is then pinned to one connection.
func New(databaseDSN string, connectionTimeout time.Duration) (*SQLiteDB, error) {
	database, err := sql.Open("sqlite", databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/New(): error while `sql.Open()` calling: %w", err)
	}
	database.SetMaxOpenConns(1)

	result := &SQLiteDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	ctx, cancel := result.timeout()
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		return nil, errors.Join(
			fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/New(): error while `database.PingContext()` calling: %w", err),
			database.Close(),
		)
	}

	if err := migrate(database, migrationDialect); err != nil {
		return nil, err
	}

	return result, nil
}

// migrate applies the embedded migrations. database is closed when they cannot be applied.
func migrate(database *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect(dialect); err != nil {
		return errors.Join(
			fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/migrate(): error while `goose.SetDialect()` calling: %w", err),
			database.Close(),
		)
	}

	if err := goose.Up(database, "migrations"); err != nil {
		return errors.Join(
			fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/migrate(): error while `goose.Up()` calling: %w", err),
			database.Close(),
		)
	}

	return nil
}

func (db *SQLiteDB) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), db.connectionTimeout)
}

func (db *SQLiteDB) Get(key string) (string, bool, error) {
	ctx, cancel := db.timeout()
	defer cancel()

	var value string
	err := db.database.QueryRowContext(ctx, `SELECT value FROM session_values WHERE name = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/Get(): error while `QueryRowContext()` calling: %w", err)
	}

	return value, true, nil
}

func (db *SQLiteDB) Set(key, value string) error {
	ctx, cancel := db.timeout()
	defer cancel()

	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO session_values (name, value)
				VALUES (?, ?)
				ON CONFLICT (name) DO UPDATE SET value = excluded.value
		`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/Set(): error while `ExecContext()` calling: %w", err)
	}

	return nil
}

// Remove deletes all keys in one transaction, so token and user disappear together.
func (db *SQLiteDB) Remove(keys ...string) error {
	ctx, cancel := db.timeout()
	defer cancel()

	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/Remove(): error while `BeginTx()` calling: %w", err)
	}

	for _, key := range keys {
		if _, err := transaction.ExecContext(ctx, `DELETE FROM session_values WHERE name = ?`, key); err != nil {
			return errors.Join(
				fmt.Errorf("in internal/db/sqlitedb/sqlitedb.go/Remove(): error while `ExecContext()` calling: %w", err),
				transaction.Rollback(),
			)
		}
	}

	return transaction.Commit()
}

func (db *SQLiteDB) Close() error {
	return db.database.Close()
}
