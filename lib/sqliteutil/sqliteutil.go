package sqliteutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func wrapOpenDB(err error) error {
	return fmt.Errorf("open db: %w", err)
}

func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		os.MkdirAll(filepath.Dir(path), 0777)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, wrapOpenDB(err)
	}

	return db, nil
}

// OpenRemote connects to a sqld instance instead of a local file, for
// deployments where several consumers read the same database.
func OpenRemote(url string) (*sql.DB, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	return db, nil
}

func applySchema(db *sql.DB, schema string) (*sql.DB, error) {
	_, err := db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// OpenAndApply opens the database and applies the embedded schema. The
// schema must be idempotent (CREATE TABLE IF NOT EXISTS and friends).
// url takes precedence over path when both are set.
func OpenAndApply(schema, path, url string) (*sql.DB, error) {
	if url != "" {
		db, err := OpenRemote(url)
		if err != nil {
			return nil, err
		}
		return applySchema(db, schema)
	}
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return applySchema(db, schema)
}
