package captions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache keeps captions and images of all sessions in one database,
// keyed by session and content id.
type SQLiteCache struct {
	getOrComputer
	db      *sql.DB
	session string
}

// OpenSQLiteCache opens (or creates) the database at path. Captions written
// through the returned cache belong to session.
func OpenSQLiteCache(path, session string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &SQLiteCache{db: db, session: session}
	c.getOrComputer.store = c
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return c, nil
}

func (c *SQLiteCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS captions (
		session TEXT NOT NULL,
		id INTEGER NOT NULL,
		caption TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (session, id)
	);
	CREATE TABLE IF NOT EXISTS images (
		session TEXT NOT NULL,
		id INTEGER NOT NULL,
		png BLOB NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (session, id)
	);
	`

	_, err := c.db.Exec(schema)
	return err
}

func (c *SQLiteCache) SaveImage(ctx context.Context, id int64, png []byte) error {
	if _, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO images (session, id, png, created_at) VALUES (?, ?, ?, ?)`,
		c.session, id, png, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to save image %d: %w", id, err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) load(ctx context.Context, id int64) (string, bool, error) {
	var caption string
	err := c.db.QueryRowContext(ctx,
		`SELECT caption FROM captions WHERE session = ? AND id = ?`, c.session, id,
	).Scan(&caption)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return caption, true, nil
}

func (c *SQLiteCache) save(ctx context.Context, id int64, caption string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO captions (session, id, caption, created_at) VALUES (?, ?, ?, ?)`,
		c.session, id, caption, time.Now(),
	)
	return err
}
