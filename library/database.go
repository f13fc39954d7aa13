package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Database is a SQLite-backed document store. Every record is a JSON blob
// addressed by (collection path, id); a monotonically increasing seq column
// preserves insertion order for listing.
type Database struct {
	db *sql.DB

	createRecordStmt *sql.Stmt
	insertUserStmt   *sql.Stmt
}

var _ RecordStore = (*Database)(nil)

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.createRecordStmt != nil {
		d.createRecordStmt.Close()
	}
	if d.insertUserStmt != nil {
		d.insertUserStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            display_name TEXT NOT NULL DEFAULT '',
            email_verified BOOLEAN NOT NULL DEFAULT 0,
            password_hash TEXT NOT NULL,
            created_at DATETIME NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS records (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            path TEXT NOT NULL,
            id TEXT NOT NULL,
            data TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME,
            UNIQUE(path, id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_records_path ON records(path, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.createRecordStmt, err = d.db.Prepare(`INSERT INTO records(path,id,data,created_at) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	if d.insertUserStmt, err = d.db.Prepare(`INSERT INTO users(id,email,display_name,email_verified,password_hash,created_at) VALUES(?,?,?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Record store
// ---------------------------------------------------------------------------

func checkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("collection path cannot be empty")
	}
	return nil
}

// ListCollection returns every record under path in insertion order.
func (d *Database) ListCollection(ctx context.Context, path string) ([]Record, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, `SELECT id,data,created_at,updated_at FROM records WHERE path=? ORDER BY seq`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			data    string
			updated sql.NullTime
		)
		if err := rows.Scan(&r.ID, &data, &r.CreatedAt, &updated); err != nil {
			return nil, err
		}
		r.Data = json.RawMessage(data)
		if updated.Valid {
			r.UpdatedAt = updated.Time
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CreateRecord stores data as a new document and returns its generated id.
func (d *Database) CreateRecord(ctx context.Context, path string, data any) (string, error) {
	if err := checkPath(path); err != nil {
		return "", err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	id := uuid.NewString()
	if _, err := d.createRecordStmt.ExecContext(ctx, path, id, string(payload), time.Now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateRecord replaces the document body. The creation time is kept.
func (d *Database) UpdateRecord(ctx context.Context, path, id string, data any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	res, err := d.db.ExecContext(ctx, `UPDATE records SET data=?, updated_at=? WHERE path=? AND id=?`,
		string(payload), time.Now().UTC(), path, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, path, id)
	}
	return nil
}

// DeleteRecord hard-deletes a document. Deleting a missing id is not an error.
func (d *Database) DeleteRecord(ctx context.Context, path, id string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx, `DELETE FROM records WHERE path=? AND id=?`, path, id)
	return err
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// InsertUser stores a new account. The caller hashes the password.
func (d *Database) InsertUser(ctx context.Context, u *User) error {
	_, err := d.insertUserStmt.ExecContext(ctx, u.ID, u.Email, u.DisplayName, u.EmailVerified, u.PasswordHash, time.Now().UTC())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrEmailTaken
	}
	return err
}

// GetUserByEmail fetches an account by its login email.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return d.scanUser(d.db.QueryRowContext(ctx,
		`SELECT id,email,display_name,email_verified,password_hash FROM users WHERE email=?`, email))
}

// GetUser fetches an account by id.
func (d *Database) GetUser(ctx context.Context, id string) (*User, error) {
	return d.scanUser(d.db.QueryRowContext(ctx,
		`SELECT id,email,display_name,email_verified,password_hash FROM users WHERE id=?`, id))
}

func (d *Database) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.EmailVerified, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser writes the mutable account columns.
func (d *Database) UpdateUser(ctx context.Context, u *User) error {
	res, err := d.db.ExecContext(ctx, `UPDATE users SET display_name=?, email_verified=?, password_hash=? WHERE id=?`,
		u.DisplayName, u.EmailVerified, u.PasswordHash, u.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
