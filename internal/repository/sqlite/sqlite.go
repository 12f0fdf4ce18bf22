// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without cgo and tests run against ":memory:" databases.
//
// WHY ONE CONNECTION?
// sql.DB is a pool. SQLite allows a single writer at a time, and every
// ":memory:" connection is a separate, empty database. Capping the pool at one
// connection gives every caller the same database and turns each transaction
// into a critical section: the quota check inside AddProduct and the referral
// counter update inside CreateUser cannot interleave with another writer.
package sqlite

import (
	"database/sql"
	"fmt"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

const (
	DefaultMaxProducts   = 3
	DefaultReferralBonus = 1
)

// DB wraps the connection and implements repository.Store.
type DB struct {
	conn *sql.DB

	defaultMaxProducts int
	referralBonus      int
}

// Option configures a DB.
type Option func(*DB)

// WithQuota sets the quota given to new users and the number of slots a
// referrer gains for every user they bring in.
func WithQuota(defaultMax, referralBonus int) Option {
	return func(db *DB) {
		if defaultMax > 0 {
			db.defaultMaxProducts = defaultMax
		}
		if referralBonus >= 0 {
			db.referralBonus = referralBonus
		}
	}
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/dealwatch.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{
		conn:               conn,
		defaultMaxProducts: DefaultMaxProducts,
		referralBonus:      DefaultReferralBonus,
	}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// Prices are stored as TEXT: decimal.Decimal writes its exact string form and
// reads it back without float rounding.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             INTEGER PRIMARY KEY,
			handle         TEXT NOT NULL DEFAULT '',
			referral_code  TEXT NOT NULL UNIQUE,
			referred_by    INTEGER REFERENCES users(id) ON DELETE SET NULL,
			referral_count INTEGER NOT NULL DEFAULT 0,
			max_products   INTEGER NOT NULL,
			premium        INTEGER NOT NULL DEFAULT 0,
			created_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users(referred_by);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id         INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			source_url      TEXT NOT NULL,
			url             TEXT NOT NULL,
			affiliate_url   TEXT NOT NULL,
			retailer        TEXT NOT NULL,
			title           TEXT NOT NULL,
			current_price   TEXT NOT NULL,
			currency        TEXT NOT NULL,
			target_price    TEXT,
			image_url       TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL,
			last_checked_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_products_user_id ON products(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating products table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS price_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id  INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			price       TEXT NOT NULL,
			currency    TEXT NOT NULL,
			recorded_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_price_history_product_id ON price_history(product_id);
	`)
	if err != nil {
		return fmt.Errorf("creating price_history table: %w", err)
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// rollback is deferred after BeginTx; it is a no-op once Commit succeeded.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
