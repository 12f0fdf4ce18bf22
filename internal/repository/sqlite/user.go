package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/dealwatch/internal/apperror"
	"github.com/sakif/dealwatch/internal/model"
	"github.com/sakif/dealwatch/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const (
	referralCodeLen      = 8
	referralCodeAttempts = 5
)

const userColumns = `id, handle, referral_code, referred_by, referral_count, max_products, premium, created_at`

// CreateUser registers a user the first time it is called for id.
//
// Everything happens in one transaction:
//  1. an existing user short-circuits with its stored code
//  2. the new row is inserted with a fresh referral code
//  3. the referrer, if any, gains a referral, the bonus slots and premium
//
// A referrer that does not exist is ignored. A new user referring themselves
// is rejected.
func (db *DB) CreateUser(ctx context.Context, id int64, handle string, referrerID *int64) (string, bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("sqlite: creating user %d: begin: %w", id, err)
	}
	defer rollback(tx)

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT referral_code FROM users WHERE id = ?`, id).Scan(&existing)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", false, fmt.Errorf("sqlite: creating user %d: lookup: %w", id, err)
	}

	// a replay by an existing user has already returned above
	if referrerID != nil && *referrerID == id {
		return "", false, apperror.ValidationFailed("referrer", "users cannot refer themselves")
	}

	if referrerID != nil {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, *referrerID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			referrerID = nil
		} else if err != nil {
			return "", false, fmt.Errorf("sqlite: creating user %d: referrer lookup: %w", id, err)
		}
	}

	code, err := uniqueReferralCode(ctx, tx)
	if err != nil {
		return "", false, fmt.Errorf("sqlite: creating user %d: %w", id, err)
	}

	var referredBy sql.NullInt64
	if referrerID != nil {
		referredBy = sql.NullInt64{Int64: *referrerID, Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, handle, referral_code, referred_by, max_products, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, handle, code, referredBy, db.defaultMaxProducts, time.Now().UTC(),
	)
	if err != nil {
		return "", false, fmt.Errorf("sqlite: creating user %d: insert: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// lost a race against another process sharing the file
		if err := tx.QueryRowContext(ctx, `SELECT referral_code FROM users WHERE id = ?`, id).Scan(&existing); err != nil {
			return "", false, fmt.Errorf("sqlite: creating user %d: re-read: %w", id, err)
		}
		return existing, false, nil
	}

	if referrerID != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET referral_count = referral_count + 1,
			     max_products   = max_products + ?,
			     premium        = 1
			 WHERE id = ?`,
			db.referralBonus, *referrerID,
		)
		if err != nil {
			return "", false, fmt.Errorf("sqlite: crediting referrer %d: %w", *referrerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("sqlite: creating user %d: commit: %w", id, err)
	}
	return code, true, nil
}

// uniqueReferralCode draws short upper-case codes from random UUIDs until one
// is not taken.
func uniqueReferralCode(ctx context.Context, tx *sql.Tx) (string, error) {
	for range referralCodeAttempts {
		code := strings.ToUpper(uuid.NewString()[:referralCodeLen])

		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE referral_code = ?`, code).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking referral code: %w", err)
		}
	}
	return "", fmt.Errorf("no free referral code after %d attempts", referralCodeAttempts)
}

// GetUser returns apperror.ErrNotFound when id is unknown.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByReferralCode matches codes case-insensitively.
func (db *DB) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = ?`, code)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("referral code", code)
		}
		return nil, fmt.Errorf("sqlite: getting user by referral code: %w", err)
	}
	return u, nil
}

// ReferralStats returns the user's referral standing and everyone who joined
// through them, oldest first.
func (db *DB) ReferralStats(ctx context.Context, id int64) (*model.ReferralStats, error) {
	u, err := db.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, handle, created_at FROM users WHERE referred_by = ? ORDER BY created_at, id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing referrals of %d: %w", id, err)
	}
	defer rows.Close()

	referred := make([]model.ReferredUser, 0, u.ReferralCount)
	for rows.Next() {
		var r model.ReferredUser
		if err := rows.Scan(&r.ID, &r.Handle, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning referral: %w", err)
		}
		referred = append(referred, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating referrals: %w", err)
	}

	return &model.ReferralStats{
		ReferralCode:  u.ReferralCode,
		ReferralCount: u.ReferralCount,
		MaxProducts:   u.MaxProducts,
		Premium:       u.Premium,
		Referred:      referred,
	}, nil
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u          model.User
		referredBy sql.NullInt64
	)
	err := s.Scan(
		&u.ID,
		&u.Handle,
		&u.ReferralCode,
		&referredBy,
		&u.ReferralCount,
		&u.MaxProducts,
		&u.Premium,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if referredBy.Valid {
		ref := referredBy.Int64
		u.ReferredBy = &ref
	}
	return &u, nil
}
