package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/dealwatch/internal/apperror"
	"github.com/sakif/dealwatch/internal/model"
	"github.com/sakif/dealwatch/internal/repository"
)

var _ repository.ProductRepository = (*DB)(nil)

const productColumns = `p.id, p.user_id, p.source_url, p.url, p.affiliate_url, p.retailer, p.title,
	p.current_price, p.currency, p.target_price, p.image_url, p.created_at, p.last_checked_at`

// AddProduct stores p for p.UserID together with its first history entry.
// On success p.ID and the timestamps are filled in.
//
// CONDITIONAL INSERT:
// The quota check and the insert are one statement. INSERT ... SELECT ...
// WHERE count < max_products inserts nothing once the user is full, so two
// concurrent submissions can never both pass a separate check and overshoot
// the quota. When nothing was inserted the user row tells us why.
func (db *DB) AddProduct(ctx context.Context, p *model.Product) error {
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: adding product: begin: %w", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO products (user_id, source_url, url, affiliate_url, retailer, title,
		                       current_price, currency, target_price, image_url, created_at, last_checked_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 FROM users u
		 WHERE u.id = ?
		   AND (SELECT COUNT(*) FROM products WHERE user_id = u.id) < u.max_products`,
		p.UserID, p.SourceURL, p.URL, p.AffiliateURL, p.RetailerID, p.Title,
		p.CurrentPrice, p.Currency, p.TargetPrice, p.ImageURL, now, now,
		p.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding product for user %d: %w", p.UserID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: adding product for user %d: %w", p.UserID, err)
	}
	if n == 0 {
		var limit int
		err := tx.QueryRowContext(ctx, `SELECT max_products FROM users WHERE id = ?`, p.UserID).Scan(&limit)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("user", strconv.FormatInt(p.UserID, 10))
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading quota of user %d: %w", p.UserID, err)
		}
		return apperror.QuotaExceeded(limit)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: adding product for user %d: %w", p.UserID, err)
	}

	if err := insertHistory(ctx, tx, id, p.CurrentPrice, p.Currency, now); err != nil {
		return fmt.Errorf("sqlite: adding product %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: adding product %d: commit: %w", id, err)
	}

	p.ID = id
	p.CreatedAt = now
	p.LastCheckedAt = now
	return nil
}

// ListProducts returns the user's products, newest first.
func (db *DB) ListProducts(ctx context.Context, userID int64) ([]model.Product, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.user_id = ? ORDER BY p.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing products of %d: %w", userID, err)
	}
	defer rows.Close()

	products := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating products: %w", err)
	}
	return products, nil
}

func (db *DB) CountProducts(ctx context.Context, userID int64) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting products of %d: %w", userID, err)
	}
	return n, nil
}

// RemoveProduct deletes the product and its history if userID owns it.
func (db *DB) RemoveProduct(ctx context.Context, productID, userID int64) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing product %d: begin: %w", productID, err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx,
		`DELETE FROM price_history
		 WHERE product_id IN (SELECT id FROM products WHERE id = ? AND user_id = ?)`,
		productID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing history of product %d: %w", productID, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ? AND user_id = ?`, productID, userID)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing product %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: removing product %d: %w", productID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: removing product %d: commit: %w", productID, err)
	}
	return n > 0, nil
}

// RecordPrice stores a fresh observation: the product's current price,
// currency and last-checked time are updated and one history entry is
// appended, both or neither.
func (db *DB) RecordPrice(ctx context.Context, productID int64, price decimal.Decimal, currency string) error {
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: recording price of %d: begin: %w", productID, err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET current_price = ?, currency = ?, last_checked_at = ? WHERE id = ?`,
		price, currency, now, productID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording price of %d: %w", productID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite: recording price of %d: %w", productID, err)
	} else if n == 0 {
		return apperror.NotFound("product", strconv.FormatInt(productID, 10))
	}

	if err := insertHistory(ctx, tx, productID, price, currency, now); err != nil {
		return fmt.Errorf("sqlite: recording price of %d: %w", productID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: recording price of %d: commit: %w", productID, err)
	}
	return nil
}

// PriceHistory returns the product's observations oldest first. A product
// the user does not own is reported as not found.
func (db *DB) PriceHistory(ctx context.Context, productID, userID int64) ([]model.PricePoint, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM products WHERE id = ? AND user_id = ?`, productID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("product", strconv.FormatInt(productID, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking product %d: %w", productID, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, product_id, price, currency, recorded_at
		 FROM price_history WHERE product_id = ? ORDER BY id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing history of %d: %w", productID, err)
	}
	defer rows.Close()

	history := make([]model.PricePoint, 0)
	for rows.Next() {
		var pp model.PricePoint
		if err := rows.Scan(&pp.ID, &pp.ProductID, &pp.Price, &pp.Currency, &pp.RecordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning price point: %w", err)
		}
		history = append(history, pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating history: %w", err)
	}
	return history, nil
}

// ProductsByTier returns every product whose owner's premium flag currently
// equals premium. The flag is read at query time, so a user upgraded between
// two passes moves to the other cadence on the next one.
func (db *DB) ProductsByTier(ctx context.Context, premium bool) ([]model.TierProduct, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+productColumns+`, u.premium
		 FROM products p JOIN users u ON u.id = p.user_id
		 WHERE u.premium = ?
		 ORDER BY p.id`,
		premium,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing products by tier: %w", err)
	}
	defer rows.Close()

	products := make([]model.TierProduct, 0)
	for rows.Next() {
		var tp model.TierProduct
		if err := rows.Scan(append(productDest(&tp.Product), &tp.OwnerPremium)...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tier product: %w", err)
		}
		products = append(products, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tier products: %w", err)
	}
	return products, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, productID int64, price decimal.Decimal, currency string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, currency, recorded_at) VALUES (?, ?, ?, ?)`,
		productID, price, currency, at,
	)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// productDest lists scan targets in productColumns order.
func productDest(p *model.Product) []any {
	return []any{
		&p.ID,
		&p.UserID,
		&p.SourceURL,
		&p.URL,
		&p.AffiliateURL,
		&p.RetailerID,
		&p.Title,
		&p.CurrentPrice,
		&p.Currency,
		&p.TargetPrice,
		&p.ImageURL,
		&p.CreatedAt,
		&p.LastCheckedAt,
	}
}

func scanProduct(s rowScanner) (*model.Product, error) {
	var p model.Product
	if err := s.Scan(productDest(&p)...); err != nil {
		return nil, err
	}
	return &p, nil
}
