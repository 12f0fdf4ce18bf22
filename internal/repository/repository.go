// Package repository declares the storage contracts of the tracking core.
// Implementations live in subpackages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sakif/dealwatch/internal/model"
)

// UserRepository stores users and their referral standing.
type UserRepository interface {
	// CreateUser registers id and returns its referral code. For an existing
	// user it returns the stored code with created=false and changes nothing,
	// so a replayed first contact never grants a second referral bonus.
	CreateUser(ctx context.Context, id int64, handle string, referrerID *int64) (code string, created bool, err error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	ReferralStats(ctx context.Context, id int64) (*model.ReferralStats, error)
}

// ProductRepository stores tracked products and their price history.
type ProductRepository interface {
	// AddProduct inserts p and its first history entry atomically, refusing
	// when the owner already tracks as many products as their quota allows.
	AddProduct(ctx context.Context, p *model.Product) error
	ListProducts(ctx context.Context, userID int64) ([]model.Product, error)
	CountProducts(ctx context.Context, userID int64) (int, error)
	// RemoveProduct reports false, not an error, when the product does not
	// exist or belongs to someone else.
	RemoveProduct(ctx context.Context, productID, userID int64) (bool, error)
	RecordPrice(ctx context.Context, productID int64, price decimal.Decimal, currency string) error
	PriceHistory(ctx context.Context, productID, userID int64) ([]model.PricePoint, error)
	ProductsByTier(ctx context.Context, premium bool) ([]model.TierProduct, error)
}

// Store is everything the tracking core persists.
type Store interface {
	UserRepository
	ProductRepository
}
