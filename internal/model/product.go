package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a tracked product row. A user may track the same URL more than
// once; rows are never deduplicated.
//
// SourceURL is what the user submitted and what re-checks fetch. URL is the
// canonical form and AffiliateURL the canonical form with the retailer's
// affiliate parameter appended, used for outbound links.
type Product struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"userId"`
	SourceURL     string              `json:"sourceUrl"`
	URL           string              `json:"url"`
	AffiliateURL  string              `json:"affiliateUrl"`
	RetailerID    string              `json:"retailer"`
	Title         string              `json:"title"`
	CurrentPrice  decimal.Decimal     `json:"currentPrice"`
	Currency      string              `json:"currency"`
	TargetPrice   decimal.NullDecimal `json:"targetPrice"`
	ImageURL      string              `json:"imageUrl,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	LastCheckedAt time.Time           `json:"lastCheckedAt"`
}

// HasTarget reports whether the user set a target price.
func (p *Product) HasTarget() bool {
	return p.TargetPrice.Valid
}

// TierProduct is a product joined with its owner's tier flag at query time.
type TierProduct struct {
	Product
	OwnerPremium bool `json:"ownerPremium"`
}

// PricePoint is one append-only price history entry.
type PricePoint struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"productId"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// ProductInfo is what the extractor pulls out of a product page.
type ProductInfo struct {
	RetailerID string          `json:"retailer"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	ImageURL   string          `json:"imageUrl,omitempty"`
}
