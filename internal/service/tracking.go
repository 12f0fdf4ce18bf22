// Package service contains the business logic of the tracking core.
//
// Handlers call services, services call the repository. TrackingService
// takes its store and scraper as interfaces, so tests run it against mocks
// and main.go decides which implementations to wire in.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/sakif/dealwatch/internal/apperror"
	"github.com/sakif/dealwatch/internal/model"
	"github.com/sakif/dealwatch/internal/repository"
	"github.com/sakif/dealwatch/internal/retailer"
)

const (
	MaxHandleLength = 64
	MaxURLLength    = 2048
)

// Scraper returns a snapshot of a product page.
type Scraper interface {
	Scrape(ctx context.Context, id retailer.ID, pageURL string) (*model.ProductInfo, error)
}

// TrackingService is the ingestion and query path: registering users,
// starting to track a URL, and everything a user can look at or remove.
type TrackingService struct {
	store    repository.Store
	registry *retailer.Registry
	scraper  Scraper
	logger   *slog.Logger
}

func NewTrackingService(store repository.Store, registry *retailer.Registry, scraper Scraper, logger *slog.Logger) *TrackingService {
	return &TrackingService{
		store:    store,
		registry: registry,
		scraper:  scraper,
		logger:   logger,
	}
}

// Register creates the user on first contact and returns their referral
// code. referralCode is the code the user arrived with, if any; unknown codes
// and the user's own code are ignored rather than rejected, so a bad link
// never blocks sign-up. Calling Register again is harmless.
func (s *TrackingService) Register(ctx context.Context, userID int64, handle, referralCode string) (string, error) {
	if userID <= 0 {
		return "", apperror.ValidationFailed("id", "user id must be positive")
	}
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if utf8.RuneCountInString(handle) > MaxHandleLength {
		return "", apperror.ValidationFailed("handle", "handle must be at most 64 characters")
	}

	var referrerID *int64
	if code := strings.TrimSpace(referralCode); code != "" {
		referrer, err := s.store.GetUserByReferralCode(ctx, code)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			s.logger.Info("ignoring unknown referral code", slog.Int64("user_id", userID), slog.String("code", code))
		case err != nil:
			return "", err
		case referrer.ID == userID:
			s.logger.Info("ignoring self-referral", slog.Int64("user_id", userID))
		default:
			referrerID = &referrer.ID
		}
	}

	code, created, err := s.store.CreateUser(ctx, userID, handle, referrerID)
	if err != nil {
		return "", err
	}

	if created {
		attrs := []any{slog.Int64("user_id", userID)}
		if referrerID != nil {
			attrs = append(attrs, slog.Int64("referrer_id", *referrerID))
		}
		s.logger.Info("user registered", attrs...)
	}
	return code, nil
}

// Preview scrapes rawURL without storing anything, so the caller can show the
// product before asking for a target price.
func (s *TrackingService) Preview(ctx context.Context, userID int64, rawURL string) (*model.ProductInfo, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	pageURL, id, err := s.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	return s.scraper.Scrape(ctx, id, pageURL)
}

// Track starts tracking rawURL for userID with an optional target price.
//
// The submitted URL is scraped as-is and kept as the product's source; the
// canonical and affiliate forms are derived from it. The quota is checked
// before scraping to spare a fetch, and enforced again atomically by the
// store.
func (s *TrackingService) Track(ctx context.Context, userID int64, rawURL string, target *decimal.Decimal) (*model.Product, error) {
	pageURL, id, err := s.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	if target != nil && !target.IsPositive() {
		return nil, apperror.ValidationFailed("target_price", "target price must be greater than zero")
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	used, err := s.store.CountProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if used >= user.MaxProducts {
		return nil, apperror.QuotaExceeded(user.MaxProducts)
	}

	info, err := s.scraper.Scrape(ctx, id, pageURL)
	if err != nil {
		s.logger.Warn("scrape failed",
			slog.Int64("user_id", userID),
			slog.String("retailer", string(id)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	canonical := s.registry.Canonicalize(pageURL, id)
	p := &model.Product{
		UserID:       userID,
		SourceURL:    pageURL,
		URL:          canonical,
		AffiliateURL: s.registry.Tag(canonical, id),
		RetailerID:   string(id),
		Title:        info.Title,
		CurrentPrice: info.Price,
		Currency:     info.Currency,
		ImageURL:     info.ImageURL,
	}
	if target != nil {
		p.TargetPrice = decimal.NewNullDecimal(*target)
	}

	if err := s.store.AddProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("product tracked",
		slog.Int64("user_id", userID),
		slog.Int64("product_id", p.ID),
		slog.String("retailer", p.RetailerID),
		slog.String("price", p.CurrentPrice.String()),
	)
	return p, nil
}

// Products lists the user's products, newest first.
func (s *TrackingService) Products(ctx context.Context, userID int64) ([]model.Product, error) {
	return s.store.ListProducts(ctx, userID)
}

// Remove stops tracking productID. It reports false when the product does
// not exist or belongs to another user.
func (s *TrackingService) Remove(ctx context.Context, userID, productID int64) (bool, error) {
	removed, err := s.store.RemoveProduct(ctx, productID, userID)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("product removed", slog.Int64("user_id", userID), slog.Int64("product_id", productID))
	}
	return removed, nil
}

// History lists the price observations of one of the user's products.
func (s *TrackingService) History(ctx context.Context, userID, productID int64) ([]model.PricePoint, error) {
	return s.store.PriceHistory(ctx, productID, userID)
}

// Limits reports how many of the user's product slots are in use.
func (s *TrackingService) Limits(ctx context.Context, userID int64) (*model.Limits, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	used, err := s.store.CountProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Limits{
		Used:      used,
		Max:       user.MaxProducts,
		Remaining: max(user.MaxProducts-used, 0),
		Premium:   user.Premium,
	}, nil
}

func (s *TrackingService) Referrals(ctx context.Context, userID int64) (*model.ReferralStats, error) {
	return s.store.ReferralStats(ctx, userID)
}

// resolve validates rawURL and finds its retailer. URLs without a scheme are
// taken as https.
func (s *TrackingService) resolve(rawURL string) (string, retailer.ID, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", apperror.ValidationFailed("url", "url is required")
	}
	if len(rawURL) > MaxURLLength {
		return "", "", apperror.ValidationFailed("url", "url must be at most "+strconv.Itoa(MaxURLLength)+" characters")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", apperror.ValidationFailed("url", "url must be an http or https link")
	}

	id, ok := s.registry.Resolve(rawURL)
	if !ok {
		return "", "", apperror.UnsupportedRetailer(retailer.Host(rawURL))
	}
	return rawURL, id, nil
}
