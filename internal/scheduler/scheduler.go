// Package scheduler re-checks tracked products on two cadences and alerts
// users about price drops and reached targets.
//
// Each cadence runs passes over the products of one tier. Within a pass every
// product is handled in isolation: a product that fails to scrape is logged
// and skipped, its stored price untouched, and the pass moves on. There is no
// retry; the next pass is the retry.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/dealwatch/internal/extractor"
	"github.com/sakif/dealwatch/internal/model"
	"github.com/sakif/dealwatch/internal/notify"
	"github.com/sakif/dealwatch/internal/retailer"
)

const (
	DefaultStandardInterval = 18 * time.Hour
	DefaultPremiumInterval  = 8 * time.Hour
	DefaultItemTimeout      = 30 * time.Second
)

// Tier selects which users' products a pass covers.
type Tier int

const (
	Standard Tier = iota
	Premium
)

func (t Tier) String() string {
	if t == Premium {
		return "premium"
	}
	return "standard"
}

// Store is the part of the tracking store a pass needs.
type Store interface {
	ProductsByTier(ctx context.Context, premium bool) ([]model.TierProduct, error)
	RecordPrice(ctx context.Context, productID int64, price decimal.Decimal, currency string) error
}

// Scraper returns a fresh snapshot of a product page.
type Scraper interface {
	Scrape(ctx context.Context, id retailer.ID, pageURL string) (*model.ProductInfo, error)
}

type Config struct {
	StandardInterval time.Duration
	PremiumInterval  time.Duration
	// ItemTimeout bounds one product: scrape, alerts and the store write.
	ItemTimeout time.Duration
	// Concurrency is how many products of one pass are checked at once.
	Concurrency int
}

// Summary describes one finished pass.
type Summary struct {
	RunID    string
	Tier     Tier
	Checked  int
	Updated  int
	Failed   int
	Drops    int
	Targets  int
	Duration time.Duration
}

type Scheduler struct {
	store    Store
	scraper  Scraper
	notifier notify.Notifier
	cfg      Config
	logger   *slog.Logger
}

func New(store Store, scraper Scraper, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.StandardInterval <= 0 {
		cfg.StandardInterval = DefaultStandardInterval
	}
	if cfg.PremiumInterval <= 0 {
		cfg.PremiumInterval = DefaultPremiumInterval
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultItemTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Scheduler{
		store:    store,
		scraper:  scraper,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run drives both cadences until ctx is cancelled. The first pass of each
// cadence starts one interval after Run. The cadences never wait for each
// other; a pass that outlasts its interval makes that cadence skip ticks
// rather than queue them.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.Duration("standard_interval", s.cfg.StandardInterval),
		slog.Duration("premium_interval", s.cfg.PremiumInterval),
	)

	var g errgroup.Group
	g.Go(func() error { return s.loop(ctx, Standard, s.cfg.StandardInterval) })
	g.Go(func() error { return s.loop(ctx, Premium, s.cfg.PremiumInterval) })
	err := g.Wait()

	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, tier Tier, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, tier); err != nil {
				s.logger.Error("price check pass failed",
					slog.String("tier", tier.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce performs one pass over the products of tier. Tier membership is
// read from the store now, not cached from earlier passes.
//
// Cancelling ctx stops the pass from starting further products; products
// already started run to completion so that no price update is cut in half.
// The returned error is only about listing the products; per-product
// failures are counted in the summary.
func (s *Scheduler) RunOnce(ctx context.Context, tier Tier) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: xid.New().String(), Tier: tier}
	logger := s.logger.With(slog.String("run", sum.RunID), slog.String("tier", tier.String()))

	products, err := s.store.ProductsByTier(ctx, tier == Premium)
	if err != nil {
		return sum, fmt.Errorf("scheduler: listing %s products: %w", tier, err)
	}
	logger.Info("price check pass started", slog.Int("products", len(products)))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, p := range products {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// cancelled while waiting for a free slot
			if ctx.Err() != nil {
				return nil
			}
			res := s.check(ctx, logger, p)
			mu.Lock()
			sum.Checked++
			res.addTo(&sum)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if skipped := len(products) - sum.Checked; skipped > 0 {
		logger.Info("price check pass interrupted", slog.Int("skipped", skipped))
	}
	sum.Duration = time.Since(start)
	logger.Info("price check pass finished",
		slog.Int("checked", sum.Checked),
		slog.Int("updated", sum.Updated),
		slog.Int("failed", sum.Failed),
		slog.Int("drops", sum.Drops),
		slog.Int("targets", sum.Targets),
		slog.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// result is the outcome of checking one product.
type result struct {
	updated bool
	drop    bool
	target  bool
}

func (r result) addTo(sum *Summary) {
	if r.updated {
		sum.Updated++
	} else {
		sum.Failed++
	}
	if r.drop {
		sum.Drops++
	}
	if r.target {
		sum.Targets++
	}
}

// check re-scrapes one product, sends the alerts its new price calls for and
// records the price. It runs on a context detached from ctx's cancellation
// and bounded by the item timeout.
func (s *Scheduler) check(ctx context.Context, logger *slog.Logger, p model.TierProduct) result {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ItemTimeout)
	defer cancel()

	logger = logger.With(slog.Int64("product_id", p.ID), slog.Int64("user_id", p.UserID))

	info, err := s.scraper.Scrape(itemCtx, retailer.ID(p.RetailerID), p.SourceURL)
	if err != nil {
		logger.Warn("price check failed",
			slog.String("reason", failureReason(err)),
			slog.String("error", err.Error()),
		)
		return result{}
	}

	var res result

	if info.Price.LessThan(p.CurrentPrice) {
		res.drop = true
		s.send(itemCtx, logger, notify.Message{
			Kind:         notify.KindPriceDrop,
			UserID:       p.UserID,
			ProductID:    p.ID,
			Title:        info.Title,
			Currency:     info.Currency,
			NewPrice:     info.Price,
			OldPrice:     p.CurrentPrice,
			AffiliateURL: p.AffiliateURL,
		})
	}

	if p.HasTarget() && info.Price.LessThanOrEqual(p.TargetPrice.Decimal) {
		res.target = true
		s.send(itemCtx, logger, notify.Message{
			Kind:         notify.KindTargetReached,
			UserID:       p.UserID,
			ProductID:    p.ID,
			Title:        info.Title,
			Currency:     info.Currency,
			NewPrice:     info.Price,
			TargetPrice:  p.TargetPrice.Decimal,
			AffiliateURL: p.AffiliateURL,
		})
	}

	if err := s.store.RecordPrice(itemCtx, p.ID, info.Price, info.Currency); err != nil {
		logger.Error("recording price failed", slog.String("error", err.Error()))
		return res
	}
	res.updated = true
	return res
}

// send delivers msg. Delivery failures, such as a user who blocked the bot,
// are logged and otherwise ignored.
func (s *Scheduler) send(ctx context.Context, logger *slog.Logger, msg notify.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		logger.Warn("notification failed",
			slog.String("kind", string(msg.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

func failureReason(err error) string {
	switch {
	case extractor.IsFetch(err):
		return "fetch"
	case extractor.IsParse(err):
		return "parse"
	default:
		return "other"
	}
}
