package extractor

import (
	"context"
	"time"

	"github.com/sakif/dealwatch/internal/model"
	"github.com/sakif/dealwatch/internal/retailer"
)

// Scraper fetches a product page and extracts it in one bounded attempt.
// There is no retry: the caller decides whether and when to try again.
type Scraper struct {
	fetcher   Fetcher
	extractor *Extractor
	timeout   time.Duration
}

func NewScraper(fetcher Fetcher, extractor *Extractor, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scraper{
		fetcher:   fetcher,
		extractor: extractor,
		timeout:   timeout,
	}
}

// Scrape fetches pageURL and extracts it as a page of retailer id.
func (s *Scraper) Scrape(ctx context.Context, id retailer.ID, pageURL string) (*model.ProductInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	markup, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if !IsFetch(err) {
			err = &FetchError{URL: pageURL, Err: err}
		}
		return nil, err
	}

	return s.extractor.Extract(id, markup, pageURL)
}
