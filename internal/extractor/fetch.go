package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Fetcher returns the raw markup behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// FetchConfig is the shared outbound request configuration.
type FetchConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// CollyFetcher fetches pages with a colly collector. Each call works on a
// clone of a base collector so callbacks of concurrent fetches never mix,
// while the HTTP client and its connection pool are shared.
type CollyFetcher struct {
	base *colly.Collector
}

func NewCollyFetcher(cfg FetchConfig) *CollyFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(cfg.Timeout)
	// product pages are fetched one at a time and need no session
	c.DisableCookies()

	return &CollyFetcher{base: c}
}

// Fetch gets pageURL. Any failure, including a non-2xx status, is returned as
// a *FetchError.
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	c := f.base.Clone()
	c.Context = ctx

	var (
		body       []byte
		statusCode int
		respErr    error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		respErr = err
	})

	err := c.Visit(pageURL)
	if respErr != nil {
		err = respErr
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && body == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: statusCode, Err: err}
	}
	return body, nil
}
