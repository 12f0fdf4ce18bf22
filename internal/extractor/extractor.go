// Package extractor turns retailer product pages into model.ProductInfo.
//
// Extraction is split from fetching: Extractor works on markup already in
// memory, a Fetcher gets markup over the network, and Scraper combines the
// two with a per-attempt timeout. Failures are typed so callers can tell a
// flaky network (FetchError) from a page that will never parse (ErrParse).
package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sakif/dealwatch/internal/model"
	"github.com/sakif/dealwatch/internal/retailer"
)

// priceAttrs are read when a price element has no text of its own.
var priceAttrs = []string{"data-price", "content", "value"}

// imageAttrs are read in order from a matched image element.
var imageAttrs = []string{"src", "data-src", "data-old-hires"}

// Extractor parses product pages. It holds no per-call state and is safe for
// concurrent use.
type Extractor struct {
	registry *retailer.Registry
}

func New(registry *retailer.Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract parses markup with the selector lists of retailer id. pageURL is
// used for country-specific currency detection and to resolve relative image
// URLs; it may be empty.
//
// Either both title and price are found or an *ExtractionError is returned;
// partial results are never returned.
func (e *Extractor) Extract(id retailer.ID, markup []byte, pageURL string) (*model.ProductInfo, error) {
	rt, ok := e.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRetailer, id)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: reading markup: %v", ErrParse, err)
	}

	title := firstText(doc, rt.Selectors.Title)
	if title == "" {
		return nil, &ExtractionError{Retailer: string(id), Kind: MissingTitle}
	}

	info := &model.ProductInfo{
		RetailerID: string(id),
		Title:      title,
	}

	found := false
	for _, sel := range rt.Selectors.Price {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		text := priceText(s)
		price, ok := parsePrice(text)
		if !ok {
			continue
		}
		info.Price = price
		info.Currency = detectCurrency(rt, text, pageURL)
		found = true
		break
	}
	if !found {
		return nil, &ExtractionError{Retailer: string(id), Kind: MissingPrice}
	}

	info.ImageURL = resolveRef(pageURL, firstAttr(doc, rt.Selectors.Image, imageAttrs))
	return info, nil
}

// firstText returns the collapsed text of the first selector that matches an
// element with non-empty text.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if text := collapseSpace(s.Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute among attrs of the first
// element matched by any selector, trying selectors in order.
func firstAttr(doc *goquery.Document, selectors, attrs []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		for _, a := range attrs {
			if v, ok := s.Attr(a); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func priceText(s *goquery.Selection) string {
	if text := strings.TrimSpace(s.Text()); text != "" {
		return text
	}
	for _, a := range priceAttrs {
		if v, ok := s.Attr(a); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveRef makes ref absolute against base. Data URIs and unparseable input
// are returned as-is.
func resolveRef(base, ref string) string {
	if ref == "" || base == "" || strings.HasPrefix(ref, "data:") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
