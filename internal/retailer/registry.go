// Package retailer knows which e-commerce sites are supported: how to
// recognise their URLs, how their product pages are laid out, which currency
// symbols they use and how their affiliate links are built.
//
// Adding a retailer means adding one Retailer value to Builtin; nothing else
// dispatches on the retailer type.
package retailer

import (
	"net/url"
	"strings"
)

// ID identifies a retailer, e.g. "amazon".
type ID string

const (
	Amazon     ID = "amazon"
	AliExpress ID = "aliexpress"
	Jumia      ID = "jumia"
	Konga      ID = "konga"
)

// Scheme selects how a retailer's product URLs are canonicalised.
type Scheme int

const (
	// StripQuery drops the query string and fragment.
	StripQuery Scheme = iota
	// ASIN rebuilds Amazon URLs around the 10-character product identifier.
	ASIN
)

// Selectors are ordered CSS selector candidates. The first candidate that
// yields a usable value wins.
type Selectors struct {
	Title []string
	Price []string
	Image []string
}

// DomainCurrency maps a country domain suffix to the currency used there.
type DomainCurrency struct {
	Suffix   string
	Currency string
}

// Retailer is the static description of one supported site.
type Retailer struct {
	ID      ID
	Name    string
	Domains []string

	// AffiliateParam is appended to outbound links, without a leading
	// separator, e.g. "tag=webcodelab-20".
	AffiliateParam string

	// CurrencySymbols is scanned in order against the raw price text, so
	// longer symbols sharing a suffix ("R$", "A$") must precede shorter ones.
	CurrencySymbols  []string
	DomainCurrencies []DomainCurrency
	DefaultCurrency  string

	Selectors Selectors
	Scheme    Scheme
}

// Registry resolves URLs to retailers. It is immutable after construction and
// safe for concurrent use.
type Registry struct {
	retailers []Retailer
	byID      map[ID]int
}

// NewRegistry builds a registry from the given retailers. Later entries with a
// duplicate ID replace earlier ones.
func NewRegistry(retailers ...Retailer) *Registry {
	r := &Registry{byID: make(map[ID]int, len(retailers))}
	for _, rt := range retailers {
		if i, ok := r.byID[rt.ID]; ok {
			r.retailers[i] = rt
			continue
		}
		r.byID[rt.ID] = len(r.retailers)
		r.retailers = append(r.retailers, rt)
	}
	return r
}

// Default returns a registry of the built-in retailers.
func Default() *Registry {
	return NewRegistry(Builtin()...)
}

// Get returns the retailer registered under id.
func (r *Registry) Get(id ID) (Retailer, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Retailer{}, false
	}
	return r.retailers[i], true
}

// IDs lists the registered retailer IDs in registration order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.retailers))
	for _, rt := range r.retailers {
		ids = append(ids, rt.ID)
	}
	return ids
}

// Resolve reports which retailer, if any, serves rawURL. A host matches a
// domain when it equals it or is a subdomain of it, compared
// case-insensitively.
func (r *Registry) Resolve(rawURL string) (ID, bool) {
	host := Host(rawURL)
	if host == "" {
		return "", false
	}
	for _, rt := range r.retailers {
		if rt.Owns(host) {
			return rt.ID, true
		}
	}
	return "", false
}

// Owns reports whether host is one of the retailer's domains or a subdomain
// of one.
func (rt Retailer) Owns(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, d := range rt.Domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Host extracts the lower-cased host of rawURL without port or trailing dot.
// Scheme-less input such as "amazon.com/dp/X" is accepted.
func Host(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}
