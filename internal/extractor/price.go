package extractor

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sakif/dealwatch/internal/retailer"
)

var pricePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parsePrice pulls the first number out of price text such as "₦ 12,500"
// or "$1,299.99". Commas are treated as thousands separators. Zero is not a
// price: retailers render 0 for out-of-stock placeholders.
func parsePrice(text string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(text, ",", "")
	m := pricePattern.FindString(cleaned)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// detectCurrency resolves the currency for a matched price. The page's
// country domain wins, then the first symbol found in the price text, then
// the retailer default.
func detectCurrency(rt retailer.Retailer, priceText, pageURL string) string {
	if host := retailer.Host(pageURL); host != "" {
		for _, dc := range rt.DomainCurrencies {
			if host == dc.Suffix || strings.HasSuffix(host, "."+dc.Suffix) {
				return dc.Currency
			}
		}
	}
	for _, sym := range rt.CurrencySymbols {
		if strings.Contains(priceText, sym) {
			return sym
		}
	}
	return rt.DefaultCurrency
}
