package retailer

// Builtin returns the retailers supported out of the box. Each call returns
// fresh slices so callers may modify the result before building a Registry.
func Builtin() []Retailer {
	return []Retailer{
		{
			ID:   Amazon,
			Name: "Amazon",
			Domains: []string{
				"amazon.com", "amazon.co.uk", "amazon.de", "amazon.fr", "amazon.it", "amazon.es",
				"amazon.ca", "amazon.com.au", "amazon.in", "amazon.com.br", "amazon.com.mx", "amazon.co.jp",
			},
			AffiliateParam:  "tag=webcodelab-20",
			CurrencySymbols: []string{"MX$", "R$", "A$", "€", "£", "₹", "¥"},
			DefaultCurrency: "$",
			Selectors: Selectors{
				Title: []string{
					"#productTitle",
					"h1.a-size-large",
					"h1.a-size-base-plus",
					".a-size-large.product-title-word-break",
				},
				Price: []string{
					".a-price .a-offscreen",
					".a-price-whole",
					"#priceblock_ourprice",
					"#priceblock_dealprice",
					".a-price-range .a-offscreen",
				},
				Image: []string{
					"#landingImage",
					"#imgBlkFront",
					".a-dynamic-image",
					"img[data-old-hires]",
				},
			},
			Scheme: ASIN,
		},
		{
			ID:              AliExpress,
			Name:            "AliExpress",
			Domains:         []string{"aliexpress.com", "aliexpress.ru"},
			AffiliateParam:  "aff_platform=link-c-tool&src=go",
			CurrencySymbols: []string{"€", "¥"},
			DefaultCurrency: "$",
			Selectors: Selectors{
				Title: []string{".product-title", "h1.product-title-text", ".product-title-text"},
				Price: []string{".product-price-current", ".product-price-value", ".price-current"},
				Image: []string{".images-view-item img", ".product-image img", ".magnifier-image"},
			},
		},
		{
			ID:   Jumia,
			Name: "Jumia",
			Domains: []string{
				"jumia.com.ng", "jumia.co.ke", "jumia.com.gh", "jumia.co.ug", "jumia.com.tn", "jumia.dz",
				"jumia.ma", "jumia.com.eg", "jumia.com.ci", "jumia.sn", "jumia.cm",
			},
			AffiliateParam: "aff_id=webcodelab-20",
			CurrencySymbols: []string{
				"GH₵", "KSh", "USh", "TND", "DZD", "MAD", "EGP", "XOF", "XAF", "CFA", "₦",
			},
			DomainCurrencies: []DomainCurrency{
				{Suffix: "jumia.co.ke", Currency: "KSh"},
				{Suffix: "jumia.com.gh", Currency: "GH₵"},
				{Suffix: "jumia.co.ug", Currency: "USh"},
				{Suffix: "jumia.com.tn", Currency: "TND"},
				{Suffix: "jumia.dz", Currency: "DZD"},
				{Suffix: "jumia.ma", Currency: "MAD"},
				{Suffix: "jumia.com.eg", Currency: "EGP"},
				{Suffix: "jumia.com.ci", Currency: "XOF"},
				{Suffix: "jumia.sn", Currency: "XOF"},
				{Suffix: "jumia.cm", Currency: "XAF"},
			},
			DefaultCurrency: "₦",
			Selectors: Selectors{
				Title: []string{`h1[data-name="product-title"]`, ".product-title", "h1.title", "h1.-fs20"},
				Price: []string{".-b.-fs24", ".price", ".product-price", ".price-current", "[data-price]"},
				Image: []string{".image-gallery-slide img", ".product-image img", ".gallery-image", "img.-fw"},
			},
		},
		{
			ID:              Konga,
			Name:            "Konga",
			Domains:         []string{"konga.com"},
			AffiliateParam:  "utm_source=dealwatch",
			CurrencySymbols: []string{"₦"},
			DefaultCurrency: "₦",
			Selectors: Selectors{
				Title: []string{".product-name", "h1.product-title", ".product-details h1"},
				Price: []string{".price", ".product-price", ".current-price", "[data-price]"},
				Image: []string{".product-image img", ".gallery-image img", ".main-image"},
			},
		},
	}
}
