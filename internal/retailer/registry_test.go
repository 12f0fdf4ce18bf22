package retailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	reg := Default()

	tests := []struct {
		name   string
		url    string
		wantID ID
		wantOK bool
	}{
		{"amazon us", "https://www.amazon.com/dp/B09VVDYM7N", Amazon, true},
		{"amazon uk upper-case host", "https://WWW.AMAZON.CO.UK/dp/B09VVDYM7N", Amazon, true},
		{"amazon australia", "https://www.amazon.com.au/gp/product/B09VVDYM7N", Amazon, true},
		{"aliexpress", "https://www.aliexpress.com/item/1005001.html", AliExpress, true},
		{"jumia kenya", "https://www.jumia.co.ke/phone-123.html", Jumia, true},
		{"konga with port", "https://www.konga.com:443/product/tv-1", Konga, true},
		{"bare host without scheme", "konga.com/product/tv-1", Konga, true},
		{"unsupported", "https://www.ebay.com/itm/1", "", false},
		{"lookalike host", "https://amazon.com.evil.example/dp/B09VVDYM7N", "", false},
		{"empty", "", "", false},
		{"garbage", "::::", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := reg.Resolve(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNewRegistry_DuplicateReplaces(t *testing.T) {
	reg := NewRegistry(
		Retailer{ID: "shop", AffiliateParam: "a=1"},
		Retailer{ID: "shop", AffiliateParam: "a=2"},
	)

	rt, ok := reg.Get("shop")
	assert.True(t, ok)
	assert.Equal(t, "a=2", rt.AffiliateParam)
	assert.Equal(t, []ID{"shop"}, reg.IDs())
}

func TestBuiltin_EveryRetailerHasSelectors(t *testing.T) {
	for _, rt := range Builtin() {
		t.Run(string(rt.ID), func(t *testing.T) {
			assert.NotEmpty(t, rt.Domains)
			assert.NotEmpty(t, rt.Selectors.Title)
			assert.NotEmpty(t, rt.Selectors.Price)
			assert.NotEmpty(t, rt.DefaultCurrency)
		})
	}
}

func TestHost(t *testing.T) {
	assert.Equal(t, "www.amazon.de", Host("https://www.Amazon.de./dp/X"))
	assert.Equal(t, "jumia.ma", Host("jumia.ma/x"))
	assert.Equal(t, "", Host("   "))
}
