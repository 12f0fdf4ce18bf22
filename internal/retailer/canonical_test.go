package retailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	reg := Default()

	tests := []struct {
		name string
		url  string
		id   ID
		want string
	}{
		{
			name: "amazon dp with slug and ref",
			url:  "https://www.amazon.com/Some-Product-Name/dp/B09VVDYM7N/ref=sr_1_1?keywords=x&qid=1",
			id:   Amazon,
			want: "https://www.amazon.com/dp/B09VVDYM7N",
		},
		{
			name: "amazon gp/product keeps country host",
			url:  "https://www.amazon.co.uk/gp/product/B01N5IB20Q?psc=1",
			id:   Amazon,
			want: "https://www.amazon.co.uk/dp/B01N5IB20Q",
		},
		{
			name: "amazon sponsored redirect",
			url:  "https://www.amazon.com/sspa/click?ie=UTF8&spc=MTo&url=%2Fdp%2FB09VVDYM7N%2Fref%3Dsr_1_1_sspa%3Fpsc%3D1",
			id:   Amazon,
			want: "https://www.amazon.com/dp/B09VVDYM7N",
		},
		{
			name: "amazon redirect to absolute url on another store",
			url:  "https://www.amazon.com/sspa/click?url=https%3A%2F%2Fwww.amazon.de%2Fdp%2FB07XJ8C8F5",
			id:   Amazon,
			want: "https://www.amazon.de/dp/B07XJ8C8F5",
		},
		{
			name: "amazon without identifier falls back to stripping",
			url:  "https://www.amazon.com/s?k=headphones#top",
			id:   Amazon,
			want: "https://www.amazon.com/s",
		},
		{
			name: "amazon nested redirects beyond depth cap are stripped",
			url: "https://www.amazon.com/a?url=" +
				"https%3A%2F%2Fwww.amazon.com%2Fb%3Furl%3D" +
				"https%253A%252F%252Fwww.amazon.com%252Fc%253Furl%253D" +
				"https%25253A%25252F%25252Fwww.amazon.com%25252Fdp%25252FB09VVDYM7N",
			id:   Amazon,
			want: "https://www.amazon.com/c",
		},
		{
			name: "amazon redirect off the retailer is not followed",
			url:  "https://www.amazon.com/sspa/click?url=https%3A%2F%2Fevil.example%2Fphish",
			id:   Amazon,
			want: "https://www.amazon.com/sspa/click",
		},
		{
			name: "amazon redirect to off-site product path is not followed",
			url:  "https://www.amazon.com/sspa/click?url=https%3A%2F%2Fevil.example%2Fdp%2FB09VVDYM7N",
			id:   Amazon,
			want: "https://www.amazon.com/sspa/click",
		},
		{
			name: "amazon javascript redirect",
			url:  "https://www.amazon.com/sspa/click?url=javascript%3Aalert(1)",
			id:   Amazon,
			want: "https://www.amazon.com/sspa/click",
		},
		{
			name: "amazon bare word redirect",
			url:  "https://www.amazon.com/sspa/click?url=foo",
			id:   Amazon,
			want: "https://www.amazon.com/sspa/click",
		},
		{
			name: "amazon protocol-relative redirect",
			url:  "https://www.amazon.com/sspa/click?url=%2F%2Fevil.example%2Fx",
			id:   Amazon,
			want: "https://www.amazon.com/sspa/click",
		},
		{
			name: "jumia strips query and fragment",
			url:  "https://www.jumia.com.ng/tecno-spark-123.html?utm=x#reviews",
			id:   Jumia,
			want: "https://www.jumia.com.ng/tecno-spark-123.html",
		},
		{
			name: "konga strips query",
			url:  "https://www.konga.com/product/lg-tv-5544?aff=1",
			id:   Konga,
			want: "https://www.konga.com/product/lg-tv-5544",
		},
		{
			name: "aliexpress strips query",
			url:  "https://www.aliexpress.com/item/1005001.html?spm=a2g0o&gatewayAdapt=glo2usa",
			id:   AliExpress,
			want: "https://www.aliexpress.com/item/1005001.html",
		},
		{
			name: "unknown retailer unchanged",
			url:  "https://shop.example/p?id=1",
			id:   "nope",
			want: "https://shop.example/p?id=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reg.Canonicalize(tt.url, tt.id)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, reg.Canonicalize(got, tt.id), "canonicalize must be idempotent")
		})
	}
}

func TestCanonicalize_IdempotentAcrossShapes(t *testing.T) {
	reg := Default()
	inputs := map[ID][]string{
		Amazon: {
			"https://www.amazon.in/dp/B0C1234567",
			"https://www.amazon.in/x/dp/B0C1234567?th=1",
			"https://amazon.com/gp/aw/d/B0C1234567",
			"https://www.amazon.com/sspa/click?url=%2Fgp%2Fproduct%2FB0C1234567",
			"https://www.amazon.com/stores/page/ABC?ingress=2",
		},
		Jumia:      {"https://www.jumia.co.ke/a.html?x=1", "https://www.jumia.co.ke/a.html"},
		AliExpress: {"https://aliexpress.ru/item/1.html?sku=2#d"},
	}

	for id, urls := range inputs {
		for _, u := range urls {
			once := reg.Canonicalize(u, id)
			assert.Equal(t, once, reg.Canonicalize(once, id), "input %s", u)
		}
	}
}

func TestCanonicalize_TaggedRedirectStaysOnRetailer(t *testing.T) {
	reg := Default()

	for _, inner := range []string{
		"https%3A%2F%2Fevil.example%2Fphish",
		"javascript%3Aalert(1)",
		"%2F%2Fevil.example%2Fx",
	} {
		link := reg.Tag(reg.Canonicalize("https://www.amazon.com/sspa/click?url="+inner, Amazon), Amazon)
		id, ok := reg.Resolve(link)
		assert.True(t, ok, "link %s", link)
		assert.Equal(t, Amazon, id, "link %s", link)
	}
}

func TestOwns(t *testing.T) {
	rt, ok := Default().Get(Amazon)
	assert.True(t, ok)

	assert.True(t, rt.Owns("amazon.com"))
	assert.True(t, rt.Owns("WWW.Amazon.com."))
	assert.True(t, rt.Owns("www.amazon.de"))
	assert.False(t, rt.Owns("amazon.com.evil.example"))
	assert.False(t, rt.Owns("notamazon.com"))
	assert.False(t, rt.Owns(""))
}

func TestTag(t *testing.T) {
	reg := Default()

	tests := []struct {
		name string
		url  string
		id   ID
		want string
	}{
		{"no query uses question mark", "https://www.amazon.com/dp/B09VVDYM7N", Amazon, "https://www.amazon.com/dp/B09VVDYM7N?tag=webcodelab-20"},
		{"existing query uses ampersand", "https://www.amazon.com/dp/B09VVDYM7N?th=1", Amazon, "https://www.amazon.com/dp/B09VVDYM7N?th=1&tag=webcodelab-20"},
		{"trailing question mark", "https://www.konga.com/product/x?", Konga, "https://www.konga.com/product/x?utm_source=dealwatch"},
		{"fragment stays last", "https://www.jumia.com.ng/a.html#specs", Jumia, "https://www.jumia.com.ng/a.html?aff_id=webcodelab-20#specs"},
		{"multi-parameter tag", "https://www.aliexpress.com/item/1.html", AliExpress, "https://www.aliexpress.com/item/1.html?aff_platform=link-c-tool&src=go"},
		{"unknown retailer unchanged", "https://shop.example/p", "nope", "https://shop.example/p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Tag(tt.url, tt.id))
		})
	}
}

func TestTag_EmptyParam(t *testing.T) {
	reg := NewRegistry(Retailer{ID: "plain"})
	assert.Equal(t, "https://plain.example/p", reg.Tag("https://plain.example/p", "plain"))
}
