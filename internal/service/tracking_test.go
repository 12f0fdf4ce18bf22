package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sakif/dealwatch/internal/apperror"
	"github.com/sakif/dealwatch/internal/extractor"
	"github.com/sakif/dealwatch/internal/model"
	"github.com/sakif/dealwatch/internal/repository"
	"github.com/sakif/dealwatch/internal/retailer"
)

// =========================================================================
// MOCKS
// =========================================================================

type MockStore struct {
	mock.Mock
}

var _ repository.Store = (*MockStore)(nil)

func (m *MockStore) CreateUser(ctx context.Context, id int64, handle string, referrerID *int64) (string, bool, error) {
	args := m.Called(ctx, id, handle, referrerID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockStore) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	args := m.Called(ctx, code)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockStore) ReferralStats(ctx context.Context, id int64) (*model.ReferralStats, error) {
	args := m.Called(ctx, id)
	st, _ := args.Get(0).(*model.ReferralStats)
	return st, args.Error(1)
}

func (m *MockStore) AddProduct(ctx context.Context, p *model.Product) error {
	args := m.Called(ctx, p)
	if args.Error(0) == nil {
		p.ID = 77
	}
	return args.Error(0)
}

func (m *MockStore) ListProducts(ctx context.Context, userID int64) ([]model.Product, error) {
	args := m.Called(ctx, userID)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Error(1)
}

func (m *MockStore) CountProducts(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) RemoveProduct(ctx context.Context, productID, userID int64) (bool, error) {
	args := m.Called(ctx, productID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) RecordPrice(ctx context.Context, productID int64, price decimal.Decimal, currency string) error {
	return m.Called(ctx, productID, price, currency).Error(0)
}

func (m *MockStore) PriceHistory(ctx context.Context, productID, userID int64) ([]model.PricePoint, error) {
	args := m.Called(ctx, productID, userID)
	h, _ := args.Get(0).([]model.PricePoint)
	return h, args.Error(1)
}

func (m *MockStore) ProductsByTier(ctx context.Context, premium bool) ([]model.TierProduct, error) {
	args := m.Called(ctx, premium)
	ps, _ := args.Get(0).([]model.TierProduct)
	return ps, args.Error(1)
}

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Scrape(ctx context.Context, id retailer.ID, pageURL string) (*model.ProductInfo, error) {
	args := m.Called(ctx, id, pageURL)
	info, _ := args.Get(0).(*model.ProductInfo)
	return info, args.Error(1)
}

func newTestService() (*TrackingService, *MockStore, *MockScraper) {
	store := new(MockStore)
	scraper := new(MockScraper)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTrackingService(store, retailer.Default(), scraper, logger), store, scraper
}

func int64Ptr(v int64) *int64 { return &v }

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister(t *testing.T) {
	t.Run("without referral code", func(t *testing.T) {
		svc, store, _ := newTestService()
		store.On("CreateUser", mock.Anything, int64(5), "ada", (*int64)(nil)).Return("ABCD1234", true, nil)

		code, err := svc.Register(context.Background(), 5, "@ada", "")
		require.NoError(t, err)
		assert.Equal(t, "ABCD1234", code)
		store.AssertExpectations(t)
	})

	t.Run("valid referral code", func(t *testing.T) {
		svc, store, _ := newTestService()
		store.On("GetUserByReferralCode", mock.Anything, "REF00001").Return(&model.User{ID: 9}, nil)
		store.On("CreateUser", mock.Anything, int64(5), "ada", int64Ptr(9)).Return("ABCD1234", true, nil)

		_, err := svc.Register(context.Background(), 5, "ada", " REF00001 ")
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("unknown referral code is ignored", func(t *testing.T) {
		svc, store, _ := newTestService()
		store.On("GetUserByReferralCode", mock.Anything, "NOPE").Return(nil, apperror.NotFound("referral code", "NOPE"))
		store.On("CreateUser", mock.Anything, int64(5), "", (*int64)(nil)).Return("ABCD1234", true, nil)

		_, err := svc.Register(context.Background(), 5, "", "NOPE")
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("own referral code is ignored", func(t *testing.T) {
		svc, store, _ := newTestService()
		store.On("GetUserByReferralCode", mock.Anything, "MINE0001").Return(&model.User{ID: 5}, nil)
		store.On("CreateUser", mock.Anything, int64(5), "", (*int64)(nil)).Return("MINE0001", false, nil)

		code, err := svc.Register(context.Background(), 5, "", "MINE0001")
		require.NoError(t, err)
		assert.Equal(t, "MINE0001", code)
	})

	t.Run("lookup failure surfaces", func(t *testing.T) {
		svc, store, _ := newTestService()
		store.On("GetUserByReferralCode", mock.Anything, "X").Return(nil, errors.New("disk I/O error"))

		_, err := svc.Register(context.Background(), 5, "", "X")
		assert.ErrorContains(t, err, "disk I/O error")
		store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Register(context.Background(), 0, "", "")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("handle length counts characters", func(t *testing.T) {
		svc, store, _ := newTestService()
		cyrillic := strings.Repeat("ж", MaxHandleLength) // 128 bytes
		store.On("CreateUser", mock.Anything, int64(5), cyrillic, (*int64)(nil)).Return("ABCD1234", true, nil)

		_, err := svc.Register(context.Background(), 5, cyrillic, "")
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("handle too long", func(t *testing.T) {
		svc, store, _ := newTestService()

		_, err := svc.Register(context.Background(), 5, strings.Repeat("ж", MaxHandleLength+1), "")
		assert.ErrorIs(t, err, apperror.ErrValidation)
		store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

// =========================================================================
// TRACK TESTS
// =========================================================================

func TestTrack(t *testing.T) {
	const submitted = "https://www.amazon.com/Some-Headphones/dp/B0ABCDEFGH/ref=sr_1_1?keywords=x"

	svc, store, scraper := newTestService()
	store.On("GetUser", mock.Anything, int64(5)).Return(&model.User{ID: 5, MaxProducts: 3}, nil)
	store.On("CountProducts", mock.Anything, int64(5)).Return(1, nil)
	scraper.On("Scrape", mock.Anything, retailer.Amazon, submitted).Return(&model.ProductInfo{
		RetailerID: "amazon",
		Title:      "Headphones",
		Price:      decimal.RequireFromString("199.99"),
		Currency:   "$",
		ImageURL:   "https://m.media-amazon.com/x.jpg",
	}, nil)

	var stored *model.Product
	store.On("AddProduct", mock.Anything, mock.AnythingOfType("*model.Product")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*model.Product) }).
		Return(nil)

	target := decimal.RequireFromString("150")
	p, err := svc.Track(context.Background(), 5, submitted, &target)
	require.NoError(t, err)

	assert.Equal(t, int64(77), p.ID)
	assert.Same(t, stored, p)
	assert.Equal(t, submitted, p.SourceURL)
	assert.Equal(t, "https://www.amazon.com/dp/B0ABCDEFGH", p.URL)
	assert.Equal(t, "https://www.amazon.com/dp/B0ABCDEFGH?tag=webcodelab-20", p.AffiliateURL)
	assert.Equal(t, "amazon", p.RetailerID)
	assert.Equal(t, "Headphones", p.Title)
	assert.Equal(t, "199.99", p.CurrentPrice.String())
	assert.True(t, p.HasTarget())
	assert.Equal(t, "150", p.TargetPrice.Decimal.String())
	assert.Equal(t, "https://m.media-amazon.com/x.jpg", p.ImageURL)
}

func TestTrack_SchemelessURL(t *testing.T) {
	svc, store, scraper := newTestService()
	store.On("GetUser", mock.Anything, int64(5)).Return(&model.User{ID: 5, MaxProducts: 3}, nil)
	store.On("CountProducts", mock.Anything, int64(5)).Return(0, nil)
	scraper.On("Scrape", mock.Anything, retailer.Konga, "https://www.konga.com/product/fan?src=ad").
		Return(&model.ProductInfo{Title: "Fan", Price: decimal.NewFromInt(9000), Currency: "₦"}, nil)
	store.On("AddProduct", mock.Anything, mock.Anything).Return(nil)

	p, err := svc.Track(context.Background(), 5, "www.konga.com/product/fan?src=ad", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://www.konga.com/product/fan", p.URL)
	assert.Equal(t, "https://www.konga.com/product/fan?utm_source=dealwatch", p.AffiliateURL)
	assert.False(t, p.HasTarget())
}

func TestTrack_Rejections(t *testing.T) {
	zero := decimal.Zero

	tests := []struct {
		name    string
		url     string
		target  *decimal.Decimal
		wantErr error
	}{
		{name: "empty url", url: "  ", wantErr: apperror.ErrValidation},
		{name: "ftp url", url: "ftp://www.amazon.com/dp/B0ABCDEFGH", wantErr: apperror.ErrValidation},
		{name: "unsupported site", url: "https://www.ebay.com/itm/1", wantErr: apperror.ErrUnsupported},
		{name: "lookalike host", url: "https://notamazon.com/dp/B0ABCDEFGH", wantErr: apperror.ErrUnsupported},
		{name: "zero target", url: "https://www.amazon.com/dp/B0ABCDEFGH", target: &zero, wantErr: apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, scraper := newTestService()

			_, err := svc.Track(context.Background(), 5, tt.url, tt.target)
			assert.ErrorIs(t, err, tt.wantErr)
			store.AssertNotCalled(t, "AddProduct", mock.Anything, mock.Anything)
			scraper.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestTrack_QuotaCheckedBeforeScraping(t *testing.T) {
	svc, store, scraper := newTestService()
	store.On("GetUser", mock.Anything, int64(5)).Return(&model.User{ID: 5, MaxProducts: 3}, nil)
	store.On("CountProducts", mock.Anything, int64(5)).Return(3, nil)

	_, err := svc.Track(context.Background(), 5, "https://www.jumia.com.ng/x.html", nil)
	assert.ErrorIs(t, err, apperror.ErrQuotaExceeded)
	scraper.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrack_UnknownUser(t *testing.T) {
	svc, store, _ := newTestService()
	store.On("GetUser", mock.Anything, int64(5)).Return(nil, apperror.NotFound("user", "5"))

	_, err := svc.Track(context.Background(), 5, "https://www.jumia.com.ng/x.html", nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestTrack_ScrapeErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "fetch", err: &extractor.FetchError{URL: "u", StatusCode: 503, Err: errors.New("unavailable")}, check: extractor.IsFetch},
		{name: "parse", err: &extractor.ExtractionError{Retailer: "jumia", Kind: extractor.MissingTitle}, check: extractor.IsParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, scraper := newTestService()
			store.On("GetUser", mock.Anything, int64(5)).Return(&model.User{ID: 5, MaxProducts: 3}, nil)
			store.On("CountProducts", mock.Anything, int64(5)).Return(0, nil)
			scraper.On("Scrape", mock.Anything, retailer.Jumia, mock.Anything).Return(nil, tt.err)

			_, err := svc.Track(context.Background(), 5, "https://www.jumia.com.ng/x.html", nil)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			store.AssertNotCalled(t, "AddProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestTrack_StoreQuotaRace(t *testing.T) {
	svc, store, scraper := newTestService()
	store.On("GetUser", mock.Anything, int64(5)).Return(&model.User{ID: 5, MaxProducts: 3}, nil)
	store.On("CountProducts", mock.Anything, int64(5)).Return(2, nil)
	scraper.On("Scrape", mock.Anything, retailer.Jumia, mock.Anything).
		Return(&model.ProductInfo{Title: "x", Price: decimal.NewFromInt(1), Currency: "₦"}, nil)
	// another request took the last slot between the pre-check and the insert
	store.On("AddProduct", mock.Anything, mock.Anything).Return(apperror.QuotaExceeded(3))

	_, err := svc.Track(context.Background(), 5, "https://www.jumia.com.ng/x.html", nil)
	assert.ErrorIs(t, err, apperror.ErrQuotaExceeded)
}

// =========================================================================
// QUERY TESTS
// =========================================================================

func TestPreview(t *testing.T) {
	svc, store, scraper := newTestService()
	store.On("GetUser", mock.Anything, int64(5)).Return(&model.User{ID: 5}, nil)
	want := &model.ProductInfo{Title: "Cable", Price: decimal.NewFromInt(3)}
	scraper.On("Scrape", mock.Anything, retailer.AliExpress, "https://www.aliexpress.com/item/1.html").Return(want, nil)

	got, err := svc.Preview(context.Background(), 5, "https://www.aliexpress.com/item/1.html")
	require.NoError(t, err)
	assert.Same(t, want, got)
	store.AssertNotCalled(t, "AddProduct", mock.Anything, mock.Anything)
}

func TestRemove(t *testing.T) {
	svc, store, _ := newTestService()
	store.On("RemoveProduct", mock.Anything, int64(10), int64(5)).Return(true, nil)
	store.On("RemoveProduct", mock.Anything, int64(10), int64(6)).Return(false, nil)

	ok, err := svc.Remove(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Remove(context.Background(), 6, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLimits(t *testing.T) {
	tests := []struct {
		name          string
		max, used     int
		wantRemaining int
	}{
		{name: "room left", max: 4, used: 1, wantRemaining: 3},
		{name: "full", max: 3, used: 3, wantRemaining: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService()
			store.On("GetUser", mock.Anything, int64(5)).Return(&model.User{ID: 5, MaxProducts: tt.max, Premium: true}, nil)
			store.On("CountProducts", mock.Anything, int64(5)).Return(tt.used, nil)

			l, err := svc.Limits(context.Background(), 5)
			require.NoError(t, err)
			assert.Equal(t, model.Limits{Used: tt.used, Max: tt.max, Remaining: tt.wantRemaining, Premium: true}, *l)
		})
	}
}

func TestHistoryAndReferralsDelegate(t *testing.T) {
	svc, store, _ := newTestService()
	store.On("PriceHistory", mock.Anything, int64(10), int64(5)).Return([]model.PricePoint{{ID: 1}}, nil)
	store.On("ReferralStats", mock.Anything, int64(5)).Return(&model.ReferralStats{ReferralCount: 2}, nil)
	store.On("ListProducts", mock.Anything, int64(5)).Return([]model.Product{{ID: 10}}, nil)

	h, err := svc.History(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Len(t, h, 1)

	st, err := svc.Referrals(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ReferralCount)

	ps, err := svc.Products(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}
