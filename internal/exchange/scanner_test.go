package exchange

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeMarkets struct {
	tickers   []Ticker
	contracts []Contract
	err       error
}

func (f *fakeMarkets) Tickers(context.Context) ([]Ticker, error) { return f.tickers, f.err }
func (f *fakeMarkets) ListedContracts(context.Context) ([]Contract, error) {
	return f.contracts, nil
}

func TestScanMarkets(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-30 * 24 * time.Hour).UnixMilli()
	young := now.Add(-5 * 24 * time.Hour).UnixMilli()

	md := &fakeMarkets{
		tickers: []Ticker{
			{Symbol: "AAA_USDT", LastPrice: 1, VolumeUSD: 600_000},
			{Symbol: "BBB_USDT", LastPrice: 2, VolumeUSD: 900_000},
			{Symbol: "CCC_USDT", LastPrice: 3, VolumeUSD: 800_000},
			{Symbol: "LOW_USDT", LastPrice: 4, VolumeUSD: 100_000},
			{Symbol: "HIGH_USDT", LastPrice: 5, VolumeUSD: 5_000_000},
			{Symbol: "NEW_USDT", LastPrice: 6, VolumeUSD: 700_000},
			{Symbol: "NOTIME_USDT", LastPrice: 7, VolumeUSD: 700_000},
		},
		contracts: []Contract{
			{Symbol: "AAA_USDT", CreatedAt: old},
			{Symbol: "BBB_USDT", CreatedAt: old},
			{Symbol: "CCC_USDT", CreatedAt: old},
			{Symbol: "LOW_USDT", CreatedAt: old},
			{Symbol: "HIGH_USDT", CreatedAt: old},
			{Symbol: "NEW_USDT", CreatedAt: young},
			{Symbol: "NOTIME_USDT"},
			{Symbol: "DELISTED_USDT", CreatedAt: old},
		},
	}

	s := NewScanner(md, ScannerConfig{
		MinVolumeUSD:  500_000,
		MaxVolumeUSD:  1_000_000,
		MinListingAge: 21 * 24 * time.Hour,
	})
	s.now = func() time.Time { return now }

	got, err := s.ScanMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"BBB_USDT", "CCC_USDT", "AAA_USDT"}
	if len(got) != len(want) {
		t.Fatalf("universe = %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i].Symbol != w {
			t.Errorf("universe[%d] = %s, want %s", i, got[i].Symbol, w)
		}
	}
	if got[0].ListedAt != old || got[0].LastPrice != 2 {
		t.Errorf("market info = %+v", got[0])
	}

	s.cfg.TopN = 2
	got, _ = s.ScanMarkets(context.Background())
	if len(got) != 2 {
		t.Errorf("topN: len = %d, want 2", len(got))
	}
}

func TestScanMarketsTickerError(t *testing.T) {
	s := NewScanner(&fakeMarkets{err: errors.New("boom")}, ScannerConfig{})
	if _, err := s.ScanMarkets(context.Background()); err == nil {
		t.Fatal("ticker failure must fail the scan")
	}
}

func TestContractCacheTTL(t *testing.T) {
	now := time.Unix(1_000, 0)
	loads := 0
	fail := false
	c := NewContractCache(time.Minute, func() time.Time { return now }, func(context.Context) ([]Contract, error) {
		loads++
		if fail {
			return nil, errors.New("down")
		}
		return []Contract{{Symbol: "BTC_USDT", VolUnit: 1}}, nil
	})
	ctx := context.Background()

	if _, err := c.All(ctx); err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Second)
	if _, err := c.All(ctx); err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Fatalf("loads = %d within ttl, want 1", loads)
	}

	now = now.Add(31 * time.Second)
	ct, ok, err := c.Get(ctx, "BTC_USDT")
	if err != nil || !ok || ct.VolUnit != 1 {
		t.Fatalf("Get = %+v %v %v", ct, ok, err)
	}
	if loads != 2 {
		t.Fatalf("loads = %d after expiry, want 2", loads)
	}

	// протухший кэш и недоступная биржа — отдаём старое
	now = now.Add(2 * time.Minute)
	fail = true
	items, err := c.All(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("stale fallback = %v %v", items, err)
	}

	c.Invalidate()
	if _, err := c.All(ctx); err == nil {
		t.Fatal("no cached data and failing source must error")
	}
}
