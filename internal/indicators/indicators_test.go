package indicators

import (
	"errors"
	"math"
	"testing"

	"futures_bot/internal/models"
)

func near(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestEMASeedAndSmoothing(t *testing.T) {
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	// посев = (1+2+3)/3 = 2, k = 0.5
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !near(got[i], want[i], 1e-12) {
			t.Errorf("EMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if EMA([]float64{1, 2}, 3) != nil {
		t.Errorf("short input must give nil")
	}
	if !math.IsNaN(LastEMA([]float64{1}, 20)) {
		t.Errorf("LastEMA on short input must be NaN")
	}
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	if r := RSI(up, 14); r != 100 {
		t.Errorf("monotonic up RSI = %v, want 100", r)
	}
	if r := RSI(down, 14); !near(r, 0, 1e-9) {
		t.Errorf("monotonic down RSI = %v, want 0", r)
	}
	if r := RSI(up[:10], 14); !math.IsNaN(r) {
		t.Errorf("short input RSI = %v, want NaN", r)
	}
}

func TestRSIBalanced(t *testing.T) {
	closes := []float64{10}
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			closes = append(closes, closes[len(closes)-1]+1)
		} else {
			closes = append(closes, closes[len(closes)-1]-1)
		}
	}
	r := RSI(closes, 14)
	if r < 40 || r > 60 {
		t.Errorf("alternating series RSI = %v, want about 50", r)
	}
}

func TestMACDSign(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i*i)/10
	}
	line, sig, hist, ok := MACD(closes, 12, 26, 9)
	if !ok {
		t.Fatalf("MACD not computed")
	}
	if line <= 0 {
		t.Errorf("accelerating uptrend must give positive MACD, got %v", line)
	}
	if !near(hist, line-sig, 1e-12) {
		t.Errorf("histogram = %v, want line-signal = %v", hist, line-sig)
	}

	if _, _, _, ok := MACD(closes[:33], 12, 26, 9); ok {
		t.Errorf("33 closes must not be enough")
	}
	if _, _, _, ok := MACD(closes[:34], 12, 26, 9); !ok {
		t.Errorf("34 closes must be enough")
	}
}

func TestAvgVolumeAndFactor(t *testing.T) {
	vols := make([]float64, 25)
	for i := range vols {
		vols[i] = 10
	}
	vols[24] = 30
	avg := AvgVolume(vols, 20)
	// 19*10 + 30 = 220 / 20
	if !near(avg, 11, 1e-12) {
		t.Errorf("avg = %v, want 11", avg)
	}
	if f := VolumeFactor(30, avg); !near(f, 30.0/11, 1e-12) {
		t.Errorf("factor = %v", f)
	}

	if avg := AvgVolume([]float64{4, 6}, 20); avg != 5 {
		t.Errorf("short window avg = %v, want 5", avg)
	}
	if avg := AvgVolume(nil, 20); avg != 0 {
		t.Errorf("empty avg = %v", avg)
	}
	if f := VolumeFactor(10, 0); f != 0 {
		t.Errorf("zero avg factor = %v, want 0", f)
	}
}

func series(n int, f func(i int) float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := f(i)
		out[i] = models.Candle{OpenTime: int64(i) * 60_000, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return out
}

func TestComputeInsufficientData(t *testing.T) {
	_, err := Compute(series(MinCandles-1, func(i int) float64 { return 100 }))
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	var ide *models.InsufficientDataError
	if !errors.As(err, &ide) || ide.Need != MinCandles {
		t.Errorf("error details: %v", err)
	}
}

func TestComputeSnapshot(t *testing.T) {
	s, err := Compute(series(200, func(i int) float64 { return 100 + float64(i) }))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.Price != 299 {
		t.Errorf("price = %v", s.Price)
	}
	if s.RSI != 100 {
		t.Errorf("RSI = %v", s.RSI)
	}
	if !(s.EMA20 > s.EMA50 && s.EMA50 > s.EMA200) {
		t.Errorf("uptrend EMA stack broken: %v %v %v", s.EMA20, s.EMA50, s.EMA200)
	}
	if s.VolumeFactor != 1 {
		t.Errorf("flat volume factor = %v", s.VolumeFactor)
	}

	short, err := Compute(series(60, func(i int) float64 { return 100 }))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !math.IsNaN(short.EMA200) {
		t.Errorf("EMA200 on 60 candles must be NaN, got %v", short.EMA200)
	}
}
