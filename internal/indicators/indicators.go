package indicators

import "math"

// EMA — ряд экспоненциальной средней, посев SMA первых n значений.
// Первый элемент результата соответствует values[n-1].
func EMA(values []float64, n int) []float64 {
	if n <= 0 || len(values) < n {
		return nil
	}
	out := make([]float64, 0, len(values)-n+1)

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += values[i]
	}
	prev := sum / float64(n)
	out = append(out, prev)

	k := 2.0 / float64(n+1)
	for i := n; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out = append(out, prev)
	}
	return out
}

// LastEMA — последнее значение EMA или NaN, если данных мало.
func LastEMA(values []float64, n int) float64 {
	s := EMA(values, n)
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

// RSI по Уайлдеру, последнее значение. Нужно минимум period+1 значений.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return math.NaN()
	}

	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD возвращает последние значения линии, сигнальной линии и гистограммы.
// Обе линии считаются через EMA. ok=false, если данных меньше slow+signal-1.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist float64, ok bool) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal-1 {
		return 0, 0, 0, false
	}
	fastS := EMA(closes, fast)
	slowS := EMA(closes, slow)

	// выравниваем по хвосту: slowS[i] соответствует closes[slow-1+i]
	offset := slow - fast
	macd := make([]float64, len(slowS))
	for i := range slowS {
		macd[i] = fastS[i+offset] - slowS[i]
	}

	sigS := EMA(macd, signal)
	if len(sigS) == 0 {
		return 0, 0, 0, false
	}
	line = macd[len(macd)-1]
	sig = sigS[len(sigS)-1]
	return line, sig, line - sig, true
}

// AvgVolume — среднее последних n объёмов (или всех, если их меньше).
func AvgVolume(volumes []float64, n int) float64 {
	cnt := max(0, min(n, len(volumes)))
	sum := 0.0
	for _, v := range volumes[len(volumes)-cnt:] {
		sum += v
	}
	return sum / float64(max(1, cnt))
}

// VolumeFactor — последний объём к среднему; 0 при нулевом среднем.
func VolumeFactor(last, avg float64) float64 {
	if avg <= 0 {
		return 0
	}
	return last / avg
}
