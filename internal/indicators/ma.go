package indicators

import "math"

// SMA over the last `p` points; returns a slice aligned to input length with NaNs for warmup.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		if i >= p {
			sum -= x[i-p]
		}
		out[i] = sum / float64(p)
	}
	return out
}

// EWM is the adjusted exponentially weighted mean with alpha 2/(span+1): each
// output is the weighted average of every point so far, weight (1-alpha)^age.
// It is defined from the first point.
func EWM(x []float64, span int) []float64 {
	if span <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	decay := 1 - 2.0/float64(span+1)
	var num, den float64
	for i, v := range x {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// RollingStd is the sample (n-1) standard deviation over window p; NaNs for warmup.
func RollingStd(x []float64, p int) []float64 {
	if p <= 1 {
		return nil
	}
	out := make([]float64, len(x))
	for i := range x {
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		w := x[i-p+1 : i+1]
		var mean float64
		for _, v := range w {
			mean += v
		}
		mean /= float64(p)
		var ss float64
		for _, v := range w {
			ss += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(ss / float64(p-1))
	}
	return out
}

// RSI from rolling means of gains and losses over p changes. The first point
// counts as an unchanged move. Flat windows (no gains, no losses) are NaN.
func RSI(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	gains := make([]float64, len(x))
	losses := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		if delta := x[i] - x[i-1]; delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	avgGain := SMA(gains, p)
	avgLoss := SMA(losses, p)

	out := make([]float64, len(x))
	for i := range x {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0 && g == 0:
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}
