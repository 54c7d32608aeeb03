package engine

import "time"

// benchmarkTracker values an equal-weight, constant-mix basket of the
// configured symbols in lock-step with the run.
type benchmarkTracker struct {
	initial   float64
	symbols   []string
	values    []float64
	tracking  bool
	refTime   time.Time
	refPrices map[string]float64
}

func newBenchmarkTracker(initial float64, symbols []string) *benchmarkTracker {
	return &benchmarkTracker{
		initial: initial,
		symbols: symbols,
	}
}

// update appends and returns the benchmark value at ts. The first call records
// the initial capital; later calls compound the average simple return of the
// symbols priced at both ts and the reference tick.
func (b *benchmarkTracker) update(ts time.Time, prices map[string]float64) float64 {
	if !b.tracking {
		b.tracking = true
		b.values = append(b.values, b.initial)
		b.setReference(ts, prices)
		return b.initial
	}

	value := b.current()
	var (
		sum   float64
		count int
	)
	for _, sym := range b.symbols {
		cur, ok := prices[sym]
		if !ok {
			continue
		}
		prev, ok := b.refPrices[sym]
		if !ok || prev <= 0 {
			continue
		}
		sum += (cur - prev) / prev
		count++
	}
	if count > 0 {
		value *= 1 + sum/float64(count)
	}

	b.values = append(b.values, value)
	b.setReference(ts, prices)
	return value
}

func (b *benchmarkTracker) setReference(ts time.Time, prices map[string]float64) {
	b.refTime = ts
	b.refPrices = make(map[string]float64, len(prices))
	for sym, px := range prices {
		b.refPrices[sym] = px
	}
}

func (b *benchmarkTracker) current() float64 {
	if len(b.values) == 0 {
		return b.initial
	}
	return b.values[len(b.values)-1]
}

func (b *benchmarkTracker) valuesCopy() []float64 {
	out := make([]float64, len(b.values))
	copy(out, b.values)
	return out
}
