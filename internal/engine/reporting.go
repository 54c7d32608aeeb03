package engine

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"cryptosim/types"
)

// Performance is a point-in-time summary of a run. Returns and drawdown are
// fractions (0.05 == 5%). Every field is finite.
type Performance struct {
	TotalReturn     float64 `json:"total_return"`
	AverageReturn   float64 `json:"daily_return"`
	Volatility      float64 `json:"volatility"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	WinRate         float64 `json:"win_rate"`
	TotalTrades     int     `json:"total_trades"`
	FinalValue      float64 `json:"final_value"`
	BenchmarkReturn float64 `json:"benchmark_return"`

	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	ExcessReturn     float64 `json:"excess_return"`
	TrackingError    float64 `json:"tracking_error"`
	InformationRatio float64 `json:"information_ratio"`

	// Running is set by the live simulator only.
	Running bool `json:"is_running,omitempty"`
}

type AnalysisInput struct {
	InitialCapital  float64
	FinalValue      float64
	PortfolioValues []float64
	BenchmarkValues []float64
	Trades          []types.Trade
	MaxDrawdown     float64
}

// Analyze derives the performance summary. It is a pure function of in.
func Analyze(in AnalysisInput) Performance {
	perf := Performance{
		TotalTrades: len(in.Trades),
		FinalValue:  finite(in.FinalValue),
		MaxDrawdown: finite(in.MaxDrawdown),
	}
	if in.InitialCapital != 0 {
		perf.TotalReturn = finite((in.FinalValue - in.InitialCapital) / in.InitialCapital)
	}

	returns := tickReturns(in.PortfolioValues)
	if len(returns) > 0 {
		perf.AverageReturn = finite(mean(returns))
		perf.Volatility = finite(stdDev(returns))
		if perf.Volatility > 0 {
			perf.SharpeRatio = finite(perf.AverageReturn / perf.Volatility)
		}
	}

	// A sell counts as a win regardless of its pnl.
	if len(in.Trades) > 0 {
		wins := 0
		for _, t := range in.Trades {
			if t.Side == types.SideSell {
				wins++
			}
		}
		perf.WinRate = float64(wins) / float64(len(in.Trades))
	}

	calcAlphaMetrics(&perf, in.PortfolioValues, in.BenchmarkValues)
	return perf
}

// calcAlphaMetrics fills the benchmark-relative fields, all of which stay zero
// without at least two paired returns. Beta is the sample covariance over the
// population variance of the benchmark returns.
func calcAlphaMetrics(perf *Performance, portfolio, benchmark []float64) {
	if len(portfolio) < 2 || len(benchmark) < 2 {
		return
	}
	p, b := pairedReturns(portfolio, benchmark)
	if len(p) < 2 {
		return
	}

	perf.BenchmarkReturn = seriesReturn(benchmark)
	meanP, meanB := mean(p), mean(b)
	if varB := variance(b); varB > 0 {
		perf.Beta = finite(sampleCovariance(p, b) / varB)
	}
	perf.Alpha = finite(meanP - perf.Beta*meanB)
	perf.ExcessReturn = finite(seriesReturn(portfolio) - seriesReturn(benchmark))

	active := make([]float64, len(p))
	for i := range p {
		active[i] = p[i] - b[i]
	}
	perf.TrackingError = finite(stdDev(active))
	if perf.TrackingError > 0 {
		perf.InformationRatio = finite(mean(active) / perf.TrackingError)
	}
}

// tickReturns returns the simple returns between consecutive values, skipping
// pairs with a zero base and non-finite results.
func tickReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		r := (values[i] - values[i-1]) / values[i-1]
		if isFinite(r) {
			out = append(out, r)
		}
	}
	return out
}

// pairedReturns aligns the two series by index and keeps the steps where both
// returns are defined.
func pairedReturns(portfolio, benchmark []float64) ([]float64, []float64) {
	n := min(len(portfolio), len(benchmark))
	p := make([]float64, 0, n)
	b := make([]float64, 0, n)
	for i := 1; i < n; i++ {
		if portfolio[i-1] == 0 || benchmark[i-1] == 0 {
			continue
		}
		pr := (portfolio[i] - portfolio[i-1]) / portfolio[i-1]
		br := (benchmark[i] - benchmark[i-1]) / benchmark[i-1]
		if !isFinite(pr) || !isFinite(br) {
			continue
		}
		p = append(p, pr)
		b = append(b, br)
	}
	return p, b
}

func seriesReturn(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	return finite((values[len(values)-1] - values[0]) / values[0])
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the population variance.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	return math.Sqrt(variance(xs))
}

// sampleCovariance uses the n-1 denominator.
func sampleCovariance(a, b []float64) float64 {
	if len(a) < 2 || len(a) != len(b) {
		return 0
	}
	ma, mb := mean(a), mean(b)
	var sum float64
	for i := range a {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	return sum / float64(len(a)-1)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func finite(x float64) float64 {
	if !isFinite(x) {
		return 0
	}
	return x
}

// PrintReport writes a human readable run summary.
func PrintReport(w io.Writer, start, end time.Time, view types.PortfolioView, perf Performance) {
	fmt.Fprintln(w, "===== Simulation Report =====")
	if !start.IsZero() {
		fmt.Fprintf(w, "Start Date:            %s\n", start.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "End Date:              %s\n", end.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "Total Period:          %d days\n", end.Sub(start)/(24*time.Hour))
	}
	fmt.Fprintf(w, "Total Trades:          %d\n", perf.TotalTrades)

	fmt.Fprintln(w, "\n-- Portfolio --")
	fmt.Fprintf(w, "Cash:                  %s\n", view.Cash.StringFixed(2))
	fmt.Fprintf(w, "Total Value:           %s\n", view.TotalValue.StringFixed(2))
	fmt.Fprintf(w, "Realized PnL:          %s\n", view.RealizedPnL.StringFixed(2))
	fmt.Fprintf(w, "Unrealized PnL:        %s\n", view.UnrealizedPnL.StringFixed(2))
	symbols := make([]string, 0, len(view.Positions))
	for sym := range view.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		pos := view.Positions[sym]
		fmt.Fprintf(w, "  %-20s %s @ %s\n", sym, pos.Quantity, pos.LastPrice.StringFixed(2))
	}

	fmt.Fprintln(w, "\n-- Returns --")
	fmt.Fprintf(w, "Total Return:          %.2f%%\n", perf.TotalReturn*100)
	fmt.Fprintf(w, "Avg Return/Tick:       %.4f%%\n", perf.AverageReturn*100)
	fmt.Fprintf(w, "Volatility:            %.4f%%\n", perf.Volatility*100)
	fmt.Fprintf(w, "Win Rate:              %.2f%%\n", perf.WinRate*100)

	fmt.Fprintln(w, "\n-- Risk --")
	fmt.Fprintf(w, "Sharpe Ratio:          %.4f\n", perf.SharpeRatio)
	fmt.Fprintf(w, "Max Drawdown %%:        %.2f%%\n", perf.MaxDrawdown*100)

	fmt.Fprintln(w, "\n-- Benchmark --")
	fmt.Fprintf(w, "Benchmark Return:      %.2f%%\n", perf.BenchmarkReturn*100)
	fmt.Fprintf(w, "Excess Return:         %.2f%%\n", perf.ExcessReturn*100)
	fmt.Fprintf(w, "Alpha:                 %.6f\n", perf.Alpha)
	fmt.Fprintf(w, "Beta:                  %.4f\n", perf.Beta)
	fmt.Fprintf(w, "Tracking Error:        %.6f\n", perf.TrackingError)
	fmt.Fprintf(w, "Information Ratio:     %.4f\n", perf.InformationRatio)

	fmt.Fprintln(w, "=============================")
}
