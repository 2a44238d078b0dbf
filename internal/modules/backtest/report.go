package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Kevinwu901113/stock-pre-sub001/internal/domain"
)

// GenerateReport renders the metrics and the best/worst closed trades into a
// markdown document. The report is a downstream convenience; nothing in the
// engine depends on it.
func GenerateReport(result *Result, metrics Metrics) string {
	var b strings.Builder

	b.WriteString("# Backtest Report\n\n")
	fmt.Fprintf(&b, "Period: %s to %s\n\n", result.Config.StartDate, result.Config.EndDate)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Initial capital: %.2f\n", result.Config.InitialCapital)
	fmt.Fprintf(&b, "- Final value: %.2f\n", result.Stats.FinalValue)
	fmt.Fprintf(&b, "- Total return: %.2f%%\n", metrics.TotalReturn*100)
	fmt.Fprintf(&b, "- Annualized return: %.2f%%\n", metrics.AnnualizedReturn*100)
	fmt.Fprintf(&b, "- Max drawdown: %.2f%%\n", metrics.MaxDrawdown*100)
	fmt.Fprintf(&b, "- Sharpe ratio: %.3f\n", metrics.SharpeRatio)
	fmt.Fprintf(&b, "- Sortino ratio: %.3f\n", metrics.SortinoRatio)
	fmt.Fprintf(&b, "- Calmar ratio: %.3f\n", metrics.CalmarRatio)
	fmt.Fprintf(&b, "- Win rate: %.2f%% over %d closed trades\n", metrics.WinRate*100, metrics.SellCount)
	fmt.Fprintf(&b, "- Average profit rate: %.2f%%\n", metrics.AvgProfitRate*100)

	if metrics.BenchmarkReturn != nil {
		b.WriteString("\n## Benchmark\n\n")
		fmt.Fprintf(&b, "- Benchmark return: %.2f%%\n", *metrics.BenchmarkReturn*100)
		if metrics.Alpha != nil {
			fmt.Fprintf(&b, "- Alpha: %.4f\n", *metrics.Alpha)
		}
		if metrics.Beta != nil {
			fmt.Fprintf(&b, "- Beta: %.3f\n", *metrics.Beta)
		}
		if metrics.InformationRatio != nil {
			fmt.Fprintf(&b, "- Information ratio: %.3f\n", *metrics.InformationRatio)
		}
	}

	sells := closedTrades(result.Trades)
	if len(sells) > 0 {
		sort.Slice(sells, func(i, j int) bool { return sells[i].ProfitRate > sells[j].ProfitRate })

		b.WriteString("\n## Best trades\n\n")
		writeTradeTable(&b, sells[:minInt(5, len(sells))])

		b.WriteString("\n## Worst trades\n\n")
		worst := sells[maxInt(0, len(sells)-5):]
		// Worst first.
		reversed := make([]domain.Trade, len(worst))
		for i, t := range worst {
			reversed[len(worst)-1-i] = t
		}
		writeTradeTable(&b, reversed)
	}

	return b.String()
}

func closedTrades(trades []domain.Trade) []domain.Trade {
	var sells []domain.Trade
	for _, t := range trades {
		if t.Action == domain.ActionSell {
			sells = append(sells, t)
		}
	}
	return sells
}

func writeTradeTable(b *strings.Builder, trades []domain.Trade) {
	b.WriteString("| Date | Symbol | Shares | Price | Profit | Profit rate |\n")
	b.WriteString("|------|--------|--------|-------|--------|-------------|\n")
	for _, t := range trades {
		fmt.Fprintf(b, "| %s | %s | %d | %.4f | %.2f | %.2f%% |\n",
			t.Date, t.Symbol, t.Shares, t.Price, t.Profit, t.ProfitRate*100)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
