package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Trading Performance Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if r.TotalTrades == 0 {
		sb.WriteString("No closed trades in the reporting window.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Period: %s to %s\n\n",
		r.PeriodStart.Format(time.RFC3339), r.PeriodEnd.Format(time.RFC3339)))

	// Totals
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", r.Wins, r.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.1f%% |\n", r.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Average R | %.2f |\n", r.AvgR))
	sb.WriteString(fmt.Sprintf("| Total PnL | %.2f |\n", r.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Equity | %.2f to %.2f (%+.1f%%) |\n",
		r.EquityStart, r.EquityEnd, r.EquityChange*100))
	sb.WriteString("\n")

	// Per-symbol breakdown
	sb.WriteString("## By Symbol\n\n")
	writeBreakdownTable(&sb, "Symbol", r.SymbolRows)

	// Per-exit-reason breakdown
	sb.WriteString("## By Exit Reason\n\n")
	writeBreakdownTable(&sb, "Reason", r.ReasonRows)

	return sb.String()
}

func writeBreakdownTable(sb *strings.Builder, label string, rows []BreakdownRow) {
	sb.WriteString(fmt.Sprintf("| %s | Trades | Win Rate | Avg R | Total PnL |\n", label))
	sb.WriteString("|-------|--------|----------|-------|-----------|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %.2f | %.2f |\n",
			row.Label, row.Trades, row.WinRate*100, row.AvgR, row.TotalPnL))
	}
	sb.WriteString("\n")
}
