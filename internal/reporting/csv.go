package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders the report's trades as a CSV string, one row per
// closed trade in close order.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,connector,symbol,side,entry_price,exit_price,qty,realized_pnl,r_multiple,reason,opened_at,closed_at\n")

	// Rows
	for _, t := range r.Trades {
		rMult, _ := t.RMultiple()
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.8f,%.8f,%.8f,%.6f,%.4f,%s,%s,%s\n",
			t.TradeID,
			t.Connector,
			t.Symbol,
			t.Side,
			t.EntryPrice,
			t.ExitPrice,
			t.Qty,
			t.RealizedPnL,
			rMult,
			t.Reason,
			t.OpenedAt.Format(time.RFC3339),
			t.ClosedAt.Format(time.RFC3339),
		))
	}

	return sb.String()
}
