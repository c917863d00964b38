// Package report renders evaluation results into the HTML snapshot
// message sent to the chat.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkeller/signalgram/internal/domain"
)

const timeLayout = "2006-01-02 15:04 UTC"

// Render builds the full snapshot message. One line per instrument,
// failed instruments included so the report always covers the whole
// watchlist.
func Render(evals []domain.Evaluation, now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📈 <b>Signal Snapshot</b> — %s\n\n", now.UTC().Format(timeLayout))

	for _, e := range evals {
		sb.WriteString(Line(e))
		sb.WriteByte('\n')
	}

	sb.WriteString("\nℹ️ Not financial advice. Thresholds are configurable.")

	return sb.String()
}

// Line renders a single instrument row.
func Line(e domain.Evaluation) string {
	if e.Failed {
		return fmt.Sprintf("⚪ <b>%s</b>: %s — %s", e.Instrument.Title(), e.Signal, e.Reason)
	}

	line := fmt.Sprintf("%s <b>%s</b>: %s — $%s | RSI %s | 24h %s%%",
		e.Signal.Icon(),
		e.Instrument.Title(),
		e.Signal,
		formatPrice(e.Quote.Price),
		e.Indicators.RSI14.StringFixed(1),
		formatChange(e.LongChangePct),
	)

	if e.Reason != "" {
		line += fmt.Sprintf("\n    ↳ %s", e.Reason)
	}

	return line
}

func formatPrice(p decimal.Decimal) string {
	// sub-dollar coins need more precision than the usual two digits
	if p.Abs().LessThan(decimal.NewFromInt(1)) && !p.IsZero() {
		return p.StringFixed(4)
	}
	return p.StringFixed(2)
}

func formatChange(c decimal.Decimal) string {
	if c.GreaterThan(decimal.Zero) {
		return "+" + c.StringFixed(2)
	}
	return c.StringFixed(2)
}
