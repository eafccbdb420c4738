// Package notify renders engine status for an operator terminal.
package notify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Console implements ports.StatusReporter by printing a status table
// to stdout.
type Console struct {
	out io.Writer
}

// NewConsole creates a reporter that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a reporter for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// ReportStatus prints one status snapshot.
func (c *Console) ReportStatus(s domain.EngineStatus) {
	mode := "live"
	if s.PaperMode {
		mode = "paper"
	}
	fmt.Fprintf(c.out, "\n[%s] gridbot %s — month PnL $%.2f — %d market(s)\n",
		time.Now().Format("15:04:05"), mode, s.MonthlyProfitUSD, len(s.Markets))

	if len(s.Markets) == 0 {
		fmt.Fprintln(c.out, "  no markets configured")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "On", "Price", "Anchor", "Grid top", "Orders", "Lots")

	for _, m := range s.Markets {
		on := "-"
		if m.Enabled {
			on = "x"
		}
		table.Append(
			m.ID,
			on,
			fmt.Sprintf("%.2f", m.Price),
			fmt.Sprintf("%.2f", m.Anchor),
			fmt.Sprintf("%.2f", m.GridTop),
			fmt.Sprintf("%d", m.OpenOrders),
			fmt.Sprintf("%d", m.OpenLots),
		)
	}

	table.Render()
}
