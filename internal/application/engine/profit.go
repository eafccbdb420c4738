package engine

import (
	"context"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// loadTracker returns the persisted monthly profit tracker, seeded for
// the current month on first use.
func (e *Engine) loadTracker(ctx context.Context) (domain.ProfitTracker, error) {
	var t domain.ProfitTracker
	ok, err := e.store.GetBotState(ctx, domain.StateKeyProfitTracker, &t)
	if err != nil {
		return t, err
	}
	if !ok {
		t = domain.ProfitTracker{LastProfitResetMonth: int(e.now().UTC().Month())}
		if err := e.store.SetBotState(ctx, domain.StateKeyProfitTracker, t); err != nil {
			return t, err
		}
	}
	return t, nil
}

// checkMonthlyReset zeroes the profit counter when the calendar month
// rolls over.
func (e *Engine) checkMonthlyReset(ctx context.Context) error {
	t, err := e.loadTracker(ctx)
	if err != nil {
		return err
	}

	month := int(e.now().UTC().Month())
	if t.LastProfitResetMonth == month {
		return nil
	}

	e.log.Info("monthly profit reset",
		"previous_month", t.LastProfitResetMonth,
		"closed_with", t.CurrentMonthProfitUSD)

	t = domain.ProfitTracker{CurrentMonthProfitUSD: 0, LastProfitResetMonth: month}
	if err := e.store.SetBotState(ctx, domain.StateKeyProfitTracker, t); err != nil {
		return err
	}
	e.publish(ports.Event{Type: "MONTHLY_RESET", Data: map[string]any{"month": month}})
	return nil
}

// addProfit adds a realized amount to the month's counter and refreshes
// today's snapshot row.
func (e *Engine) addProfit(ctx context.Context, amount float64) error {
	t, err := e.loadTracker(ctx)
	if err != nil {
		return err
	}
	t.CurrentMonthProfitUSD += amount
	if err := e.store.SetBotState(ctx, domain.StateKeyProfitTracker, t); err != nil {
		return err
	}
	return e.updateDailySnapshot(ctx, amount)
}

func (e *Engine) updateDailySnapshot(ctx context.Context, amount float64) error {
	snaps, err := e.store.GetDailySnapshots(ctx)
	if err != nil {
		return err
	}

	today := e.now().UTC().Format("2006-01-02")
	snap := domain.DailySnapshot{Date: today}
	var cumulative float64
	for _, s := range snaps {
		if s.Date == today {
			snap = s
		} else {
			cumulative = s.CumulativePnL
		}
	}

	snap.RealizedPnL += amount
	snap.TradeCount++
	snap.CumulativePnL = cumulative + snap.RealizedPnL
	return e.store.SaveDailySnapshot(ctx, snap)
}
