package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// GetBotState loads the JSON value stored under key into out. The
// boolean reports whether the key existed.
func (s *SQLiteStorage) GetBotState(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM bot_state WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.GetBotState: %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("storage.GetBotState: decode %q: %w", key, err)
	}
	return true, nil
}

// SetBotState upserts the JSON encoding of value under key.
func (s *SQLiteStorage) SetBotState(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage.SetBotState: encode %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bot_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("storage.SetBotState: %q: %w", key, err)
	}
	return nil
}

// UpsertConfig writes one configuration key.
func (s *SQLiteStorage) UpsertConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("storage.UpsertConfig: %q: %w", key, err)
	}
	return nil
}

// GetAllConfig returns the full configuration table.
func (s *SQLiteStorage) GetAllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetAllConfig: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("storage.GetAllConfig: scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SaveDailySnapshot upserts one day's PnL row.
func (s *SQLiteStorage) SaveDailySnapshot(ctx context.Context, snap domain.DailySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_snapshots (date, realized_pnl, trade_count, cumulative_pnl)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			realized_pnl   = excluded.realized_pnl,
			trade_count    = excluded.trade_count,
			cumulative_pnl = excluded.cumulative_pnl`,
		snap.Date, snap.RealizedPnL, snap.TradeCount, snap.CumulativePnL)
	if err != nil {
		return fmt.Errorf("storage.SaveDailySnapshot: %w", err)
	}
	return nil
}

// GetDailySnapshots returns snapshots in chronological order.
func (s *SQLiteStorage) GetDailySnapshots(ctx context.Context) ([]domain.DailySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, realized_pnl, trade_count, cumulative_pnl
		FROM daily_snapshots ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailySnapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySnapshot
	for rows.Next() {
		var d domain.DailySnapshot
		if err := rows.Scan(&d.Date, &d.RealizedPnL, &d.TradeCount, &d.CumulativePnL); err != nil {
			return nil, fmt.Errorf("storage.GetDailySnapshots: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// EmergencyStop disables every market and marks every OPEN order
// CANCELED in one transaction. The orders that were open are returned
// so the engine can best-effort cancel them on the exchange; the
// database is authoritative regardless of how those cancels go.
func (s *SQLiteStorage) EmergencyStop(ctx context.Context) ([]domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("storage.EmergencyStop: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, market_id, side, price, size, status, created_at
		FROM orders WHERE status = 'OPEN'`)
	if err != nil {
		return nil, fmt.Errorf("storage.EmergencyStop: query open orders: %w", err)
	}
	var open []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.EmergencyStop: scan: %w", err)
		}
		open = append(open, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("storage.EmergencyStop: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET enabled = 0, last_updated = ? WHERE enabled = 1`, now()); err != nil {
		return nil, fmt.Errorf("storage.EmergencyStop: disable markets: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = 'CANCELED' WHERE status = 'OPEN'`); err != nil {
		return nil, fmt.Errorf("storage.EmergencyStop: cancel orders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("storage.EmergencyStop: commit: %w", err)
	}
	return open, nil
}
