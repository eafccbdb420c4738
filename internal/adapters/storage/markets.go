package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// UpsertMarket inserts or refreshes a market row. The enabled flag is
// preserved on conflict so a product re-sync never pauses trading.
func (s *SQLiteStorage) UpsertMarket(ctx context.Context, m domain.Market) error {
	var settings *string
	if m.Settings != nil {
		b, err := json.Marshal(m.Settings)
		if err != nil {
			return fmt.Errorf("storage.UpsertMarket: marshal settings: %w", err)
		}
		str := string(b)
		settings = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markets (id, enabled, is_favorite, market_rank, volume_24h, settings, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			market_rank  = excluded.market_rank,
			volume_24h   = excluded.volume_24h,
			last_updated = excluded.last_updated`,
		m.ID, boolInt(m.Enabled), boolInt(m.IsFavorite), m.MarketRank,
		m.Volume24h, settings, now(),
	)
	if err != nil {
		return fmt.Errorf("storage.UpsertMarket: %w", err)
	}
	return nil
}

// GetMarket returns one market by id.
func (s *SQLiteStorage) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, enabled, is_favorite, market_rank, volume_24h, settings, last_updated
		FROM markets WHERE id = ?`, id)

	m, err := scanMarket(row)
	if err == sql.ErrNoRows {
		return domain.Market{}, fmt.Errorf("storage.GetMarket: %q: %w", id, err)
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("storage.GetMarket: %w", err)
	}
	return m, nil
}

// ListMarkets returns all markets ordered by rank then id.
func (s *SQLiteStorage) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	return s.queryMarkets(ctx, `
		SELECT id, enabled, is_favorite, market_rank, volume_24h, settings, last_updated
		FROM markets ORDER BY market_rank ASC, id ASC`)
}

// ListEnabledMarkets returns the markets the engine should tick.
func (s *SQLiteStorage) ListEnabledMarkets(ctx context.Context) ([]domain.Market, error) {
	return s.queryMarkets(ctx, `
		SELECT id, enabled, is_favorite, market_rank, volume_24h, settings, last_updated
		FROM markets WHERE enabled = 1 ORDER BY market_rank ASC, id ASC`)
}

// SetMarketEnabled flips one market's enabled flag.
func (s *SQLiteStorage) SetMarketEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE markets SET enabled = ?, last_updated = ? WHERE id = ?`,
		boolInt(enabled), now(), id)
	if err != nil {
		return fmt.Errorf("storage.SetMarketEnabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.SetMarketEnabled: unknown market %q", id)
	}
	return nil
}

func (s *SQLiteStorage) queryMarkets(ctx context.Context, query string, args ...any) ([]domain.Market, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryMarkets: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.queryMarkets: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarket(r rowScanner) (domain.Market, error) {
	var m domain.Market
	var enabled, favorite int
	var settings sql.NullString
	var updated string

	if err := r.Scan(&m.ID, &enabled, &favorite, &m.MarketRank, &m.Volume24h, &settings, &updated); err != nil {
		return domain.Market{}, err
	}

	m.Enabled = enabled == 1
	m.IsFavorite = favorite == 1
	m.LastUpdated, _ = time.Parse(time.RFC3339, updated)
	if settings.Valid && settings.String != "" {
		_ = json.Unmarshal([]byte(settings.String), &m.Settings)
	}
	return m, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
