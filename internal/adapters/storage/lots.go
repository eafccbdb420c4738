package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// SaveLot inserts a lot and returns its auto-assigned id.
func (s *SQLiteStorage) SaveLot(ctx context.Context, l domain.Lot) (int64, error) {
	var sellOrderID, sellPrice any
	if l.SellOrderID != "" {
		sellOrderID = l.SellOrderID
		sellPrice = l.SellPrice
	}
	buyTime := l.BuyTime
	if buyTime.IsZero() {
		buyTime = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO lots (market_id, buy_order_id, buy_price, buy_size, buy_cost,
		                  buy_time, sell_order_id, sell_price, status, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.MarketID, l.BuyOrderID, l.BuyPrice, l.BuySize, l.BuyCost,
		buyTime.UTC().Format(time.RFC3339), sellOrderID, sellPrice,
		string(l.Status), l.RealizedPnL,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveLot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.SaveLot: last insert id: %w", err)
	}
	return id, nil
}

// SetLotSell attaches an exit sell to an OPEN lot that has none yet.
func (s *SQLiteStorage) SetLotSell(ctx context.Context, id int64, sellOrderID string, sellPrice float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lots SET sell_order_id = ?, sell_price = ?
		WHERE id = ? AND status = 'OPEN' AND sell_order_id IS NULL`,
		sellOrderID, sellPrice, id)
	if err != nil {
		return fmt.Errorf("storage.SetLotSell: %w", err)
	}
	return nil
}

// GetOpenLots returns a market's OPEN lots.
func (s *SQLiteStorage) GetOpenLots(ctx context.Context, marketID string) ([]domain.Lot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, buy_order_id, buy_price, buy_size, buy_cost,
		       buy_time, sell_order_id, sell_price, status, realized_pnl
		FROM lots WHERE market_id = ? AND status = 'OPEN'
		ORDER BY buy_time ASC, id ASC`, marketID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenLots: %w", err)
	}
	defer rows.Close()

	var out []domain.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetOpenLots: scan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLotBySellOrder finds the lot whose exit sell has the given order
// id. The second return reports whether one exists.
func (s *SQLiteStorage) GetLotBySellOrder(ctx context.Context, sellOrderID string) (domain.Lot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, market_id, buy_order_id, buy_price, buy_size, buy_cost,
		       buy_time, sell_order_id, sell_price, status, realized_pnl
		FROM lots WHERE sell_order_id = ?`, sellOrderID)

	l, err := scanLot(row)
	if err == sql.ErrNoRows {
		return domain.Lot{}, false, nil
	}
	if err != nil {
		return domain.Lot{}, false, fmt.Errorf("storage.GetLotBySellOrder: %w", err)
	}
	return l, true, nil
}

// CloseLot marks an OPEN lot CLOSED and records its realized PnL.
func (s *SQLiteStorage) CloseLot(ctx context.Context, id int64, realizedPnL float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE lots SET status = 'CLOSED', realized_pnl = ?
		WHERE id = ? AND status = 'OPEN'`, realizedPnL, id)
	if err != nil {
		return fmt.Errorf("storage.CloseLot: %w", err)
	}
	return nil
}

func scanLot(r rowScanner) (domain.Lot, error) {
	var l domain.Lot
	var buyTime, status string
	var sellOrderID sql.NullString
	var sellPrice sql.NullFloat64

	if err := r.Scan(&l.ID, &l.MarketID, &l.BuyOrderID, &l.BuyPrice, &l.BuySize,
		&l.BuyCost, &buyTime, &sellOrderID, &sellPrice, &status, &l.RealizedPnL); err != nil {
		return domain.Lot{}, err
	}

	l.Status = domain.LotStatus(status)
	l.BuyTime, _ = time.Parse(time.RFC3339, buyTime)
	if sellOrderID.Valid {
		l.SellOrderID = sellOrderID.String
	}
	if sellPrice.Valid {
		l.SellPrice = sellPrice.Float64
	}
	return l, nil
}
