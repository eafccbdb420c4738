package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// SaveOrder inserts a new order row. Order ids are unique: inserting an
// existing id is an error, never a silent overwrite.
func (s *SQLiteStorage) SaveOrder(ctx context.Context, o domain.Order) error {
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, market_id, side, price, size, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.MarketID, string(o.Side), o.Price, o.Size, string(o.Status),
		created.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOrder: %w", err)
	}
	return nil
}

// GetOrder returns one order by id. A missing row is reported as
// ports.ErrNotFound so callers can tell it apart from a storage
// failure.
func (s *SQLiteStorage) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, market_id, side, price, size, status, created_at
		FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("storage.GetOrder: %q: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("storage.GetOrder: %q: %w", id, err)
	}
	return o, nil
}

// UpdateOrderStatus moves an order to a new status. FILLED and CANCELED
// are terminal: updates only apply while the order is OPEN.
func (s *SQLiteStorage) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ? WHERE id = ? AND status = 'OPEN'`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("storage.UpdateOrderStatus: %w", err)
	}
	return nil
}

// GetOpenOrders returns all OPEN orders for a market, both sides.
func (s *SQLiteStorage) GetOpenOrders(ctx context.Context, marketID string) ([]domain.Order, error) {
	return s.queryOrders(ctx, `
		SELECT id, market_id, side, price, size, status, created_at
		FROM orders WHERE market_id = ? AND status = 'OPEN'
		ORDER BY created_at ASC, id ASC`, marketID)
}

// GetAllOpenOrders returns every OPEN order across markets.
func (s *SQLiteStorage) GetAllOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return s.queryOrders(ctx, `
		SELECT id, market_id, side, price, size, status, created_at
		FROM orders WHERE status = 'OPEN'
		ORDER BY created_at ASC, id ASC`)
}

// SaveFill appends a fill row.
func (s *SQLiteStorage) SaveFill(ctx context.Context, f domain.Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fills (id, order_id, market_id, side, price, size, fee, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrderID, f.MarketID, string(f.Side), f.Price, f.Size, f.Fee,
		f.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveFill: %w", err)
	}
	return nil
}

// ListFills returns a market's fills, newest first.
func (s *SQLiteStorage) ListFills(ctx context.Context, marketID string) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, market_id, side, price, size, fee, timestamp
		FROM fills WHERE market_id = ?
		ORDER BY timestamp DESC, id DESC`, marketID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListFills: %w", err)
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side, ts string
		if err := rows.Scan(&f.ID, &f.OrderID, &f.MarketID, &side, &f.Price, &f.Size, &f.Fee, &ts); err != nil {
			return nil, fmt.Errorf("storage.ListFills: scan: %w", err)
		}
		f.Side = domain.Side(side)
		f.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryOrders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.queryOrders: scan: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(r rowScanner) (domain.Order, error) {
	var o domain.Order
	var side, status, created string
	if err := r.Scan(&o.ID, &o.MarketID, &side, &o.Price, &o.Size, &status, &created); err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return o, nil
}
