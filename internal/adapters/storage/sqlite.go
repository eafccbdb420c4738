package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
    id           TEXT PRIMARY KEY,
    enabled      INTEGER NOT NULL DEFAULT 0,
    is_favorite  INTEGER NOT NULL DEFAULT 0,
    market_rank  INTEGER NOT NULL DEFAULT 999999,
    volume_24h   REAL    NOT NULL DEFAULT 0,
    settings     TEXT,
    last_updated DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id         TEXT PRIMARY KEY,
    market_id  TEXT NOT NULL REFERENCES markets(id),
    side       TEXT NOT NULL,
    price      REAL NOT NULL,
    size       REAL NOT NULL,
    status     TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
    id        TEXT PRIMARY KEY,
    order_id  TEXT NOT NULL REFERENCES orders(id),
    market_id TEXT NOT NULL,
    side      TEXT NOT NULL,
    price     REAL NOT NULL,
    size      REAL NOT NULL,
    fee       REAL NOT NULL DEFAULT 0,
    timestamp DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lots (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id     TEXT NOT NULL,
    buy_order_id  TEXT NOT NULL,
    buy_price     REAL NOT NULL,
    buy_size      REAL NOT NULL,
    buy_cost      REAL NOT NULL,
    buy_time      DATETIME NOT NULL,
    sell_order_id TEXT,
    sell_price    REAL,
    status        TEXT NOT NULL DEFAULT 'OPEN',
    realized_pnl  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bot_state (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_snapshots (
    date           TEXT PRIMARY KEY,
    realized_pnl   REAL    NOT NULL DEFAULT 0,
    trade_count    INTEGER NOT NULL DEFAULT 0,
    cumulative_pnl REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_orders_market_status ON orders(market_id, status);
CREATE INDEX IF NOT EXISTS idx_fills_order          ON fills(order_id);
CREATE INDEX IF NOT EXISTS idx_lots_market_status   ON lots(market_id, status);
CREATE INDEX IF NOT EXISTS idx_lots_sell_order      ON lots(sell_order_id);
`

// SQLiteStorage implements ports.Storage on SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given path
// and applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
