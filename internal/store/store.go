// Package store persists parsed statements in a local SQLite database.
// Every import runs under a session so re-imports and partial loads stay
// traceable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS import_sessions (
	id          TEXT PRIMARY KEY,
	source_file TEXT NOT NULL,
	parser      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	trade_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS accounts (
	account_id    TEXT PRIMARY KEY,
	account_name  TEXT NOT NULL DEFAULT '',
	account_type  TEXT NOT NULL DEFAULT '',
	base_currency TEXT NOT NULL DEFAULT '',
	balance       REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL REFERENCES import_sessions(id),
	account_id     TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	date_time      TEXT NOT NULL,
	quantity       REAL NOT NULL,
	trade_price    REAL NOT NULL,
	commission_fee REAL NOT NULL,
	asset_category TEXT NOT NULL,
	realized_pl    REAL NOT NULL,
	mtm_pl         REAL NOT NULL,
	currency       TEXT NOT NULL DEFAULT '',
	proceeds       REAL NOT NULL DEFAULT 0,
	basis          REAL NOT NULL DEFAULT 0,
	multiplier     REAL NOT NULL DEFAULT 0,
	put_call       TEXT NOT NULL DEFAULT '',
	strike         REAL NOT NULL DEFAULT 0,
	expiry         TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id);

CREATE TABLE IF NOT EXISTS positions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL REFERENCES import_sessions(id),
	account_id    TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	asset_type    TEXT NOT NULL DEFAULT '',
	quantity      REAL NOT NULL,
	average_cost  REAL NOT NULL DEFAULT 0,
	cost_basis    REAL NOT NULL DEFAULT 0,
	market_price  REAL NOT NULL DEFAULT 0,
	market_value  REAL NOT NULL DEFAULT 0,
	unrealized_pl REAL NOT NULL DEFAULT 0,
	realized_pl   REAL NOT NULL DEFAULT 0,
	strike        REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS round_trips (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES import_sessions(id),
	symbol     TEXT NOT NULL,
	open_time  TEXT NOT NULL,
	close_time TEXT NOT NULL,
	quantity   REAL NOT NULL,
	gross_pl   REAL NOT NULL,
	fees       REAL NOT NULL,
	net_pl     REAL NOT NULL
);
`

// Store wraps the SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// modernc.org/sqlite is not safe for concurrent writers on one
	// connection pool entry; a single connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ImportSession tracks one statement import.
type ImportSession struct {
	ID         string
	SourceFile string
	Parser     string
	StartedAt  time.Time
	TradeCount int
}

// BeginImport opens a new import session and records it.
func (s *Store) BeginImport(ctx context.Context, sourceFile, parserName string) (*ImportSession, error) {
	session := &ImportSession{
		ID:         uuid.NewString(),
		SourceFile: sourceFile,
		Parser:     parserName,
		StartedAt:  time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_sessions (id, source_file, parser, started_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.SourceFile, session.Parser, session.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create import session: %w", err)
	}

	return session, nil
}

// FinishImport stamps the session with its end time and final trade count.
func (s *Store) FinishImport(ctx context.Context, session *ImportSession) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_sessions SET finished_at = ?, trade_count = ? WHERE id = ?`,
		time.Now(), session.TradeCount, session.ID)
	if err != nil {
		return fmt.Errorf("failed to finish import session %s: %w", session.ID, err)
	}
	return nil
}

// SaveResult persists a successful parse result under the given session.
// The account row is upserted; trades and positions insert within one
// transaction so a failed import leaves no partial rows.
func (s *Store) SaveResult(ctx context.Context, session *ImportSession, result *domain.ParseResult) error {
	if result == nil || !result.Success {
		return fmt.Errorf("cannot persist a failed parse result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	acc := result.Account
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, account_name, account_type, base_currency, balance)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			account_name = excluded.account_name,
			account_type = excluded.account_type,
			base_currency = excluded.base_currency,
			balance = excluded.balance`,
		acc.AccountID, acc.AccountName, acc.AccountType, acc.BaseCurrency, acc.Balance)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", acc.AccountID, err)
	}

	for i, trade := range result.Trades {
		var expiry any
		if !trade.Expiry.IsZero() {
			expiry = trade.Expiry
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades (session_id, account_id, symbol, date_time, quantity, trade_price,
				commission_fee, asset_category, realized_pl, mtm_pl, currency, proceeds, basis,
				multiplier, put_call, strike, expiry)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, acc.AccountID, trade.Symbol, trade.DateTime, trade.Quantity,
			trade.TradePrice, trade.CommissionFee, trade.AssetCategory, trade.RealizedPL,
			trade.MtmPL, trade.Currency, trade.Proceeds, trade.Basis, trade.Multiplier,
			string(trade.PutCall), trade.Strike, expiry)
		if err != nil {
			return fmt.Errorf("failed to insert trade %d (%s): %w", i, trade.Symbol, err)
		}
	}

	for i, pos := range result.Positions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO positions (session_id, account_id, symbol, asset_type, quantity,
				average_cost, cost_basis, market_price, market_value, unrealized_pl, realized_pl, strike)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, acc.AccountID, pos.Symbol, string(pos.AssetType), pos.Quantity,
			pos.AverageCost, pos.CostBasis, pos.MarketPrice, pos.MarketValue,
			pos.UnrealizedPL, pos.RealizedPL, pos.Strike)
		if err != nil {
			return fmt.Errorf("failed to insert position %d (%s): %w", i, pos.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	session.TradeCount += len(result.Trades)
	return nil
}

// SaveRoundTrips persists matched round trips for a session.
func (s *Store) SaveRoundTrips(ctx context.Context, session *ImportSession, trips []domain.RoundTrip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rt := range trips {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO round_trips (session_id, symbol, open_time, close_time, quantity, gross_pl, fees, net_pl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, rt.Symbol, rt.Open.DateTime, rt.Close.DateTime,
			rt.Open.Quantity, rt.GrossPL, rt.Fees, rt.NetPL)
		if err != nil {
			return fmt.Errorf("failed to insert round trip %d (%s): %w", i, rt.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit round trips: %w", err)
	}
	return nil
}

// TradesBySymbol returns all stored trades for one symbol across sessions,
// in insertion order.
func (s *Store) TradesBySymbol(ctx context.Context, symbol string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, date_time, quantity, trade_price, commission_fee, asset_category,
			realized_pl, mtm_pl, currency, proceeds, basis, multiplier, put_call, strike
		FROM trades WHERE symbol = ? ORDER BY id`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var putCall string
		if err := rows.Scan(&t.Symbol, &t.DateTime, &t.Quantity, &t.TradePrice,
			&t.CommissionFee, &t.AssetCategory, &t.RealizedPL, &t.MtmPL, &t.Currency,
			&t.Proceeds, &t.Basis, &t.Multiplier, &putCall, &t.Strike); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		t.PutCall = domain.PutCall(putCall)
		t.TradePL = t.RealizedPL
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Accounts returns all stored accounts.
func (s *Store) Accounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, account_name, account_type, base_currency, balance FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.AccountID, &a.AccountName, &a.AccountType, &a.BaseCurrency, &a.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// TradeCount returns the total number of stored trades.
func (s *Store) TradeCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}
