package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/id"
)

// MemoryDSN returns a private in-memory database name. The journal lives
// only as long as the process.
func MemoryDSN() string {
	return fmt.Sprintf("file:journal-%s?mode=memory&cache=shared", id.New())
}

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the journal. An empty dsn means a fresh in-memory database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = MemoryDSN()
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// one connection keeps the in-memory database alive and serialises writes
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			trade_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			stop_loss REAL NOT NULL DEFAULT 0,
			pnl REAL NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_trade ON journal(trade_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// TradeJournal Implementation

func (s *SQLiteStore) SaveEntry(ctx context.Context, e *domain.JournalEntry) error {
	if e.ID == "" {
		e.ID = id.At(e.CreatedAt)
	}
	query := `INSERT INTO journal (id, trade_id, kind, symbol, side, price, stop_loss, pnl, detail, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.TradeID, e.Kind, e.Symbol, string(e.Side), e.Price, e.StopLoss, e.PnL, e.Detail, e.CreatedAt)
	return err
}

const entryColumns = `id, trade_id, kind, symbol, side, price, stop_loss, pnl, detail, created_at`

// ListEntries returns the newest entries first. limit <= 0 returns all.
func (s *SQLiteStore) ListEntries(ctx context.Context, limit int) ([]*domain.JournalEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + entryColumns + ` FROM journal ORDER BY seq DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListTradeEntries returns one trade's entries oldest first.
func (s *SQLiteStore) ListTradeEntries(ctx context.Context, tradeID string) ([]*domain.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal WHERE trade_id = ? ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, tradeID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*domain.JournalEntry, error) {
	defer rows.Close()

	var entries []*domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var side string
		if err := rows.Scan(&e.ID, &e.TradeID, &e.Kind, &e.Symbol, &side, &e.Price, &e.StopLoss, &e.PnL, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Side = domain.Side(side)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
