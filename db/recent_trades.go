package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const recentTradeColumns = `id, owner, source_tx_hash, from_blockchain, to_blockchain, from_token, to_token,
	from_amount, to_amount, provider, bridge_type, external_id, status, created_at, updated_at`

const appendRecentTrade = `INSERT INTO recent_trades (
	owner, source_tx_hash, from_blockchain, to_blockchain, from_token, to_token,
	from_amount, to_amount, provider, bridge_type, external_id, status, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (owner, source_tx_hash) DO NOTHING`

type AppendRecentTradeParams struct {
	Owner          string
	SourceTxHash   string
	FromBlockchain string
	ToBlockchain   string
	FromToken      string
	ToToken        string
	FromAmount     string
	ToAmount       string
	Provider       string
	BridgeType     sql.NullString
	ExternalID     sql.NullString
	Status         string
	CreatedAt      time.Time
}

// AppendRecentTrade stores a trade unless one with the same owner and hash
// exists. It reports whether a row was inserted.
func (q *Queries) AppendRecentTrade(ctx context.Context, arg AppendRecentTradeParams) (bool, error) {
	if arg.Status == "" {
		arg.Status = "pending"
	}
	if arg.CreatedAt.IsZero() {
		arg.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx, appendRecentTrade,
		normalizeOwner(arg.Owner),
		arg.SourceTxHash,
		arg.FromBlockchain,
		arg.ToBlockchain,
		arg.FromToken,
		arg.ToToken,
		arg.FromAmount,
		arg.ToAmount,
		arg.Provider,
		arg.BridgeType,
		arg.ExternalID,
		arg.Status,
		arg.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting recent trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const listRecentTrades = `SELECT ` + recentTradeColumns + ` FROM recent_trades
WHERE owner = ? ORDER BY created_at DESC, id DESC`

// ListRecentTrades returns an owner's trades, newest first.
func (q *Queries) ListRecentTrades(ctx context.Context, owner string) ([]RecentTrade, error) {
	return q.queryRecentTrades(ctx, listRecentTrades, normalizeOwner(owner))
}

const listPendingRecentTrades = `SELECT ` + recentTradeColumns + ` FROM recent_trades
WHERE status IN ('pending', 'unknown') ORDER BY created_at ASC, id ASC`

// ListPendingRecentTrades returns trades whose outcome is not final yet.
func (q *Queries) ListPendingRecentTrades(ctx context.Context) ([]RecentTrade, error) {
	return q.queryRecentTrades(ctx, listPendingRecentTrades)
}

const getRecentTrade = `SELECT ` + recentTradeColumns + ` FROM recent_trades
WHERE owner = ? AND source_tx_hash = ?`

func (q *Queries) GetRecentTrade(ctx context.Context, owner, sourceTxHash string) (RecentTrade, error) {
	row := q.db.QueryRowContext(ctx, getRecentTrade, normalizeOwner(owner), sourceTxHash)
	var t RecentTrade
	err := scanRecentTrade(row, &t)
	return t, err
}

const updateRecentTradeStatus = `UPDATE recent_trades SET status = ?, updated_at = ? WHERE id = ?`

type UpdateRecentTradeStatusParams struct {
	Status string
	ID     int64
}

func (q *Queries) UpdateRecentTradeStatus(ctx context.Context, arg UpdateRecentTradeStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateRecentTradeStatus, arg.Status, time.Now().UTC(), arg.ID)
	return err
}

func (q *Queries) queryRecentTrades(ctx context.Context, query string, args ...interface{}) ([]RecentTrade, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecentTrade
	for rows.Next() {
		var t RecentTrade
		if err := scanRecentTrade(rows, &t); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecentTrade(s scanner, t *RecentTrade) error {
	return s.Scan(
		&t.ID,
		&t.Owner,
		&t.SourceTxHash,
		&t.FromBlockchain,
		&t.ToBlockchain,
		&t.FromToken,
		&t.ToToken,
		&t.FromAmount,
		&t.ToAmount,
		&t.Provider,
		&t.BridgeType,
		&t.ExternalID,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

// Owners are EVM addresses; case must not split one wallet's history.
func normalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
