package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx runs the queries inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// RecentTrade is a submitted, not necessarily confirmed, swap.
type RecentTrade struct {
	ID             int64
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
	UpdatedAt      time.Time
}

type APIRequest struct {
	ID              int64
	Provider        string
	Method          string
	Url             string
	RequestHeaders  sql.NullString
	RequestBody     sql.NullString
	ResponseStatus  sql.NullInt64
	ResponseHeaders sql.NullString
	ResponseBody    sql.NullString
	Error           sql.NullString
	DurationMs      sql.NullInt64
	CreatedAt       time.Time
}
