package db

import (
	"context"
	"database/sql"
)

const insertAPIRequest = `INSERT INTO api_requests (
	provider, method, url, request_headers, request_body,
	response_status, response_headers, response_body, error, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertAPIRequestParams struct {
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
}

func (q *Queries) InsertAPIRequest(ctx context.Context, arg InsertAPIRequestParams) error {
	_, err := q.db.ExecContext(ctx, insertAPIRequest,
		arg.Provider,
		arg.Method,
		arg.Url,
		arg.RequestHeaders,
		arg.RequestBody,
		arg.ResponseStatus,
		arg.ResponseHeaders,
		arg.ResponseBody,
		arg.Error,
		arg.DurationMs,
	)
	return err
}

const listAPIRequests = `SELECT id, provider, method, url, request_headers, request_body,
	response_status, response_headers, response_body, error, duration_ms, created_at
FROM api_requests WHERE provider = ? ORDER BY id DESC LIMIT ?`

// ListAPIRequests returns the latest logged exchanges with a provider.
func (q *Queries) ListAPIRequests(ctx context.Context, provider string, limit int64) ([]APIRequest, error) {
	rows, err := q.db.QueryContext(ctx, listAPIRequests, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []APIRequest
	for rows.Next() {
		var i APIRequest
		if err := rows.Scan(
			&i.ID,
			&i.Provider,
			&i.Method,
			&i.Url,
			&i.RequestHeaders,
			&i.RequestBody,
			&i.ResponseStatus,
			&i.ResponseHeaders,
			&i.ResponseBody,
			&i.Error,
			&i.DurationMs,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
