package apilog

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/db"
)

const maxBodySize = 64 * 1024

// Recorder persists one provider HTTP exchange. *db.Store implements it.
type Recorder interface {
	InsertAPIRequest(ctx context.Context, arg db.InsertAPIRequestParams) error
}

// Transport records every request made to a provider's API, including
// failed ones, so quotes can be audited after the fact. Credentials in
// headers and query strings are redacted before they are stored.
type Transport struct {
	inner    http.RoundTripper
	provider string
	recorder Recorder
	logger   *logrus.Entry

	pending sync.WaitGroup
}

// NewHTTPClient returns a client for provider. A nil recorder disables
// request logging.
func NewHTTPClient(provider string, recorder Recorder, logger *logrus.Logger) *http.Client {
	client := &http.Client{Timeout: 30 * time.Second}
	if recorder != nil {
		client.Transport = NewTransport(http.DefaultTransport, provider, recorder, logger)
	}
	return client
}

func NewTransport(inner http.RoundTripper, provider string, recorder Recorder, logger *logrus.Logger) *Transport {
	return &Transport{
		inner:    inner,
		provider: provider,
		recorder: recorder,
		logger:   logger.WithFields(logrus.Fields{"pkg": "apilog.Transport", "provider": provider}),
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBody, err := drain(&req.Body)
	if err != nil {
		return nil, err
	}

	params := db.InsertAPIRequestParams{
		Provider:       t.provider,
		Method:         req.Method,
		Url:            redactURL(req.URL),
		RequestHeaders: nullString(headerString(redactHeaders(req.Header))),
		RequestBody:    nullString(truncate(string(reqBody))),
	}

	start := time.Now()
	resp, rtErr := t.inner.RoundTrip(req)
	params.DurationMs = sql.NullInt64{Int64: time.Since(start).Milliseconds(), Valid: true}

	if rtErr != nil {
		params.Error = nullString(rtErr.Error())
	} else {
		respBody, err := drain(&resp.Body)
		if err != nil {
			params.Error = nullString(err.Error())
		}
		params.ResponseStatus = sql.NullInt64{Int64: int64(resp.StatusCode), Valid: true}
		params.ResponseHeaders = nullString(headerString(resp.Header))
		params.ResponseBody = nullString(truncate(string(respBody)))
	}

	t.record(params)
	return resp, rtErr
}

// record stores params off the request path.
func (t *Transport) record(params db.InsertAPIRequestParams) {
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		if err := t.recorder.InsertAPIRequest(context.Background(), params); err != nil {
			t.logger.WithError(err).WithFields(logrus.Fields{
				"method": params.Method,
				"url":    params.Url,
			}).Warn("Failed to log API request")
		}
	}()
}

// Flush blocks until every recorded exchange has been written.
func (t *Transport) Flush() {
	t.pending.Wait()
}

// drain reads body fully and replaces it with a rewindable copy.
func drain(body *io.ReadCloser) ([]byte, error) {
	if *body == nil || *body == http.NoBody {
		return nil, nil
	}
	b, err := io.ReadAll(*body)
	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(b))
	return b, err
}

var (
	sensitiveHeaders = []string{"Authorization", "Api-Key", "X-Api-Key"}
	sensitiveParams  = []string{"api_key", "apikey", "key"}
)

func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range sensitiveHeaders {
		if out.Get(k) != "" {
			out.Set(k, "[redacted]")
		}
	}
	return out
}

func redactURL(u *url.URL) string {
	q := u.Query()
	changed := false
	for _, k := range sensitiveParams {
		if q.Has(k) {
			q.Set(k, "redacted")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}

func headerString(h http.Header) string {
	var sb strings.Builder
	h.Write(&sb)
	return sb.String()
}

func truncate(s string) string {
	if len(s) > maxBodySize {
		return s[:maxBodySize] + "...[truncated]"
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
