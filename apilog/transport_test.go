package apilog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/db"
)

type memRecorder struct {
	mu   sync.Mutex
	rows []db.InsertAPIRequestParams
}

func (m *memRecorder) InsertAPIRequest(_ context.Context, arg db.InsertAPIRequestParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, arg)
	return nil
}

func (m *memRecorder) snapshot() []db.InsertAPIRequestParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.InsertAPIRequestParams(nil), m.rows...)
}

func TestTransportRecordsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	rec := &memRecorder{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := NewHTTPClient("houdini", rec, logger)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/exchange", strings.NewReader(`{"amount":"1"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "secret-key")

	resp, err := client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, `{"ok":false}`, string(body))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	row := rec.snapshot()[0]
	require.Equal(t, "houdini", row.Provider)
	require.Equal(t, http.MethodPost, row.Method)
	require.Equal(t, int64(http.StatusTeapot), row.ResponseStatus.Int64)
	require.Equal(t, `{"ok":false}`, row.ResponseBody.String)
	require.Equal(t, `{"amount":"1"}`, row.RequestBody.String)
	require.NotContains(t, row.RequestHeaders.String, "secret-key")
	require.False(t, row.Error.Valid)
}

func TestTransportRedactsQueryKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.URL.Query().Get("api_key"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	rec := &memRecorder{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tr := NewTransport(http.DefaultTransport, "simpleswap", rec, logger)
	client := &http.Client{Transport: tr}

	resp, err := client.Get(srv.URL + "/get_currencies?api_key=secret&fixed=false")
	require.NoError(t, err)
	resp.Body.Close()

	tr.Flush()
	rows := rec.snapshot()
	require.Len(t, rows, 1)
	require.NotContains(t, rows[0].Url, "secret")
	require.Contains(t, rows[0].Url, "api_key=redacted")
	require.Contains(t, rows[0].Url, "fixed=false")
	require.False(t, rows[0].RequestBody.Valid)
}

func TestTransportRecordsFailures(t *testing.T) {
	rec := &memRecorder{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tr := NewTransport(http.DefaultTransport, "thorchain", rec, logger)
	client := &http.Client{Transport: tr}

	_, err := client.Get("http://127.0.0.1:1/quote")
	require.Error(t, err)

	tr.Flush()
	rows := rec.snapshot()
	require.Len(t, rows, 1)
	require.True(t, rows[0].Error.Valid)
	require.False(t, rows[0].ResponseStatus.Valid)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", maxBodySize+10)
	require.True(t, strings.HasSuffix(truncate(long), "...[truncated]"))
	require.Equal(t, "short", truncate("short"))
}
