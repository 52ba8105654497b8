package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestClientPostsNotification(t *testing.T) {
	var got Notification
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-Api-Key")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil)
	n := Notification{TxHash: "0xhash1", SourceChainID: 8453, ToBlockchain: "near", TargetAddress: "alice.near", Path: []string{"BASE.USDC", "NEAR.NEAR"}}
	require.NoError(t, c.NotifyCrossChain(context.Background(), n))
	require.Equal(t, n, got)
	require.Equal(t, "k", apiKey)
}

func TestClientReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "", nil).NotifyCrossChain(context.Background(), Notification{})
	require.ErrorContains(t, err, "relay returned 503")
}

func TestDispatcherSurvivesFailuresAndPanics(t *testing.T) {
	d := NewDispatcher(quietLogger(), 0)

	var mu sync.Mutex
	results := map[string]error{}
	d.OnResult = func(name string, err error) {
		mu.Lock()
		results[name] = err
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.Go(ctx, "ok", func(ctx context.Context) error { return ctx.Err() })
	d.Go(ctx, "fail", func(context.Context) error { return errors.New("backend down") })
	d.Go(ctx, "panic", func(context.Context) error { panic("nil map") })
	cancel()
	d.Wait()

	require.NoError(t, results["ok"], "tasks are detached from caller cancellation")
	require.EqualError(t, results["fail"], "backend down")
	require.ErrorContains(t, results["panic"], "panic: nil map")
}
