package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/aggregator"
	"github.com/RaghavSood/ccrouter/balances"
	"github.com/RaghavSood/ccrouter/config"
	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/swaps"
)

const sessionCookie = "admin_session"

// Store is the read side of the ledger the API serves. *db.Store implements it.
type Store interface {
	ListRecentTrades(ctx context.Context, owner string) ([]db.RecentTrade, error)
	ListAPIRequests(ctx context.Context, provider string, limit int64) ([]db.APIRequest, error)
}

type Server struct {
	port          int
	adminPassword string
	store         Store
	engine        *aggregator.Engine
	owner         common.Address
	rpcs          map[swaps.Blockchain]ethereum.ContractCaller
	explorer      func(chain, txHash string) string
	logger        *logrus.Entry

	sessionMu sync.RWMutex
	sessions  map[string]bool
}

type Option func(*Server)

// WithAdminPassword enables the /api/admin endpoints.
func WithAdminPassword(pw string) Option {
	return func(s *Server) { s.adminPassword = pw }
}

// WithWallet sets the default trade owner and the callers used for balances.
func WithWallet(owner common.Address, rpcs map[swaps.Blockchain]ethereum.ContractCaller) Option {
	return func(s *Server) {
		s.owner = owner
		s.rpcs = rpcs
	}
}

func WithExplorer(fn func(chain, txHash string) string) Option {
	return func(s *Server) { s.explorer = fn }
}

func New(port int, store Store, engine *aggregator.Engine, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		port:     port,
		store:    store,
		engine:   engine,
		logger:   logger.WithField("pkg", "server.Server"),
		sessions: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes, each instrumented with request metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, metrics.HTTPMiddleware(pattern, h))
	}

	route("GET /api/trades", s.handleTrades)
	route("GET /api/providers", s.handleProviders)

	route("POST /api/admin/login", s.handleAdminLogin)
	route("POST /api/admin/dangerous", s.withAdminAuth(s.handleDangerous))
	route("GET /api/admin/requests", s.withAdminAuth(s.handleAPIRequests))
	route("GET /api/admin/balances", s.withAdminAuth(s.handleBalances))

	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Auth helpers ---

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashPassword(pw string) [32]byte {
	return sha256.Sum256([]byte(pw))
}

func (s *Server) withAdminAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminPassword == "" {
			http.Error(w, "admin API disabled", http.StatusForbidden)
			return
		}
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.sessionMu.RLock()
		valid := s.sessions[cookie.Value]
		s.sessionMu.RUnlock()
		if !valid {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.adminPassword == "" {
		http.Error(w, "admin API disabled", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	expected := hashPassword(s.adminPassword)
	got := hashPassword(r.FormValue("password"))
	if subtle.ConstantTimeCompare(expected[:], got[:]) != 1 {
		s.logger.WithField("remote", r.RemoteAddr).Warn("Failed admin login")
		http.Error(w, "invalid password", http.StatusUnauthorized)
		return
	}

	token, err := generateToken()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sessionMu.Lock()
	s.sessions[token] = true
	s.sessionMu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteStrictMode})
	w.WriteHeader(http.StatusNoContent)
}

// --- API handlers ---

type tradeView struct {
	Owner          string    `json:"owner"`
	SourceTxHash   string    `json:"source_tx_hash"`
	FromBlockchain string    `json:"from_blockchain"`
	ToBlockchain   string    `json:"to_blockchain"`
	FromToken      string    `json:"from_token"`
	ToToken        string    `json:"to_token"`
	FromAmount     string    `json:"from_amount"`
	ToAmount       string    `json:"to_amount"`
	Provider       string    `json:"provider"`
	ProviderName   string    `json:"provider_name"`
	BridgeType     string    `json:"bridge_type,omitempty"`
	ExternalID     string    `json:"external_id,omitempty"`
	Status         string    `json:"status"`
	ExplorerURL    string    `json:"explorer_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" && s.owner != (common.Address{}) {
		owner = s.owner.Hex()
	}
	if !common.IsHexAddress(owner) {
		http.Error(w, "owner must be an EVM address", http.StatusBadRequest)
		return
	}

	trades, err := s.store.ListRecentTrades(r.Context(), owner)
	if err != nil {
		s.logger.WithError(err).Error("Listing recent trades")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		v := tradeView{
			Owner:          t.Owner,
			SourceTxHash:   t.SourceTxHash,
			FromBlockchain: t.FromBlockchain,
			ToBlockchain:   t.ToBlockchain,
			FromToken:      t.FromToken,
			ToToken:        t.ToToken,
			FromAmount:     t.FromAmount,
			ToAmount:       t.ToAmount,
			Provider:       t.Provider,
			ProviderName:   swaps.ProviderType(t.Provider).DisplayName(),
			BridgeType:     t.BridgeType.String,
			ExternalID:     t.ExternalID.String,
			Status:         t.Status,
			CreatedAt:      t.CreatedAt,
			UpdatedAt:      t.UpdatedAt,
		}
		if s.explorer != nil {
			v.ExplorerURL = s.explorer(t.FromBlockchain, t.SourceTxHash)
		}
		out = append(out, v)
	}
	writeJSON(w, out)
}

type providerView struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Dangerous   bool   `json:"dangerous"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	dangerous := s.engine.Session().Dangerous
	out := []providerView{}
	for _, p := range s.engine.Providers() {
		out = append(out, providerView{Name: string(p), DisplayName: p.DisplayName(), Dangerous: dangerous.Contains(p)})
	}
	writeJSON(w, out)
}

func (s *Server) handleDangerous(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider  string `json:"provider"`
		Dangerous bool   `json:"dangerous"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	p, err := config.ParseProvider(req.Provider)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Dangerous {
		s.engine.MarkDangerous(p)
	} else {
		s.engine.UnmarkDangerous(p)
	}
	s.logger.WithFields(logrus.Fields{"provider": p, "dangerous": req.Dangerous}).Info("Updated dangerous providers")

	writeJSON(w, s.engine.Session().Dangerous.List())
}

type apiRequestView struct {
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int64     `json:"status,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Request    string    `json:"request,omitempty"`
	Response   string    `json:"response,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleAPIRequests(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if _, err := config.ParseProvider(provider); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	reqs, err := s.store.ListAPIRequests(r.Context(), provider, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]apiRequestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, apiRequestView{
			Method:     req.Method,
			URL:        req.Url,
			Status:     req.ResponseStatus.Int64,
			DurationMs: req.DurationMs.Int64,
			Request:    req.RequestBody.String,
			Response:   req.ResponseBody.String,
			Error:      req.Error.String,
			CreatedAt:  req.CreatedAt,
		})
	}
	writeJSON(w, out)
}

type balanceView struct {
	Chain   string `json:"chain"`
	Token   string `json:"token"`
	Address string `json:"address,omitempty"`
	Raw     string `json:"raw"`
	Amount  string `json:"amount"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if s.owner == (common.Address{}) {
		http.Error(w, "no wallet configured", http.StatusNotFound)
		return
	}

	chains := make([]swaps.Blockchain, 0, len(s.rpcs))
	for chain := range s.rpcs {
		chains = append(chains, chain)
	}
	slices.Sort(chains)

	out := []balanceView{}
	for _, chain := range chains {
		bals, err := balances.Fetch(r.Context(), s.rpcs[chain], s.owner, swaps.KnownTokens(chain))
		if err != nil {
			http.Error(w, fmt.Sprintf("fetching %s balances: %v", chain, err), http.StatusBadGateway)
			return
		}
		for _, b := range bals {
			out = append(out, balanceView{
				Chain:   string(chain),
				Token:   b.Token.Key(),
				Address: b.Token.Address,
				Raw:     b.Raw.String(),
				Amount:  b.Token.FromRaw(b.Raw).String(),
			})
		}
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
