package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/aggregator"
	"github.com/RaghavSood/ccrouter/contracts"
	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/relay"
	"github.com/RaghavSood/ccrouter/swaps"
)

const (
	wallet    = "0x00000000000000000000000000000000000000A1"
	btcTarget = "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"
)

var (
	usdcBase = swaps.Token{Blockchain: swaps.Base, Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6}
	router   = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	vault    = common.HexToAddress("0x00000000000000000000000000000000000000C2")
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func thorTrade() swaps.Trade {
	return swaps.Trade{
		Provider:  swaps.ProviderThorchain,
		From:      usdcBase,
		To:        swaps.Bitcoin.NativeToken(),
		AmountIn:  big.NewInt(100_000_000),
		AmountOut: big.NewInt(110_000),
		CryptoFee: big.NewInt(0),
		Details: swaps.ThorchainDetails{
			Router: router,
			Vault:  vault,
			Memo:   "=:BTC.BTC:" + btcTarget + ":0",
			Expiry: 1_700_000_000,
		},
	}
}

type memLedger struct {
	mu   sync.Mutex
	rows []db.AppendRecentTradeParams
	err  error
}

func (m *memLedger) AppendRecentTrade(_ context.Context, arg db.AppendRecentTradeParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, r := range m.rows {
		if strings.EqualFold(r.Owner, arg.Owner) && r.SourceTxHash == arg.SourceTxHash {
			return false, nil
		}
	}
	m.rows = append(m.rows, arg)
	return true, nil
}

func (m *memLedger) ListRecentTrades(_ context.Context, owner string) ([]db.RecentTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.RecentTrade
	for _, r := range m.rows {
		if strings.EqualFold(r.Owner, owner) {
			out = append(out, db.RecentTrade{Owner: r.Owner, SourceTxHash: r.SourceTxHash, Provider: r.Provider, Status: r.Status})
		}
	}
	return out, nil
}

type scriptedSigner struct {
	hashes   []string
	err      error
	approveE error
	calls    []ContractCall
	approves []Approval
}

func (s *scriptedSigner) SendTransaction(_ context.Context, call ContractCall, onHash HashCallback) error {
	s.calls = append(s.calls, call)
	for _, h := range s.hashes {
		onHash(h)
	}
	return s.err
}

func (s *scriptedSigner) Approve(_ context.Context, a Approval, onHash HashCallback) error {
	s.approves = append(s.approves, a)
	if s.approveE != nil {
		return s.approveE
	}
	onHash("0xapprove")
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	got  []relay.Notification
	fail bool
}

func (r *recordingNotifier) NotifyCrossChain(_ context.Context, n relay.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	if r.fail {
		return errors.New("relay down")
	}
	return nil
}

// depositProvider behaves like the deposit-address providers: it prepares
// the quote and wants to hear the hash.
type depositProvider struct {
	typ      swaps.ProviderType
	mu       sync.Mutex
	notified []string
}

func (d *depositProvider) Type() swaps.ProviderType                 { return d.typ }
func (d *depositProvider) SupportsPair(_, _ swaps.Blockchain) bool { return true }
func (d *depositProvider) Calculate(context.Context, swaps.Request) (swaps.Trade, error) {
	return swaps.Trade{}, errors.New("not used")
}

func (d *depositProvider) Prepare(_ context.Context, trade swaps.Trade, _, target string) (swaps.Trade, error) {
	details := trade.Details.(swaps.NearIntentsDetails)
	details.DepositAddress = "0x00000000000000000000000000000000000000D1"
	details.CorrelationID = "corr-" + target
	trade.Details = details
	return trade, nil
}

func (d *depositProvider) OnTransactionHash(_ context.Context, _ swaps.Trade, txHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notified = append(d.notified, txHash)
	return nil
}

type fixture struct {
	engine   *aggregator.Engine
	signer   *scriptedSigner
	ledger   *memLedger
	notifier *recordingNotifier
	coord    *Coordinator
	deposit  *depositProvider
}

func newFixture() *fixture {
	f := &fixture{
		signer:   &scriptedSigner{},
		ledger:   &memLedger{},
		notifier: &recordingNotifier{},
		deposit:  &depositProvider{typ: swaps.ProviderNearIntents},
	}
	f.engine = aggregator.NewEngine([]swaps.Provider{f.deposit}, aggregator.NewSession(ranking.DefaultPolicy()), quietLogger())
	f.coord = NewCoordinator(f.engine, f.signer, f.ledger, quietLogger(),
		WithRelay(f.notifier),
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }),
	)
	return f
}

func selectedOf(trade swaps.Trade) *aggregator.SelectedTrade {
	return &aggregator.SelectedTrade{Provider: trade.Provider, Trade: trade}
}

func TestExecuteHappyPath(t *testing.T) {
	f := newFixture()
	f.signer.hashes = []string{"0xhash1"}

	hash, err := f.coord.Execute(context.Background(), selectedOf(thorTrade()), wallet, btcTarget)
	require.NoError(t, err)
	require.Equal(t, "0xhash1", hash)

	trades, err := f.coord.RecentTrades(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "0xhash1", trades[0].SourceTxHash)
	require.Equal(t, "pending", trades[0].Status)

	require.Len(t, f.signer.calls, 1)
	call := f.signer.calls[0]
	require.Equal(t, router, call.To)
	require.Equal(t, "depositWithExpiry", call.Method)
	require.Zero(t, call.Value.Sign(), "ERC-20 input carries no native value")

	f.coord.Dispatcher().Wait()
	require.Len(t, f.notifier.got, 1)
	n := f.notifier.got[0]
	require.Equal(t, "0xhash1", n.TxHash)
	require.Equal(t, int64(8453), n.SourceChainID)
	require.Equal(t, btcTarget, n.TargetAddress)
	require.Equal(t, []string{"BASE.USDC", "BITCOIN.BTC"}, n.Path)
}

func TestExecutePartialFailureKeepsRecord(t *testing.T) {
	f := newFixture()
	f.signer.hashes = []string{"0xhash2"}
	f.signer.err = fmt.Errorf("waiting for receipt: %w", ErrNetwork)

	hash, err := f.coord.Execute(context.Background(), selectedOf(thorTrade()), wallet, btcTarget)
	require.Empty(t, hash)

	var ee *swaps.ExecutionError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, swaps.ExecNetwork, ee.Kind)
	require.Equal(t, "0xhash2", ee.TxHash)
	require.True(t, ee.Submitted())
	require.ErrorIs(t, err, ErrNetwork)

	trades, err := f.coord.RecentTrades(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "0xhash2", trades[0].SourceTxHash)
}

func TestExecuteFullFailureRecordsNothing(t *testing.T) {
	f := newFixture()
	f.signer.err = ErrUserRejected

	_, err := f.coord.Execute(context.Background(), selectedOf(thorTrade()), wallet, btcTarget)
	var ee *swaps.ExecutionError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, swaps.ExecUserRejected, ee.Kind)
	require.False(t, ee.Submitted())

	trades, err := f.coord.RecentTrades(context.Background(), wallet)
	require.NoError(t, err)
	require.Empty(t, trades)

	f.coord.Dispatcher().Wait()
	require.Empty(t, f.notifier.got)
}

func TestExecuteRecordsOncePerHash(t *testing.T) {
	f := newFixture()
	f.signer.hashes = []string{"0xhash1", "0xhash1", "0xother"}

	hash, err := f.coord.Execute(context.Background(), selectedOf(thorTrade()), wallet, btcTarget)
	require.NoError(t, err)
	require.Equal(t, "0xhash1", hash)
	require.Len(t, f.ledger.rows, 1)
}

func TestExecuteRejectsNonEVMSource(t *testing.T) {
	f := newFixture()
	trade := thorTrade()
	trade.From = swaps.Solana.NativeToken()

	_, err := f.coord.Execute(context.Background(), selectedOf(trade), wallet, btcTarget)
	var ee *swaps.ExecutionError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, swaps.ExecUnsupportedChain, ee.Kind)
	require.Empty(t, f.signer.calls)
}

func TestExecutePreparesAndNotifiesProvider(t *testing.T) {
	f := newFixture()
	f.signer.hashes = []string{"0xhash3"}
	f.notifier.fail = true

	trade := swaps.Trade{
		Provider:  swaps.ProviderNearIntents,
		From:      swaps.Base.NativeToken(),
		To:        swaps.Near.NativeToken(),
		AmountIn:  big.NewInt(1_000_000_000_000_000),
		AmountOut: big.NewInt(5),
		CryptoFee: big.NewInt(7),
		Details:   swaps.NearIntentsDetails{AssetIn: "nep141:base.omft.near", AssetOut: "nep141:wrap.near"},
	}

	hash, err := f.coord.Execute(context.Background(), selectedOf(trade), wallet, "alice.near")
	require.NoError(t, err, "relay failure must not surface")
	require.Equal(t, "0xhash3", hash)

	call := f.signer.calls[0]
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000D1"), call.To)
	require.Empty(t, call.Method)
	require.Equal(t, big.NewInt(1_000_000_000_000_007), call.Value)

	f.coord.Dispatcher().Wait()
	require.Equal(t, []string{"0xhash3"}, f.deposit.notified)
	require.Len(t, f.notifier.got, 1)

	require.Len(t, f.ledger.rows, 1)
	row := f.ledger.rows[0]
	require.Equal(t, "0x00000000000000000000000000000000000000D1", row.ExternalID.String)
	require.Equal(t, "nearintents", row.BridgeType.String)
	require.Equal(t, time.Unix(1_700_000_000, 0).UTC(), row.CreatedAt)
}

func TestExecuteLedgerFailureDoesNotFailTrade(t *testing.T) {
	f := newFixture()
	f.signer.hashes = []string{"0xhash4"}
	f.ledger.err = errors.New("disk full")

	hash, err := f.coord.Execute(context.Background(), selectedOf(thorTrade()), wallet, btcTarget)
	require.NoError(t, err)
	require.Equal(t, "0xhash4", hash)
}

func quotedState(t *testing.T, trades ...swaps.Trade) aggregator.AggregateState {
	t.Helper()
	policy := ranking.DefaultPolicy()
	types := make([]swaps.ProviderType, len(trades))
	for i, tr := range trades {
		types[i] = tr.Provider
	}
	st := aggregator.NewAggregateState([16]byte{9}, swaps.Request{}, types, policy, nil)
	for i := range trades {
		st = st.Apply(aggregator.Completion{Provider: trades[i].Provider, Trade: &trades[i]}, policy, nil)
	}
	return st
}

func TestApprovalFailureRestoresSelection(t *testing.T) {
	f := newFixture()
	f.signer.approveE = fmt.Errorf("wallet: %w", ErrUserRejected)

	x := thorTrade()
	x.Provider = "X"
	x.AmountOut = big.NewInt(1)
	y := thorTrade()
	y.Provider = "Y"
	y.AmountOut = big.NewInt(2)
	st := quotedState(t, x, y)

	f.engine.SelectProvider("X")
	require.Equal(t, swaps.ProviderType("X"), f.engine.CurrentBest(st).Provider)

	err := f.coord.Approve(context.Background(), selectedOf(y))
	var ee *swaps.ExecutionError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, swaps.ExecUserRejected, ee.Kind)

	require.Equal(t, swaps.ProviderType("X"), f.engine.SelectedProvider())
	require.Equal(t, swaps.ProviderType("X"), f.engine.CurrentBest(st).Provider)
}

func TestApprovalSuccessPinsProvider(t *testing.T) {
	f := newFixture()
	y := thorTrade()

	require.NoError(t, f.coord.Approve(context.Background(), selectedOf(y)))
	require.Equal(t, swaps.ProviderThorchain, f.engine.SelectedProvider())

	require.Len(t, f.signer.approves, 1)
	a := f.signer.approves[0]
	require.Equal(t, router, a.Spender)
	require.Equal(t, usdcBase.EVMAddress(), a.Token)
	require.Equal(t, y.AmountIn, a.Amount)
}

func TestApprovalSkippedForNativeInput(t *testing.T) {
	f := newFixture()
	trade := thorTrade()
	trade.From = swaps.Base.NativeToken()

	require.NoError(t, f.coord.Approve(context.Background(), selectedOf(trade)))
	require.Empty(t, f.signer.approves)
}

type allowanceCaller struct {
	allowance int64
}

func (a allowanceCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return common.LeftPadBytes(big.NewInt(a.allowance).Bytes(), 32), nil
}

func TestNeedsApprovalReadsAllowance(t *testing.T) {
	tests := []struct {
		name      string
		trade     func() swaps.Trade
		allowance int64
		want      bool
	}{
		{name: "insufficient", trade: thorTrade, allowance: 5, want: true},
		{name: "enough", trade: thorTrade, allowance: 100_000_000, want: false},
		{name: "native input", trade: func() swaps.Trade {
			tr := thorTrade()
			tr.From = swaps.Base.NativeToken()
			return tr
		}, allowance: 0, want: false},
		{name: "direct transfer provider", trade: func() swaps.Trade {
			tr := thorTrade()
			tr.Details = swaps.HoudiniDetails{}
			return tr
		}, allowance: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			coord := NewCoordinator(f.engine, f.signer, f.ledger, quietLogger(), WithRPCs(map[swaps.Blockchain]ethereum.ContractCaller{
				swaps.Base: allowanceCaller{allowance: tt.allowance},
			}))
			got, err := coord.NeedsApproval(context.Background(), tt.trade(), wallet)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAllowancesWithoutRPC(t *testing.T) {
	_, err := Allowances{}.NeedsApproval(context.Background(), thorTrade(), wallet)
	require.ErrorContains(t, err, "no RPC client for base")
}

func TestBuildCallParams(t *testing.T) {
	uid := make([]byte, 56)
	uid[0] = 0xab

	tests := []struct {
		name    string
		mutate  func(*swaps.Trade)
		to      common.Address
		method  string
		wantErr bool
	}{
		{name: "thorchain erc20", mutate: func(*swaps.Trade) {}, to: router, method: "depositWithExpiry"},
		{name: "thorchain without memo", mutate: func(tr *swaps.Trade) {
			tr.Details = swaps.ThorchainDetails{Router: router, Vault: vault}
		}, wantErr: true},
		{name: "simpleswap erc20 transfer", mutate: func(tr *swaps.Trade) {
			tr.Details = swaps.SimpleSwapDetails{DepositAddress: "0x00000000000000000000000000000000000000E1"}
		}, to: usdcBase.EVMAddress(), method: "transfer"},
		{name: "houdini not prepared", mutate: func(tr *swaps.Trade) {
			tr.Details = swaps.HoudiniDetails{}
		}, wantErr: true},
		{name: "cowswap presign", mutate: func(tr *swaps.Trade) {
			tr.Details = swaps.CowSwapDetails{OrderUID: uid}
		}, to: contracts.CowSettlement, method: "setPreSignature"},
		{name: "cowswap not posted", mutate: func(tr *swaps.Trade) {
			tr.Details = swaps.CowSwapDetails{}
		}, wantErr: true},
		{name: "no details", mutate: func(tr *swaps.Trade) { tr.Details = nil }, wantErr: true},
		{name: "erc20 symbol without contract", mutate: func(tr *swaps.Trade) {
			tr.From = swaps.Token{Blockchain: swaps.Base, Symbol: "DAI", Decimals: 18}
			tr.Details = swaps.NearIntentsDetails{DepositAddress: "0x00000000000000000000000000000000000000D1"}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := thorTrade()
			tt.mutate(&trade)
			call, err := BuildCallParams(trade, wallet, btcTarget)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.to, call.To)
			require.Equal(t, tt.method, call.Method)
			data, err := call.Data()
			require.NoError(t, err)
			require.NotEmpty(t, data)
		})
	}
}

func TestDepositValueOnlyForNativeInput(t *testing.T) {
	deposit := "0x00000000000000000000000000000000000000D1"
	dai, err := swaps.ParseToken("base.DAI")
	require.NoError(t, err)
	require.False(t, dai.IsNative())

	trade := thorTrade()
	trade.Details = swaps.NearIntentsDetails{DepositAddress: deposit}

	trade.From = swaps.Base.NativeToken()
	call, err := BuildCallParams(trade, wallet, btcTarget)
	require.NoError(t, err)
	require.Empty(t, call.Method)
	require.Equal(t, common.HexToAddress(deposit), call.To)
	require.Zero(t, trade.AmountIn.Cmp(call.Value))

	trade.From = usdcBase
	call, err = BuildCallParams(trade, wallet, btcTarget)
	require.NoError(t, err)
	require.Equal(t, "transfer", call.Method)
	require.Zero(t, call.Value.Sign())
}

func TestUnknownTradeShape(t *testing.T) {
	trade := thorTrade()
	trade.Details = nil

	var shape *swaps.UnknownTradeShapeError
	_, err := BuildCallParams(trade, wallet, btcTarget)
	require.ErrorAs(t, err, &shape)
	info, err := TradeInfo(trade)
	require.ErrorAs(t, err, &shape)
	require.Equal(t, "100", info.AmountIn.String())
	_, _, err = ApprovalTarget(trade)
	require.ErrorAs(t, err, &shape)
}

func TestTradeInfo(t *testing.T) {
	info, err := TradeInfo(thorTrade())
	require.NoError(t, err)
	require.Equal(t, "THORChain", info.Provider)
	require.Equal(t, "100", info.AmountIn.String())
	require.Equal(t, "0.0011", info.AmountOut.String())
	require.Equal(t, "thorchain", info.BridgeType)
	require.Contains(t, info.Fields["memo"], btcTarget)

	trade := thorTrade()
	trade.Details = swaps.CowSwapDetails{OrderUID: []byte{0x01, 0x02}, ValidTo: 1_700_000_000}
	info, err = TradeInfo(trade)
	require.NoError(t, err)
	require.Equal(t, "0x0102", info.ExternalID)
	require.Equal(t, "2023-11-14T22:13:20Z", info.Fields["valid_to"])
}
