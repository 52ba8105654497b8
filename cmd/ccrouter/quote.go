package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/ccrouter/aggregator"
	"github.com/RaghavSood/ccrouter/config"
	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/swaps"
)

// requestFlags are shared by quote and swap.
type requestFlags struct {
	receiver     string
	slippage     float64
	timeout      time.Duration
	strategy     string
	disable      []string
	fromDecimals int32
	toDecimals   int32
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.receiver, "to", "", "Destination address (defaults to the wallet on EVM chains)")
	cmd.Flags().Float64Var(&f.slippage, "slippage", 0, "Slippage tolerance as a fraction (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-provider timeout (default from config)")
	cmd.Flags().StringVar(&f.strategy, "ranking", "output", "Ranking strategy: output or smart")
	cmd.Flags().StringSliceVar(&f.disable, "disable", nil, "Providers to skip")
	cmd.Flags().Int32Var(&f.fromDecimals, "from-decimals", 0, "Decimals of the source token when not built in")
	cmd.Flags().Int32Var(&f.toDecimals, "to-decimals", 0, "Decimals of the destination token when not built in")
}

func (f *requestFlags) policy() (ranking.Policy, error) {
	strategy, err := ranking.ParseStrategy(f.strategy)
	if err != nil {
		return ranking.Policy{}, err
	}
	if strategy == ranking.Smart {
		return ranking.SmartPolicy(nil), nil
	}
	return ranking.DefaultPolicy(), nil
}

// request builds a calculation request from "<amount> <from> <to>".
func (f *requestFlags) request(a *app, args []string) (swaps.Request, error) {
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return swaps.Request{}, fmt.Errorf("invalid amount %q: %w", args[0], err)
	}
	from, err := swaps.ParseToken(args[1])
	if err != nil {
		return swaps.Request{}, err
	}
	to, err := swaps.ParseToken(args[2])
	if err != nil {
		return swaps.Request{}, err
	}
	if f.fromDecimals > 0 {
		from.Decimals = f.fromDecimals
	}
	if f.toDecimals > 0 {
		to.Decimals = f.toDecimals
	}

	slippage := a.cfg.Slippage
	if f.slippage > 0 {
		slippage = f.slippage
	}
	timeout := a.cfg.ProviderTimeout
	if f.timeout > 0 {
		timeout = f.timeout
	}

	disabled := a.cfg.Disabled()
	for _, name := range f.disable {
		p, err := config.ParseProvider(name)
		if err != nil {
			return swaps.Request{}, err
		}
		disabled[p] = true
	}

	receiver := f.receiver
	if receiver == "" && to.Blockchain.IsEVM() {
		receiver = a.owner.Hex()
	}

	return swaps.Request{
		From:              from,
		FromAmount:        amount,
		To:                to,
		SlippageTolerance: decimal.NewFromFloat(slippage),
		Timeout:           timeout,
		DisabledProviders: disabled,
		Sender:            a.owner.Hex(),
		Receiver:          receiver,
	}, nil
}

var quoteFlags requestFlags

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <from-token> <to-token>",
	Short: "Quote a swap across every provider",
	Long: `Query every provider that supports the pair in parallel and print the
ranked results as they arrive. Tokens use CHAIN.SYMBOL notation, optionally
with a contract address: base.USDC, bitcoin.BTC, base.DEGEN-0x4ed4...

Examples:
  ccrouter quote 100 base.USDC bitcoin.BTC --to bc1q...
  ccrouter quote 1 ethereum.ETH ethereum.USDC --ranking smart`,
	Args: cobra.ExactArgs(3),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteFlags.register(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	policy, err := quoteFlags.policy()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, policy)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := quoteFlags.request(a, args)
	if err != nil {
		return err
	}

	state, err := calculate(ctx, a.engine, req)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printStateJSON(state)
	}
	printState(state, a.engine.SelectedProvider())
	return nil
}

// calculate runs one cycle to completion, showing progress on a spinner.
func calculate(ctx context.Context, engine *aggregator.Engine, req swaps.Request) (aggregator.AggregateState, error) {
	calc, err := engine.StartCalculation(ctx, req)
	if err != nil {
		return aggregator.AggregateState{}, err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
		defer s.Stop()
	}

	for st := range calc.States() {
		if jsonOutput {
			continue
		}
		s.Lock()
		s.Suffix = fmt.Sprintf(" Fetching quotes (%d/%d)...", st.CompletedProviders, st.TotalProviders)
		if best := aggregator.Best(st, ""); best != nil {
			s.Suffix += fmt.Sprintf(" best so far %s %s via %s",
				best.Trade.AmountOutDecimal().StringFixed(6), best.Trade.To.Symbol, best.Provider.DisplayName())
		}
		s.Unlock()
	}

	if err := ctx.Err(); err != nil {
		return aggregator.AggregateState{}, err
	}
	return calc.Latest(), nil
}

func printState(state aggregator.AggregateState, pinned swaps.ProviderType) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	req := state.Request
	bold.Printf("\n%s %s → %s\n\n", req.FromAmount.String(), req.From.Key(), req.To.Key())

	for i, r := range state.Results {
		name := fmt.Sprintf("%-14s", r.Provider.DisplayName())
		switch r.Status {
		case swaps.ResultQuote:
			line := fmt.Sprintf("%2d. %s %s %s", i+1, name, r.Trade.AmountOutDecimal().StringFixed(8), r.Trade.To.Symbol)
			if r.Trade.EstimatedDuration > 0 {
				line += fmt.Sprintf("  ~%s", r.Trade.EstimatedDuration.Round(time.Second))
			}
			if r.Rank == swaps.RankDangerous {
				line += "  (dangerous)"
			}
			if r.Provider == pinned {
				line += "  (selected)"
			}
			if i == 0 && r.Rank != swaps.RankDangerous {
				green.Println(line)
			} else {
				fmt.Println(line)
			}
		case swaps.ResultFailure:
			red.Printf("%2d. %s %s\n", i+1, name, swaps.UserMessage(r.Err))
		default:
			yellow.Printf("%2d. %s pending\n", i+1, name)
		}
	}

	faint.Printf("\n%s\n\n", state.Summary())
}

type resultView struct {
	Provider     string              `json:"provider"`
	Status       string              `json:"status"`
	Rank         int                 `json:"rank"`
	AmountOut    string              `json:"amountOut,omitempty"`
	AmountOutMin string              `json:"amountOutMin,omitempty"`
	Duration     string              `json:"estimatedDuration,omitempty"`
	Route        []string            `json:"route,omitempty"`
	SmartRouting *swaps.SmartRouting `json:"smartRouting,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func printStateJSON(state aggregator.AggregateState) error {
	out := struct {
		CycleID string       `json:"cycleId"`
		Checked int          `json:"checked"`
		Total   int          `json:"total"`
		Summary string       `json:"summary"`
		Results []resultView `json:"results"`
	}{
		CycleID: state.CycleID.String(),
		Checked: state.CompletedProviders,
		Total:   state.TotalProviders,
		Summary: state.Summary().String(),
	}
	for _, r := range state.Results {
		v := resultView{Provider: string(r.Provider), Status: r.Status.String(), Rank: r.Rank}
		if r.Trade != nil {
			v.AmountOut = r.Trade.AmountOutDecimal().String()
			v.AmountOutMin = r.Trade.To.FromRaw(r.Trade.AmountOutMin).String()
			if r.Trade.EstimatedDuration > 0 {
				v.Duration = r.Trade.EstimatedDuration.String()
			}
			v.Route = r.Trade.PathSymbols()
			v.SmartRouting = r.Trade.SmartRouting()
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out.Results = append(out.Results, v)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func joinRoute(route []string) string {
	return strings.Join(route, " → ")
}
