package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/ccrouter/config"
	"github.com/RaghavSood/ccrouter/executor"
	"github.com/RaghavSood/ccrouter/swaps"
)

var (
	swapFlags    requestFlags
	swapProvider string
	swapYes      bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <from-token> <to-token>",
	Short: "Quote and execute a swap from the local wallet",
	Long: `Quote every provider, pick the best trade (or the one named with
--provider) and execute it from the configured wallet. Each transaction is
confirmed interactively unless --yes is given. ERC-20 inputs are approved
first when the current allowance is too low.

Examples:
  ccrouter swap 100 base.USDC bitcoin.BTC --to bc1q...
  ccrouter swap 0.5 ethereum.ETH base.USDC --provider nearintents --yes`,
	Args: cobra.ExactArgs(3),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapFlags.register(swapCmd)
	swapCmd.Flags().StringVar(&swapProvider, "provider", "", "Use this provider's quote instead of the best one")
	swapCmd.Flags().BoolVarP(&swapYes, "yes", "y", false, "Skip confirmation prompts")
}

func runSwap(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	policy, err := swapFlags.policy()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, policy)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := swapFlags.request(a, args)
	if err != nil {
		return err
	}
	if req.Receiver == "" {
		return fmt.Errorf("--to is required for %s destinations", req.To.Blockchain)
	}

	if swapProvider != "" {
		p, err := config.ParseProvider(swapProvider)
		if err != nil {
			return err
		}
		a.engine.SelectProvider(p)
	}

	state, err := calculate(ctx, a.engine, req)
	if err != nil {
		return err
	}
	printState(state, a.engine.SelectedProvider())

	selected, err := a.engine.Resolve(ctx, state, a.owner.Hex())
	if err != nil {
		return err
	}
	if selected == nil {
		return errors.New(state.Summary().String())
	}
	if swapProvider != "" && selected.Provider != a.engine.SelectedProvider() {
		return fmt.Errorf("%s returned no quote", a.engine.SelectedProvider().DisplayName())
	}

	info, err := executor.TradeInfo(selected.Trade)
	if err != nil {
		return err
	}
	printTradeInfo(info, selected.SmartRouting)

	coord, err := a.coordinator(confirmCall)
	if err != nil {
		return err
	}
	defer coord.Dispatcher().Wait()

	if selected.NeedsApproval {
		fmt.Printf("Approving %s for %s...\n", selected.Trade.From.Key(), selected.Provider.DisplayName())
		if err := coord.Approve(ctx, selected); err != nil {
			return err
		}
	}

	txHash, err := coord.Execute(ctx, selected, a.owner.Hex(), req.Receiver)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Swap submitted: %s", txHash)
	if url := a.cfg.ExplorerTxURL(string(selected.Trade.From.Blockchain), txHash); url != "" {
		msg += "\n" + url
	}
	printSuccess(msg)
	return nil
}

func printTradeInfo(info executor.Info, routing *swaps.SmartRouting) {
	bold := color.New(color.Bold)
	bold.Printf("Provider:          %s\n", info.Provider)
	fmt.Printf("You send:          %s\n", info.AmountIn.String())
	fmt.Printf("You receive:       %s\n", info.AmountOut.String())
	fmt.Printf("Minimum received:  %s\n", info.MinimumReceived.String())
	if !info.Rate.IsZero() {
		fmt.Printf("Rate:              %s\n", info.Rate.StringFixed(8))
	}
	if info.EstimatedDuration > 0 {
		fmt.Printf("Estimated time:    %s\n", info.EstimatedDuration)
	}
	if len(info.Route) > 0 {
		fmt.Printf("Route:             %s\n", joinRoute(info.Route))
	}
	if routing != nil {
		fmt.Printf("Routing:           %s\n", strings.Join(nonEmpty(routing.FromProvider, routing.BridgeProvider, routing.ToProvider), " → "))
	}

	keys := make([]string, 0, len(info.Fields))
	for k := range info.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-16s %s\n", k+":", info.Fields[k])
	}
	fmt.Println()
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// confirmCall asks on the terminal before each transaction is signed.
func confirmCall(ctx context.Context, call executor.ContractCall) bool {
	if swapYes {
		return true
	}
	value := "0"
	if call.Value != nil {
		value = call.Value.String()
	}
	method := call.Method
	if method == "" {
		method = "transfer"
	}
	fmt.Printf("Sign %s on %s to %s (value %s wei)? [y/N]: ", method, call.Chain, call.To.Hex(), value)

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
