package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/swaps"
)

var tradesOwner string

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List recorded trades of the wallet",
	Long: `List the trades recorded for the wallet (or --owner), newest first,
with the status last seen by the tracker.`,
	Args: cobra.NoArgs,
	RunE: runTrades,
}

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().StringVar(&tradesOwner, "owner", "", "EVM address to list trades for (default: the wallet)")
}

func runTrades(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, ranking.DefaultPolicy())
	if err != nil {
		return err
	}
	defer a.Close()

	owner := a.owner.Hex()
	if tradesOwner != "" {
		if !common.IsHexAddress(tradesOwner) {
			return fmt.Errorf("invalid owner address %q", tradesOwner)
		}
		owner = tradesOwner
	}
	return printTrades(ctx, a, owner)
}

func printTrades(ctx context.Context, a *app, owner string) error {
	trades, err := a.store.ListRecentTrades(ctx, owner)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trades)
	}

	if len(trades) == 0 {
		fmt.Println("No trades recorded.")
		return nil
	}

	for _, t := range trades {
		status := color.New(color.FgYellow)
		switch swaps.TradeStatus(t.Status) {
		case swaps.TradeStatusSuccess:
			status = color.New(color.FgGreen)
		case swaps.TradeStatusFail:
			status = color.New(color.FgRed)
		case swaps.TradeStatusFallback:
			status = color.New(color.FgMagenta)
		}

		fmt.Printf("%s  %s %s → %s %s via %s  ",
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			t.FromAmount, t.FromToken, t.ToAmount, t.ToToken,
			swaps.ProviderType(t.Provider).DisplayName())
		status.Println(t.Status)

		if url := a.cfg.ExplorerTxURL(t.FromBlockchain, t.SourceTxHash); url != "" {
			color.New(color.Faint).Printf("    %s\n", url)
		} else {
			color.New(color.Faint).Printf("    %s\n", t.SourceTxHash)
		}
	}
	return nil
}
