package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaghavSood/ccrouter/swaps"
)

var (
	configPath string
	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "ccrouter",
	Short: "Cross-chain swap router",
	Long: `ccrouter quotes a swap across THORChain, NEAR Intents, SimpleSwap,
HoudiniSwap and CoW Protocol in parallel, ranks the answers and executes the
chosen one from a local EVM wallet.

Examples:
  ccrouter quote 100 base.USDC bitcoin.BTC --to bc1q...
  ccrouter swap 0.5 ethereum.ETH base.USDC --provider cowswap
  ccrouter trades
  ccrouter serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file (CCROUTER_* env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides log_level from config)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printError(err error) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "\nError: ")
	fmt.Fprintf(os.Stderr, "%s\n\n", swaps.UserMessage(err))
}

func printSuccess(message string) {
	color.New(color.FgGreen).Printf("\n%s\n\n", message)
}
