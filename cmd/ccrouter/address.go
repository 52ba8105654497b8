package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RaghavSood/ccrouter/config"
	"github.com/RaghavSood/ccrouter/wallet"
)

var addressNew bool

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the wallet address",
	Long: `Print the EVM address derived from the configured mnemonic and
account index. With --new, generate a fresh mnemonic instead.`,
	Args: cobra.NoArgs,
	RunE: runAddress,
}

func init() {
	rootCmd.AddCommand(addressCmd)
	addressCmd.Flags().BoolVar(&addressNew, "new", false, "Generate a new mnemonic and print its first address")
}

func runAddress(cmd *cobra.Command, args []string) error {
	if addressNew {
		mnemonic, err := wallet.NewMnemonic()
		if err != nil {
			return err
		}
		addr, err := wallet.DeriveAddress(mnemonic, 0)
		if err != nil {
			return err
		}
		fmt.Printf("Mnemonic: %s\nAddress:  %s\n", mnemonic, addr.Hex())
		printSuccess("Store the mnemonic safely and set it as CCROUTER_MNEMONIC.")
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	addr, err := wallet.DeriveAddress(cfg.Mnemonic, cfg.AccountIndex)
	if err != nil {
		return err
	}
	fmt.Println(addr.Hex())
	return nil
}
