package cmd

import (
	"github.com/crytic/schlau/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger used by the commands before a project configuration is loaded.
var cmdLogger = logging.NewLogger(zerolog.InfoLevel, true).NewSubLogger("module", "cmd")

var rootCmd = &cobra.Command{
	Use:   "schlau",
	Short: "A smart contract execution sandbox for ledger (Wasm) and EVM contracts",
	Long: "schlau builds smart contracts and executes them in isolated, pre-funded sandboxes for the ledger " +
		"(Wasm, SCALE) and EVM runtimes",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
