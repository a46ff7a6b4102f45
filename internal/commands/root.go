package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "armoured-candles",
	Short: "E-paper crypto candlestick ticker",
	Long: `Firmware daemon for a single-board crypto candlestick ticker driving an
800x480 monochrome e-paper panel.

It periodically fetches OHLCV candles from the configured exchange for up to
four chart slots, computes EMA/RSI/Heikin-Ashi, renders the charts into a
1-bit framebuffer, and pushes the frame with a refresh policy that bounds
e-paper ghosting. A small HTTP API serves the setup UI, status, configuration,
and firmware updates.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
