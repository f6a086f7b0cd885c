/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/order-entry/internal/bootstrap"
	"github.com/spf13/cobra"
)

// priceFeedWorkerCmd represents the priceFeedWorker command
var priceFeedWorkerCmd = &cobra.Command{
	Use:   "price-feed-worker",
	Short: "Start the Price Feed Worker",
	Long: `The Price Feed Worker streams mark price and best bid/ask from the exchange
websocket and republishes the latest snapshot per instrument to the gateways.`,
	Run: bootstrap.StartPriceFeedWorker,
}

func init() {
	rootCmd.AddCommand(priceFeedWorkerCmd)
}
