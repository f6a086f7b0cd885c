/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/order-entry/internal/bootstrap"
	"github.com/spf13/cobra"
)

// orderEntryGatewayCmd represents the orderEntryGateway command
var orderEntryGatewayCmd = &cobra.Command{
	Use:   "order-entry-gateway",
	Short: "Start the Order Entry Gateway service",
	Long: `The Order Entry Gateway serves the order form for every connected session.
It keeps one draft per session and instrument, synchronizes price and size
fields against the live price feed, and submits finished orders to the
configured venue.`,
	Run: bootstrap.StartOrderEntryGateway,
}

func init() {
	rootCmd.AddCommand(orderEntryGatewayCmd)
}
