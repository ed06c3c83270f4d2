package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/usecase"
)

var calcFlags struct {
	side       string
	entry      float64
	capital    float64
	leverage   float64
	stopLoss   float64
	takeProfit float64
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Print the risk snapshot for a trade",
	Long: `Compute position value, quantity, risk and the 2R target offline.

Example:
  tradeclient calc --side LONG --entry 100 --capital 1000 --leverage 10 --sl 98`,
	RunE: runCalc,
}

func init() {
	rootCmd.AddCommand(calcCmd)
	f := calcCmd.Flags()
	f.StringVar(&calcFlags.side, "side", "LONG", "LONG or SHORT")
	f.Float64Var(&calcFlags.entry, "entry", 0, "entry price (required)")
	f.Float64Var(&calcFlags.capital, "capital", 0, "capital in USDT (required)")
	f.Float64Var(&calcFlags.leverage, "leverage", 1, "leverage")
	f.Float64Var(&calcFlags.stopLoss, "sl", 0, "stop loss price")
	f.Float64Var(&calcFlags.takeProfit, "tp", 0, "take profit price (optional)")
	calcCmd.MarkFlagRequired("entry")
	calcCmd.MarkFlagRequired("capital")
}

func runCalc(cmd *cobra.Command, args []string) error {
	side := domain.Side(strings.ToUpper(calcFlags.side))
	if !side.Valid() {
		return domain.ErrInvalidSide
	}
	snap := usecase.CalculateRisk(calcFlags.entry, calcFlags.capital, calcFlags.leverage, calcFlags.stopLoss, calcFlags.takeProfit, side)
	if !snap.Complete {
		return fmt.Errorf("entry and capital must be positive")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Entry:            %.8g\n", snap.EntryPrice)
	fmt.Fprintf(out, "Position value:   $%.2f\n", snap.PositionValue)
	fmt.Fprintf(out, "Quantity:         %.6f\n", snap.Quantity)
	if calcFlags.stopLoss <= 0 {
		fmt.Fprintln(out, "Risk:             -- (no stop loss)")
		return nil
	}
	fmt.Fprintf(out, "Risk per unit:    %.8g\n", snap.RiskPerUnit)
	fmt.Fprintf(out, "Risk amount:      $%.2f (%.2f%%)\n", snap.RiskAmount, snap.RiskPercent)
	fmt.Fprintf(out, "Target 2R:        %.8g\n", snap.Target2R)
	fmt.Fprintf(out, "Profit at 2R:     $%.2f\n", snap.PotentialProfit)
	if snap.RewardMultiple > 0 {
		fmt.Fprintf(out, "Planned reward:   %.2fR\n", snap.RewardMultiple)
	}
	return nil
}
