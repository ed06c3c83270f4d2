package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vitos/trailing_trade_client/internal/domain"
	"github.com/vitos/trailing_trade_client/internal/usecase"
)

var ladderFlags struct {
	side     string
	entry    float64
	stopLoss float64
}

var ladderCmd = &cobra.Command{
	Use:   "ladder",
	Short: "Print the trailing ladder for an entry and stop",
	Long: `Print every rung of the configured R-multiple ladder: target price, the
stop the bot trails to and the suggested action.

Example:
  tradeclient ladder --side SHORT --entry 3000 --sl 3050`,
	RunE: runLadder,
}

func init() {
	rootCmd.AddCommand(ladderCmd)
	f := ladderCmd.Flags()
	f.StringVar(&ladderFlags.side, "side", "LONG", "LONG or SHORT")
	f.Float64Var(&ladderFlags.entry, "entry", 0, "entry price (required)")
	f.Float64Var(&ladderFlags.stopLoss, "sl", 0, "initial stop loss (required)")
	ladderCmd.MarkFlagRequired("entry")
	ladderCmd.MarkFlagRequired("sl")
}

func runLadder(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	side := domain.Side(strings.ToUpper(ladderFlags.side))
	levels, err := usecase.BuildLadder(ladderFlags.entry, ladderFlags.stopLoss, side, cfg.Ladder.Rungs, cfg.Ladder.PriceTick)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "R\tTARGET\tSTOP\tBOOK\tACTION")
	for _, l := range levels {
		fmt.Fprintf(w, "%gR\t%.8g\t%.8g\t%g%%\t%s\n", l.R, l.TargetPrice, l.NewStopLoss, l.BookPercent, l.Action)
	}
	return w.Flush()
}
