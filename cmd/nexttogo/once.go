package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/nexttogo/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run one selection cycle and print the result",
		RunE:  runOnce,
	}
	cmd.Flags().String("category", "", "Comma-separated categories: horse, greyhound, harness (default: config filter)")
	cmd.Flags().StringP("format", "f", "text", "Output format: json or text")
	rootCmd.AddCommand(cmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	catFlag, _ := cmd.Flags().GetString("category")
	format, _ := cmd.Flags().GetString("format")

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	filter := rt.cfg.CategoryFilter()
	if cmd.Flags().Changed("category") {
		set, unknown := model.ParseCategoryNames(catFlag)
		if len(unknown) > 0 {
			return fmt.Errorf("unknown category: %s", strings.Join(unknown, ", "))
		}
		filter = set
	}

	co := rt.coordinator(filter)
	cycleErr := co.RefreshNow(cmd.Context())
	snap := co.Snapshot()

	// A cache fallback is still worth printing; the error goes to stderr.
	if cycleErr != nil && !snap.FromCache {
		return cycleErr
	}
	if err := writeRaces(cmd.OutOrStdout(), format, snap.Races, snap.Filter, snap.FromCache, cycleErr, time.Now()); err != nil {
		return err
	}
	return cycleErr
}
