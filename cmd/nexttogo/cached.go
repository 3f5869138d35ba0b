package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/nexttogo/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cached",
		Short: "Print the last cached snapshot without calling the API",
		RunE:  runCached,
	}
	cmd.Flags().StringP("format", "f", "text", "Output format: json or text")
	rootCmd.AddCommand(cmd)
}

func runCached(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	races, at, err := rt.cacheOnly(cmd.Context())
	if err != nil {
		return err
	}
	if format == "text" && !at.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot from %s (%d races)\n", at.Local().Format(time.RFC1123), len(races))
	}
	return writeRaces(cmd.OutOrStdout(), format, races, model.NewCategorySet(), true, nil, time.Now())
}
