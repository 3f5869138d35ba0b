package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/nexttogo/internal/coord"
	"github.com/abelbrown/nexttogo/internal/logging"
	"github.com/abelbrown/nexttogo/internal/model"
	"github.com/abelbrown/nexttogo/internal/ui"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Live next-to-go list in the terminal",
		RunE:  runWatch,
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var program *tea.Program
	co := rt.coordinator(rt.cfg.CategoryFilter(), coord.WithPublisher(func(s coord.Snapshot) {
		program.Send(ui.SnapshotUpdated{Snapshot: s})
	}))

	action := func(name string, fn func(context.Context) error) tea.Cmd {
		return func() tea.Msg {
			err := fn(ctx)
			if err != nil {
				logging.Warn("action failed", "action", name, "err", err)
			}
			return ui.ActionDone{Action: name, Err: err}
		}
	}

	app := ui.NewApp(ui.AppConfig{
		Toggle: func(c model.Category) tea.Cmd {
			return action("toggle", func(ctx context.Context) error { return co.ToggleCategory(ctx, c) })
		},
		Clear: func() tea.Cmd {
			return action("clear", co.ClearFilter)
		},
		Refresh: func() tea.Cmd {
			return action("refresh", co.RefreshNow)
		},
		Initial: co.Snapshot(),
		Ring:    rt.ring,
		Logger:  rt.logger,
	})

	program = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	co.Start(ctx)

	// Run UI (blocks until quit)
	_, runErr := program.Run()
	if ctx.Err() != nil {
		// Interrupted by signal; Run reports the context kill as an error.
		runErr = nil
	}
	if runErr != nil {
		logging.Error("error running program", "err", runErr)
	}

	// Graceful shutdown
	cancel()
	co.Wait()
	return runErr
}
