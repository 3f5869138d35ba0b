package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/nexttogo/internal/coord"
	"github.com/abelbrown/nexttogo/internal/model"
	"github.com/abelbrown/nexttogo/internal/otel"
)

// AppConfig wires the App to the coordinator. Every action returns a Cmd
// that runs the cycle and reports back with ActionDone.
type AppConfig struct {
	Toggle  func(model.Category) tea.Cmd
	Clear   func() tea.Cmd
	Refresh func() tea.Cmd

	Initial coord.Snapshot
	Ring    *otel.RingBuffer // optional: enables the debug overlay
	Logger  *otel.Logger     // optional: receives trace events when NEXTTOGO_TRACE is set
	Now     func() time.Time
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the coordinator. It receives snapshots via messages.
type App struct {
	cfg     AppConfig
	snap    coord.Snapshot
	spinner spinner.Model
	now     time.Time

	width        int
	height       int
	ready        bool
	busy         bool
	debugVisible bool
}

// NewApp creates a new App.
func NewApp(cfg AppConfig) App {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(colorHighlight)
	return App{
		cfg:     cfg,
		snap:    cfg.Initial,
		spinner: sp,
		now:     cfg.Now(),
	}
}

// Init starts the countdown clock and the spinner.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTick(t)
	})
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.cfg.Logger != nil && otel.TraceEnabled() {
		a.cfg.Logger.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case SnapshotUpdated:
		a.snap = msg.Snapshot
		a.now = a.cfg.Now()
		return a, nil

	case ActionDone:
		a.busy = false
		return a, nil

	case clockTick:
		a.now = a.cfg.Now()
		return a, tickCmd()

	case spinner.TickMsg:
		if !a.spinning() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a App) spinning() bool {
	return a.busy || a.snap.State == coord.StateInitializing
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "?":
		a.debugVisible = !a.debugVisible
		return a, nil

	case "1", "2", "3":
		idx := int(msg.String()[0] - '1')
		return a.run(a.cfg.Toggle != nil, func() tea.Cmd { return a.cfg.Toggle(model.AllCategories[idx]) })

	case "0":
		return a.run(a.cfg.Clear != nil, func() tea.Cmd { return a.cfg.Clear() })

	case "r":
		return a.run(a.cfg.Refresh != nil, func() tea.Cmd { return a.cfg.Refresh() })
	}

	return a, nil
}

// run marks the app busy and starts an action. Actions are ignored while
// one is in flight; the coordinator would serialize them anyway.
func (a App) run(wired bool, action func() tea.Cmd) (tea.Model, tea.Cmd) {
	if !wired || a.busy {
		return a, nil
	}
	a.busy = true
	return a, tea.Batch(action(), a.spinner.Tick)
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		return debugOverlay(a.cfg.Ring, a.width, a.height) + "\n" + debugStatusBar(a.width)
	}

	header := RenderHeader(a.snap, a.width)

	var body string
	if a.snap.State == coord.StateInitializing && len(a.snap.Races) == 0 {
		body = "\n  " + a.spinner.View() + " Fetching next races..."
	} else {
		body = RenderList(a.snap.Races, a.now, a.width)
	}

	// Fill so the status bar sits on the last line.
	used := lipgloss.Height(header) + lipgloss.Height(body) + 1
	errBar := RenderError(a.snap, a.width)
	if errBar != "" {
		used += lipgloss.Height(errBar)
	}
	pad := ""
	for i := used; i < a.height; i++ {
		pad += "\n"
	}

	status := RenderStatusBar(a.snap, a.busy, a.width)

	out := header + "\n" + body + pad
	if errBar != "" {
		out += "\n" + errBar
	}
	return out + "\n" + status
}

// Snapshot returns the last snapshot received (for testing).
func (a App) Snapshot() coord.Snapshot {
	return a.snap
}

// Busy reports whether an action is in flight (for testing).
func (a App) Busy() bool {
	return a.busy
}
