package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/nexttogo/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the debug panel showing cycle stats and recent events.
// Pure function with no side effects. Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Recent(20, otel.LevelInfo)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Cycle Stats"))
	lines = append(lines, fmt.Sprintf("  Cycles:     %d complete, %d errors, %d fallback",
		stats[otel.KindCycleComplete], stats[otel.KindCycleError], stats[otel.KindCycleFallback]))
	lines = append(lines, fmt.Sprintf("  Fetches:    %d complete, %d errors, %d with drops",
		stats[otel.KindFetchComplete], stats[otel.KindFetchError], stats[otel.KindFetchDrop]))
	lines = append(lines, fmt.Sprintf("  Cache:      %d replaced, %d errors",
		stats[otel.KindCacheReplace], stats[otel.KindCacheError]))
	lines = append(lines, fmt.Sprintf("  Filters:    %d changes", stats[otel.KindFilterChange]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		age := time.Since(e.Time)
		ageStr := formatAge(age)

		line := fmt.Sprintf("  %6s  %-16s", ageStr, string(e.Kind))
		if e.Count > 0 {
			line += fmt.Sprintf("  n=%d", e.Count)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		if e.CycleID != "" {
			// ULID random suffix; the time prefix is shared by nearby cycles.
			cid := e.CycleID
			if len(cid) > 6 {
				cid = cid[len(cid)-6:]
			}
			line += fmt.Sprintf("  cyc:%s", cid)
		}
		lines = append(lines, line)
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 76
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	content := strings.Join(lines, "\n")
	return DebugPanel.Width(panelWidth).Render(content)
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("?") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
