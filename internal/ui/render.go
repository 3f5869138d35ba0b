package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/nexttogo/internal/coord"
	"github.com/abelbrown/nexttogo/internal/model"
)

// soonThreshold switches the countdown to the warning colour.
const soonThreshold = 2 * time.Minute

// FormatCountdown renders time to start: "45s", "1m 05s", "2h 03m", or
// "-30s" once the race has started.
func FormatCountdown(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		return fmt.Sprintf("-%ds", -secs)
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %02ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %02dm", secs/3600, (secs%3600)/60)
	}
}

func countdownStyle(d time.Duration) lipgloss.Style {
	switch {
	case d < 0:
		return CountdownStarted
	case d < soonThreshold:
		return CountdownSoon
	default:
		return Countdown
	}
}

// RenderRace renders a single race row.
func RenderRace(r model.Race, now time.Time, width int) string {
	d := r.AdvertisedStart.Sub(now)
	cd := countdownStyle(d).Render(fmt.Sprintf("%8s", FormatCountdown(d)))
	cat := CategoryBadge.Render(fmt.Sprintf("%-10s", r.Category))
	meeting := Meeting.Render(truncateRunes(r.MeetingName, 22))

	label := fmt.Sprintf("R%d", r.RaceNumber)
	if r.RaceName != "" {
		label += " " + r.RaceName
	}
	line := cd + "  " + cat + "  " + meeting + "  "
	remaining := width - lipgloss.Width(line) - 2
	if remaining > 4 {
		line += RaceLabel.Render(truncateRunes(label, remaining))
	}
	return RaceRow.Render(line)
}

// RenderList renders every race, or a placeholder when there are none.
func RenderList(races []model.Race, now time.Time, width int) string {
	if len(races) == 0 {
		return EmptyStyle.Render("No upcoming races for this filter.")
	}
	rows := make([]string, len(races))
	for i, r := range races {
		rows[i] = RenderRace(r, now, width)
	}
	return strings.Join(rows, "\n")
}

// RenderHeader renders the title and filter chips.
func RenderHeader(snap coord.Snapshot, width int) string {
	var b strings.Builder
	b.WriteString(Title.Render("Next To Go"))
	b.WriteString("  ")
	for i, c := range model.AllCategories {
		chip := fmt.Sprintf("%d %s", i+1, c)
		if snap.Filter.Contains(c) {
			b.WriteString(ChipActive.Render(chip))
		} else {
			b.WriteString(ChipInactive.Render(chip))
		}
	}
	if snap.FromCache {
		b.WriteString(CachedBadge.Render("cached"))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(b.String())
}

// RenderStatusBar renders the key hints and refresh state.
func RenderStatusBar(snap coord.Snapshot, busy bool, width int) string {
	keys := []struct{ key, desc string }{
		{"1-3", "toggle"},
		{"0", "all"},
		{"r", "refresh"},
		{"?", "debug"},
		{"q", "quit"},
	}
	var hints []string
	for _, k := range keys {
		hints = append(hints, StatusBarKey.Render(k.key)+StatusBarText.Render(":"+k.desc))
	}

	state := snap.State.String()
	if busy {
		state = "refreshing"
	} else if !snap.UpdatedAt.IsZero() {
		state = "updated " + snap.UpdatedAt.Format("15:04:05")
	}
	return StatusBar.Width(width).Render(strings.Join(hints, "  ") + "  " + StatusBarText.Render(state))
}

// RenderError renders the refresh failure line for snap, or "".
func RenderError(snap coord.Snapshot, width int) string {
	if snap.Err == nil {
		return ""
	}
	msg := "Refresh failed"
	if kind, ok := snap.ErrKind(); ok {
		msg += " (" + kind.String() + ")"
	}
	if len(snap.Races) > 0 {
		msg += ", showing last good list"
	}
	return ErrorStyle.Width(width).Render(msg)
}

// truncateRunes shortens s to at most n runes, marking the cut with "…".
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
