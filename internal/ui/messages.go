// Package ui provides the Bubble Tea TUI for nexttogo.
package ui

import (
	"time"

	"github.com/abelbrown/nexttogo/internal/coord"
)

// SnapshotUpdated is sent whenever the coordinator publishes a change.
type SnapshotUpdated struct {
	Snapshot coord.Snapshot
}

// ActionDone is sent when a filter change or manual refresh finishes.
type ActionDone struct {
	Action string
	Err    error
}

// clockTick re-renders countdowns once a second.
type clockTick time.Time
