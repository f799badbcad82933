package tui

import (
	"github.com/Veraticus/artmap/internal/model"
)

// pendingLoadedMsg carries the next claimed queue entry.
type pendingLoadedMsg struct {
	pending model.PendingMapping
}

// queueEmptyMsg reports that no open entry is left.
type queueEmptyMsg struct{}

// decidedMsg reports a stored decision.
type decidedMsg struct {
	status string
}

// errorMsg reports a failed operation.
// A fatal error ends the session.
type errorMsg struct {
	err   error
	fatal bool
}
