package model

import "time"

// UnmappedComponent is a queue entry awaiting an article number decision.
type UnmappedComponent struct {
	EnqueuedAt  time.Time
	ClaimedAt   *time.Time
	Description string
	ContextID   string
	ID          int64
}

// PendingMapping is a claimed queue entry paired with the model's proposal.
type PendingMapping struct {
	Prediction Prediction
	Entry      UnmappedComponent
	Remaining  int
}
