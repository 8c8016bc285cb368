package model

import "time"

// Action is the kind of mutation a queue item replays remotely.
type Action string

// Queue actions.
const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionUpdate || a == ActionDelete
}

// QueueItem is one pending outbound mutation.
type QueueItem struct {
	Table     Table
	EntityID  string
	Action    Action
	LastError string
	Seq       int64 // insertion order
	Timestamp int64 // unix millis
	Attempts  int
}

// DeadLetter is a queue item that was removed after exhausting its attempts.
type DeadLetter struct {
	DeadAt time.Time
	Reason string
	QueueItem
}

// Outcome is the result of attempting to sync a single queue item.
type Outcome int

// Sync outcomes. Ghost and Synced are terminal; Failed items stay queued.
const (
	OutcomeSynced Outcome = iota
	OutcomeGhost
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSynced:
		return "synced"
	case OutcomeGhost:
		return "ghost"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Trigger names the event that asked for a sync pass.
type Trigger string

// Sync triggers.
const (
	TriggerEnqueue   Trigger = "enqueue"
	TriggerReconnect Trigger = "reconnect"
	TriggerFocus     Trigger = "focus"
	TriggerManual    Trigger = "manual"
	TriggerInterval  Trigger = "interval"
)

// Change is published whenever a local table is modified.
type Change struct {
	At    time.Time
	Table Table
}
