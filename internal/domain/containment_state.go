package domain

import "time"

// ContainmentState is the process-wide escalation state
type ContainmentState int

const (
	StateIdle ContainmentState = iota
	StateTriggered
)

// String returns human-readable state name
func (s ContainmentState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTriggered:
		return "TRIGGERED"
	default:
		return "UNKNOWN"
	}
}

// ContainmentAction names a response action
type ContainmentAction string

const (
	ActionIsolateNetwork ContainmentAction = "ISOLATE_NETWORK"
	ActionKillProcess    ContainmentAction = "KILL_PROCESS"
	ActionShutdown       ContainmentAction = "SHUTDOWN_SYSTEM"
)

// ActionRecord is what the containment controller reports for every action it handles.
// Simulated is true whenever nothing was done to the host.
type ActionRecord struct {
	Action    ContainmentAction `json:"action"`
	PID       int               `json:"pid,omitempty"`
	SafeMode  bool              `json:"safe_mode"`
	Simulated bool              `json:"simulated"`
	Outcome   string            `json:"outcome"`
	Timestamp time.Time         `json:"timestamp"`
}
