package schtask

import (
	"fmt"
	"strings"
	"time"
)

// Frequency describes how often a scheduled task fires.
type Frequency string

const (
	FrequencyOnce   Frequency = "Once"
	FrequencyDaily  Frequency = "Daily"
	FrequencyWeekly Frequency = "Weekly"
)

// ParseFrequency normalizes a textual frequency into one of the supported values.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "once":
		return FrequencyOnce, nil
	case "daily", "":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	default:
		return "", fmt.Errorf("%w: frequency must be Once, Daily or Weekly, got %q", ErrMalformedInput, value)
	}
}

// TimeOfDay is a wall-clock time in 24h hours and minutes.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h, single-digit hour accepted).
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day must be HH:MM (24h), got %q", ErrMalformedInput, value)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// TaskSpec is the caller's declarative description of one scheduled task.
// It is transient: built per operation and never persisted by this package.
type TaskSpec struct {
	Name       string
	Executable string
	Script     string
	Args       []string

	Frequency Frequency
	At        TimeOfDay
	// OnDate is consulted only when Frequency is Once; nil means today.
	OnDate *time.Time
	// OnDays is consulted only when Frequency is Weekly; empty means the
	// current weekday. Day names follow time.Weekday (Monday..Sunday).
	OnDays []string

	Description   string
	RunAsUser     string
	RunAsPassword string
	Overwrite     bool
}

// Validate rejects specs that can be detected as broken before any
// scheduler invocation is attempted.
func (s *TaskSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: task name is required", ErrMalformedInput)
	}
	switch s.Frequency {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly:
	default:
		return fmt.Errorf("%w: frequency must be Once, Daily or Weekly, got %q", ErrMalformedInput, string(s.Frequency))
	}
	return nil
}

// Task status labels. Unrecognized host values pass through verbatim, so
// Status stays a plain string on TaskRecord.
const (
	StatusReady    = "Ready"
	StatusRunning  = "Running"
	StatusDisabled = "Disabled"
	StatusQueued   = "Queued"
	StatusUnknown  = "Unknown"
)

// ActionRecord is one executable action of an existing task.
type ActionRecord struct {
	Command          string
	Arguments        string
	WorkingDirectory string
}

// TriggerKind tags the trigger variants the interpreter understands.
type TriggerKind int

const (
	TriggerOnce TriggerKind = iota
	TriggerDaily
	TriggerWeekly
	TriggerOther
)

// Trigger is one decoded trigger sub-record of an existing task.
type Trigger struct {
	Kind TriggerKind
	// RawType is the host's trigger node name, kept for the Other fallback.
	RawType       string
	StartBoundary string
	DaysOfWeek    []string
}

// TaskRecord is a point-in-time, read-only projection of one existing task.
type TaskRecord struct {
	Name          string
	Description   string
	Author        string
	Status        string
	LastRunResult string
	NextRunTime   *time.Time
	LastRunTime   *time.Time
	Created       string
	// Triggers holds one human-readable summary per trigger, in host order.
	Triggers []string
	Actions  []ActionRecord
}

// TriggerSummary joins the per-trigger summaries for display.
func (r *TaskRecord) TriggerSummary() string {
	return strings.Join(r.Triggers, "; ")
}
