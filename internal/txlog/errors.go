package txlog

import "fmt"

// DeterminismError is raised when a replaying guest enters a label that
// does not match what was recorded at the same index. This is fatal: the
// task fails and the mismatch is recorded as the system event at index -1.
type DeterminismError struct {
	TaskID        int64
	Index         int64
	RecordedLabel string
	ObservedLabel string
}

func (e *DeterminismError) Error() string {
	return fmt.Sprintf(
		"non-deterministic replay: task %d index %d recorded label %q but observed %q",
		e.TaskID, e.Index, e.RecordedLabel, e.ObservedLabel,
	)
}

// PreconditionError marks a guest bug: entering a transaction while already
// in one, or calling an impure operation outside of one. Fatal for the task.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "host precondition violation: " + e.Reason }

// EventCapError fires when a task would exceed max_workflow_events.
type EventCapError struct {
	TaskID int64
	Cap    int32
}

func (e *EventCapError) Error() string {
	return fmt.Sprintf("task %d exceeded max_workflow_events (%d)", e.TaskID, e.Cap)
}

// OwnershipLostError is not surfaced to the guest; the driver treats it as
// a silent local abort (see driver.Run in internal/driver/driver.go).
type OwnershipLostError struct {
	TaskID int64
}

func (e *OwnershipLostError) Error() string {
	return fmt.Sprintf("task %d: ownership lost, aborting locally", e.TaskID)
}
