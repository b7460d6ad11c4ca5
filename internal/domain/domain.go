// Package domain holds the persisted entities of a task execution system:
// wasm (program), worker, task, event, notification, and log. These are
// GORM models; hard deletes only (no soft-delete column) since GC and
// worker-eviction rely on rows actually disappearing so that foreign key
// cascades fire.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Program is a registered bytecode module, content-addressed by Hash.
type Program struct {
	ID       int64     `gorm:"primaryKey" json:"id"`
	Hash     []byte    `gorm:"uniqueIndex;not null" json:"hash"`
	Name     string    `gorm:"not null" json:"name"`
	Module   []byte    `gorm:"not null" json:"-"`
	LastUsed time.Time `gorm:"not null;index" json:"last_used"`
}

func (Program) TableName() string { return "wasm" }

// Worker is a live runtime instance. Its row is the unit the task table's
// running_on foreign key points at; deleting it is what returns that
// worker's tasks to the unassigned pool.
type Worker struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	LastHeartbeat time.Time `gorm:"not null;index" json:"last_heartbeat"`
}

func (Worker) TableName() string { return "worker" }

// TaskState is the task lifecycle enum: active, then one of suspended,
// complete, or failed.
type TaskState string

const (
	TaskActive    TaskState = "active"
	TaskSuspended TaskState = "suspended"
	TaskComplete  TaskState = "complete"
	TaskFailed    TaskState = "failed"
)

// Task is a workflow instance: a running or terminal guest execution with
// its own event log.
type Task struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	ProgramID   *int64         `gorm:"column:program_id;index" json:"program_id,omitempty"`
	Data        datatypes.JSON `gorm:"column:data" json:"data"`
	State       TaskState      `gorm:"column:state;not null;index" json:"state"`
	RunningOn   *int64         `gorm:"column:running_on;index" json:"running_on,omitempty"`
	WakeupAt    *time.Time     `gorm:"column:wakeup_at;index" json:"wakeup_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string { return "task" }

// Event is one entry in a task's ordered, replayable log. Index is
// monotone starting at 0; negative indices are reserved for host-recorded
// system metadata such as a failure cause at index -1.
type Event struct {
	TaskID int64          `gorm:"primaryKey;column:task_id" json:"task_id"`
	Index  int64          `gorm:"primaryKey;column:index" json:"index"`
	Label  string         `gorm:"column:label;not null" json:"label"`
	Value  datatypes.JSON `gorm:"column:value" json:"value"`
}

func (Event) TableName() string { return "event" }

// SystemEventIndex is the reserved index for a host-recorded failure cause.
const SystemEventIndex int64 = -1

// Notification is an external message for a task, consumed exactly once by
// the guest's notification-read operation.
type Notification struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	TaskID    int64          `gorm:"column:task_id;not null;index" json:"task_id"`
	Event     string         `gorm:"column:event;not null" json:"event"`
	Data      datatypes.JSON `gorm:"column:data" json:"data"`
	CreatedAt time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (Notification) TableName() string { return "notification" }

// LogEntry is a per-task textual output line, write-only append from the
// guest and read-only for clients.
type LogEntry struct {
	TaskID  int64  `gorm:"primaryKey;column:task_id" json:"task_id"`
	Index   int64  `gorm:"primaryKey;column:index" json:"index"`
	Message string `gorm:"column:message;not null" json:"message"`
}

func (LogEntry) TableName() string { return "log" }
