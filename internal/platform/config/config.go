// Package config centralizes the tunables that govern worker and runtime
// behavior. Every field has a documented default and is overridable by
// environment variable.
package config

import (
	"time"

	"github.com/fluxwork/durable/internal/platform/envutil"
)

// Config holds every runtime and worker tunable, one field per knob.
type Config struct {
	// HeartbeatInterval is the period with which a worker updates its
	// last_heartbeat timestamp. Actual updates are jittered downward by up
	// to 25% to avoid thundering herds on the database.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how stale last_heartbeat can get before a worker
	// is presumed dead and evicted.
	HeartbeatTimeout time.Duration
	// WasmEntryTTL is how long a program can go unused before it becomes
	// eligible for GC. Must be at least 2h.
	WasmEntryTTL time.Duration
	// MaxHTTPTimeout clamps guest-requested HTTP fetch timeouts.
	MaxHTTPTimeout time.Duration
	// MaxWorkflowEvents caps the number of events a single task may emit.
	MaxWorkflowEvents int32
	// MaxLogBytesPerTransaction caps bytes written to the log table per
	// transaction; excess bytes are silently dropped.
	MaxLogBytesPerTransaction int
	// MaxReturnedBufferLen caps any buffer size the guest can direct the
	// host to allocate on its behalf.
	MaxReturnedBufferLen int
	// SuspendTimeout is the longest a task will wait in-process on a timer
	// before being offloaded to the suspended state. Notification waits are
	// not bounded by it: a blocking notification wait runs in-process for
	// its whole timeout.
	SuspendTimeout time.Duration
	// SuspendMargin is how long before a timed wakeup the sweeper resumes a
	// suspended task, giving it time to replay up to the suspension point.
	SuspendMargin time.Duration
	// MaxTasks bounds the number of tasks a single worker will run at once.
	MaxTasks int
	// MaxConcurrentCompilations bounds concurrent module compilation.
	MaxConcurrentCompilations int
	// DebugEmitTaskLogs is loaded from DEBUG_EMIT_TASK_LOGS; no component
	// reads it, so setting it does not print task log lines anywhere.
	DebugEmitTaskLogs bool
}

// Default returns the documented production defaults.
func Default() Config {
	return Config{
		HeartbeatInterval:         30 * time.Second,
		HeartbeatTimeout:          120 * time.Second,
		WasmEntryTTL:              24 * time.Hour,
		MaxHTTPTimeout:            60 * time.Second,
		MaxWorkflowEvents:         1<<31 - 1,
		MaxLogBytesPerTransaction: 128 * 1024,
		MaxReturnedBufferLen:      8 * 1024 * 1024,
		SuspendTimeout:            60 * time.Second,
		SuspendMargin:             10 * time.Second,
		MaxTasks:                  2000,
		MaxConcurrentCompilations: 4,
		DebugEmitTaskLogs:         false,
	}
}

// LoadFromEnv overlays environment variables (upper-cased field names,
// e.g. HEARTBEAT_INTERVAL) on top of Default().
func LoadFromEnv() Config {
	c := Default()
	c.HeartbeatInterval = envutil.Seconds("HEARTBEAT_INTERVAL", int(c.HeartbeatInterval/time.Second))
	c.HeartbeatTimeout = envutil.Seconds("HEARTBEAT_TIMEOUT", int(c.HeartbeatTimeout/time.Second))
	c.WasmEntryTTL = envutil.Seconds("WASM_ENTRY_TTL", int(c.WasmEntryTTL/time.Second))
	if c.WasmEntryTTL < 2*time.Hour {
		c.WasmEntryTTL = 2 * time.Hour
	}
	c.MaxHTTPTimeout = envutil.Seconds("MAX_HTTP_TIMEOUT", int(c.MaxHTTPTimeout/time.Second))
	c.MaxWorkflowEvents = int32(envutil.Int("MAX_WORKFLOW_EVENTS", int(c.MaxWorkflowEvents)))
	c.MaxLogBytesPerTransaction = envutil.Int("MAX_LOG_BYTES_PER_TRANSACTION", c.MaxLogBytesPerTransaction)
	c.MaxReturnedBufferLen = envutil.Int("MAX_RETURNED_BUFFER_LEN", c.MaxReturnedBufferLen)
	c.SuspendTimeout = envutil.Seconds("SUSPEND_TIMEOUT", int(c.SuspendTimeout/time.Second))
	c.SuspendMargin = envutil.Seconds("SUSPEND_MARGIN", int(c.SuspendMargin/time.Second))
	c.MaxTasks = envutil.Int("MAX_TASKS", c.MaxTasks)
	c.MaxConcurrentCompilations = envutil.Int("MAX_CONCURRENT_COMPILATIONS", c.MaxConcurrentCompilations)
	c.DebugEmitTaskLogs = envutil.Bool("DEBUG_EMIT_TASK_LOGS", c.DebugEmitTaskLogs)
	return c
}
