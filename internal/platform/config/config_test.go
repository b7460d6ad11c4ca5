package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	c := Default()
	assert.Equal(t, 30*time.Second, c.HeartbeatInterval)
	assert.Equal(t, 120*time.Second, c.HeartbeatTimeout)
	assert.Equal(t, 24*time.Hour, c.WasmEntryTTL)
	assert.Equal(t, 60*time.Second, c.MaxHTTPTimeout)
	assert.Equal(t, 128*1024, c.MaxLogBytesPerTransaction)
	assert.Equal(t, 60*time.Second, c.SuspendTimeout)
	assert.Equal(t, 10*time.Second, c.SuspendMargin)
	assert.Equal(t, 2000, c.MaxTasks)
	assert.Equal(t, 4, c.MaxConcurrentCompilations)
}

func TestLoadFromEnvOverridesAndEnforcesWasmTTLFloor(t *testing.T) {
	t.Setenv("MAX_TASKS", "10")
	t.Setenv("WASM_ENTRY_TTL", "60") // seconds; below the 2h floor

	c := LoadFromEnv()
	assert.Equal(t, 10, c.MaxTasks)
	assert.Equal(t, 2*time.Hour, c.WasmEntryTTL, "wasm_entry_ttl must be floored at 2h regardless of a lower override")

	os.Unsetenv("MAX_TASKS")
	os.Unsetenv("WASM_ENTRY_TTL")
}
