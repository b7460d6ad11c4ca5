package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStringFallsBackToDefaultWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", String("DURABLE_TEST_UNSET_STRING", "fallback"))
}

func TestStringReturnsSetValue(t *testing.T) {
	t.Setenv("DURABLE_TEST_STRING", "value")
	assert.Equal(t, "value", String("DURABLE_TEST_STRING", "fallback"))
}

func TestIntFallsBackOnUnparsableValue(t *testing.T) {
	t.Setenv("DURABLE_TEST_INT", "not-a-number")
	assert.Equal(t, 42, Int("DURABLE_TEST_INT", 42))
}

func TestIntParsesSetValue(t *testing.T) {
	t.Setenv("DURABLE_TEST_INT_2", "7")
	assert.Equal(t, 7, Int("DURABLE_TEST_INT_2", 0))
}

func TestBoolRecognizesTruthyForms(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes"} {
		t.Setenv("DURABLE_TEST_BOOL", v)
		assert.True(t, Bool("DURABLE_TEST_BOOL", false), "expected %q to be truthy", v)
	}
}

func TestBoolFallsBackWhenUnset(t *testing.T) {
	assert.False(t, Bool("DURABLE_TEST_UNSET_BOOL", false))
	assert.True(t, Bool("DURABLE_TEST_UNSET_BOOL_2", true))
}

func TestSecondsConvertsToDuration(t *testing.T) {
	t.Setenv("DURABLE_TEST_SECONDS", "5")
	assert.Equal(t, 5*time.Second, Seconds("DURABLE_TEST_SECONDS", 1))
}
