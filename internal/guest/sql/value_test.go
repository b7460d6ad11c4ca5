package guestsql

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueConstructors(t *testing.T) {
	assert.Equal(t, KindNull, Null().Kind)

	assert.Equal(t, Value{Kind: KindBool, Bool: true}, Bool(true))
	assert.Equal(t, Value{Kind: KindInt32, Int: 7}, Int32(7))
	assert.Equal(t, Value{Kind: KindInt64, Int: -9}, Int64(-9))
	assert.Equal(t, Value{Kind: KindFloat64, Float: 3.5}, Float64(3.5))
	assert.Equal(t, Value{Kind: KindText, Text: "hi"}, Text("hi"))
	assert.Equal(t, Value{Kind: KindBytes, Bytes: []byte("x")}, Bytes([]byte("x")))

	assert.Equal(t, Value{Kind: KindInt8, Int: 3}, Int8(3))
	assert.Equal(t, Value{Kind: KindInt16, Int: -3}, Int16(-3))
	assert.Equal(t, Value{Kind: KindFloat32, Float: 1.5}, Float32(1.5))
	assert.Equal(t, Value{Kind: KindInet, Text: "10.0.0.1"}, Inet("10.0.0.1"))
	assert.Equal(t, Value{Kind: KindEnum, EnumName: "mood", Text: "happy"}, Enum("mood", "happy"))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, Value{Kind: KindTimestamp, Time: ts}, Timestamp(ts))
	assert.Equal(t, Value{Kind: KindTimestamptz, Time: ts}, Timestamptz(ts))

	id := uuid.New()
	assert.Equal(t, Value{Kind: KindUUID, UUID: id}, UUID(id))

	raw := []byte(`{"a":1}`)
	require.Equal(t, KindJSON, JSON(raw).Kind)
	assert.Equal(t, raw, JSON(raw).Bytes)

	arr := Array(KindInt32, []Value{Int32(1), Int32(2)})
	assert.Equal(t, KindArray, arr.Kind)
	assert.Equal(t, KindInt32, arr.Elem)
	assert.Len(t, arr.Items, 2)
}
