// Package guestsql is the guest-visible SQL capability: a closed tagged
// union of values bridged onto Postgres's open type system via
// github.com/jackc/pgx/v5/pgtype, rather than exposing `any` and letting
// a guest-visible value silently decode as the wrong variant.
package guestsql

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the closed variant set. New values decode to
// KindUnknown rather than erroring, so an older guest tolerates a host
// that has grown new column types.
type Kind int

const (
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindText
	KindBytes
	KindTimestamp
	KindTimestamptz
	KindUUID
	KindJSON
	KindInet
	KindEnum
	KindArray
)

// Value is the closed guest-visible tagged union. Exactly one payload
// field is meaningful, selected by Kind; KindArray additionally uses Elem
// and Items.
type Value struct {
	Kind Kind

	Bool     bool
	Int      int64
	Float    float64
	Text     string
	Bytes    []byte
	Time     time.Time
	UUID     uuid.UUID
	EnumName string

	// Elem is the element Kind for KindArray; Items holds its elements.
	Elem  Kind
	Items []Value
}

func Null() Value                   { return Value{Kind: KindNull} }
func Bool(v bool) Value             { return Value{Kind: KindBool, Bool: v} }
func Int8(v int8) Value             { return Value{Kind: KindInt8, Int: int64(v)} }
func Int16(v int16) Value           { return Value{Kind: KindInt16, Int: int64(v)} }
func Int32(v int32) Value           { return Value{Kind: KindInt32, Int: int64(v)} }
func Int64(v int64) Value           { return Value{Kind: KindInt64, Int: v} }
func Float32(v float32) Value       { return Value{Kind: KindFloat32, Float: float64(v)} }
func Float64(v float64) Value       { return Value{Kind: KindFloat64, Float: v} }
func Text(v string) Value           { return Value{Kind: KindText, Text: v} }
func Bytes(v []byte) Value          { return Value{Kind: KindBytes, Bytes: v} }
func Timestamp(v time.Time) Value   { return Value{Kind: KindTimestamp, Time: v} }
func Timestamptz(v time.Time) Value { return Value{Kind: KindTimestamptz, Time: v} }
func UUID(v uuid.UUID) Value        { return Value{Kind: KindUUID, UUID: v} }
func JSON(raw []byte) Value         { return Value{Kind: KindJSON, Bytes: raw} }
func Inet(v string) Value           { return Value{Kind: KindInet, Text: v} }

// Enum builds an opaque enum-by-name value: typeName is the Postgres enum
// type, value is the member name. The host never interprets either beyond
// round-tripping them.
func Enum(typeName, value string) Value {
	return Value{Kind: KindEnum, EnumName: typeName, Text: value}
}

func Array(elem Kind, items []Value) Value {
	return Value{Kind: KindArray, Elem: elem, Items: items}
}
