package guestsql

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/fluxwork/durable/internal/guest/sql")

// Capability is the guest-visible SQL operation set: a single statement
// execution and a "type info" lookup, used by a guest to resolve an
// enum's pg type before binding it.
type Capability interface {
	Query(ctx context.Context, statement string, args []Value) (*ResultSet, error)
	TypeInfo(ctx context.Context, typeName string) (*TypeInfo, error)
}

type ResultSet struct {
	Columns []string
	Rows    [][]Value
}

type TypeInfo struct {
	OID  uint32
	Name string
}

// TxProvider returns the database transaction currently held open by an
// is_db=true transaction, or nil if none is held — internal/driver wires
// this to txlog.Transaction.DBTx.
type TxProvider func() *gorm.DB

type capability struct {
	tx           TxProvider
	typeMap      *pgtype.Map
	maxBufferLen int
}

// New builds a Capability bound to tx. maxBufferLen caps the total bytes
// of the result set Query will buffer in memory on the guest's behalf,
// aborting the scan rather than building an unbounded result set for a
// query that returns far more data than expected.
func New(tx TxProvider, maxBufferLen int) Capability {
	return &capability{tx: tx, typeMap: pgtype.NewMap(), maxBufferLen: maxBufferLen}
}

var errNoTransaction = fmt.Errorf("guest sql capability called outside an is_db transaction")

func (c *capability) Query(ctx context.Context, statement string, args []Value) (*ResultSet, error) {
	ctx, span := tracer.Start(ctx, "guest.sql.Query", trace.WithAttributes(attribute.Int("durable.sql.arg_count", len(args))))
	defer span.End()

	tx := c.tx()
	if tx == nil {
		return nil, errNoTransaction
	}

	driverArgs := make([]interface{}, len(args))
	for i, a := range args {
		v, err := c.encode(a)
		if err != nil {
			return nil, fmt.Errorf("bind argument %d: %w", i, err)
		}
		driverArgs[i] = v
	}

	rows, err := tx.WithContext(ctx).Raw(statement, driverArgs...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := &ResultSet{Columns: cols}
	buffered := 0
	for rows.Next() {
		scanned := make([]interface{}, len(cols))
		for i := range scanned {
			scanned[i] = new(interface{})
		}
		if err := rows.Scan(scanned...); err != nil {
			return nil, err
		}
		row := make([]Value, len(cols))
		for i, s := range scanned {
			v := c.decode(colTypes[i].DatabaseTypeName(), *(s.(*interface{})))
			buffered += valueSize(v)
			row[i] = v
		}
		if buffered > c.maxBufferLen {
			return nil, fmt.Errorf("result set exceeds max_returned_buffer_len (%d bytes)", c.maxBufferLen)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// valueSize estimates the guest-visible byte footprint of a decoded Value,
// used to enforce max_returned_buffer_len against the whole result set
// rather than any single column.
func valueSize(v Value) int {
	switch v.Kind {
	case KindText, KindEnum, KindInet:
		return len(v.Text)
	case KindBytes, KindJSON:
		return len(v.Bytes)
	case KindArray:
		size := 0
		for _, it := range v.Items {
			size += valueSize(it)
		}
		return size
	default:
		return 8
	}
}

func (c *capability) TypeInfo(ctx context.Context, typeName string) (*TypeInfo, error) {
	if t, ok := c.typeMap.TypeForName(typeName); ok {
		return &TypeInfo{OID: t.OID, Name: t.Name}, nil
	}
	// Types the map does not know (user-created enums and domains) are
	// resolved through the held transaction with a regtype cast.
	tx := c.tx()
	if tx == nil {
		return nil, fmt.Errorf("unknown postgres type %q", typeName)
	}
	var info TypeInfo
	row := tx.WithContext(ctx).Raw("SELECT oid, typname FROM pg_type WHERE oid = ?::regtype", typeName).Row()
	if err := row.Scan(&info.OID, &info.Name); err != nil {
		return nil, fmt.Errorf("unknown postgres type %q: %w", typeName, err)
	}
	return &info, nil
}

// encode converts a closed guest Value into a driver-bindable Go value.
// Arrays of scalar kinds are passed through as native Go slices, which
// gorm.io/driver/postgres (backed by pgx's stdlib adapter) binds using
// the same pgtype codecs as a direct pgx connection would.
func (c *capability) encode(v Value) (interface{}, error) {
	switch v.Kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.Bool, nil
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.Int, nil
	case KindFloat32, KindFloat64:
		return v.Float, nil
	case KindText, KindEnum:
		return v.Text, nil
	case KindBytes:
		return v.Bytes, nil
	case KindJSON:
		return v.Bytes, nil
	case KindTimestamp, KindTimestamptz:
		return v.Time, nil
	case KindUUID:
		return v.UUID, nil
	case KindInet:
		return v.Text, nil
	case KindArray:
		return c.encodeArray(v)
	default:
		return nil, fmt.Errorf("cannot bind value of unknown kind")
	}
}

func (c *capability) encodeArray(v Value) (interface{}, error) {
	switch v.Elem {
	case KindBool:
		out := make([]bool, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.Bool
		}
		return out, nil
	case KindInt8, KindInt16, KindInt32, KindInt64:
		out := make([]int64, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.Int
		}
		return out, nil
	case KindFloat32, KindFloat64:
		out := make([]float64, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.Float
		}
		return out, nil
	case KindText, KindEnum, KindInet:
		out := make([]string, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.Text
		}
		return out, nil
	case KindUUID:
		out := make([]uuid.UUID, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.UUID
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported array element kind")
	}
}

// decode maps a scanned column back to a closed Value using Postgres's
// reported type name, falling back to KindUnknown for anything the closed
// variant set doesn't cover — this is what lets an older guest tolerate a
// host that has grown new column types. Array types report their name with
// a leading underscore (Postgres's own convention, e.g. "_INT4" for
// integer[]) and are delegated to decodeArray.
func (c *capability) decode(pgTypeName string, raw interface{}) Value {
	if raw == nil {
		return Null()
	}
	if strings.HasPrefix(pgTypeName, "_") {
		return c.decodeArray(strings.TrimPrefix(pgTypeName, "_"), raw)
	}
	switch pgTypeName {
	case "BOOL":
		if b, ok := raw.(bool); ok {
			return Bool(b)
		}
	case "INT2":
		if n, ok := toInt64(raw); ok {
			return Int16(int16(n))
		}
	case "INT4":
		if n, ok := toInt64(raw); ok {
			return Int32(int32(n))
		}
	case "INT8":
		if n, ok := toInt64(raw); ok {
			return Int64(n)
		}
	case "FLOAT4":
		if f, ok := toFloat64(raw); ok {
			return Float32(float32(f))
		}
	case "FLOAT8", "NUMERIC":
		if f, ok := toFloat64(raw); ok {
			return Float64(f)
		}
	case "TEXT", "VARCHAR", "BPCHAR":
		if s, ok := raw.(string); ok {
			return Text(s)
		}
	case "BYTEA":
		if b, ok := raw.([]byte); ok {
			return Bytes(b)
		}
	case "JSON", "JSONB":
		if b, ok := raw.([]byte); ok {
			return JSON(b)
		}
	case "UUID":
		switch u := raw.(type) {
		case string:
			if parsed, err := uuid.Parse(u); err == nil {
				return UUID(parsed)
			}
		case [16]byte:
			return UUID(uuid.UUID(u))
		}
	case "TIMESTAMP":
		if t, ok := raw.(time.Time); ok {
			return Timestamp(t)
		}
	case "TIMESTAMPTZ":
		if t, ok := raw.(time.Time); ok {
			return Timestamptz(t)
		}
	case "INET", "CIDR":
		switch addr := raw.(type) {
		case string:
			return Inet(addr)
		case netip.Prefix:
			return Inet(addr.String())
		case netip.Addr:
			return Inet(addr.String())
		}
	default:
		// An unrecognized type name with a string value is treated as an
		// opaque enum-by-name: the host doesn't need the enum's semantics,
		// just to round-trip its textual value tagged with its pg type.
		if s, ok := raw.(string); ok {
			return Enum(pgTypeName, s)
		}
	}
	return Value{Kind: KindUnknown, Text: fmt.Sprintf("%v", raw)}
}

// decodeArray maps a scanned array column to a KindArray Value. elemType is
// the element's Postgres type name (the array type name with its leading
// underscore stripped).
func (c *capability) decodeArray(elemType string, raw interface{}) Value {
	switch items := raw.(type) {
	case []bool:
		out := make([]Value, len(items))
		for i, b := range items {
			out[i] = Bool(b)
		}
		return Array(KindBool, out)
	case []int16:
		out := make([]Value, len(items))
		for i, n := range items {
			out[i] = Int16(n)
		}
		return Array(KindInt16, out)
	case []int32:
		out := make([]Value, len(items))
		for i, n := range items {
			out[i] = Int32(n)
		}
		return Array(KindInt32, out)
	case []int64:
		out := make([]Value, len(items))
		for i, n := range items {
			out[i] = Int64(n)
		}
		return Array(KindInt64, out)
	case []float32:
		out := make([]Value, len(items))
		for i, f := range items {
			out[i] = Float32(f)
		}
		return Array(KindFloat32, out)
	case []float64:
		out := make([]Value, len(items))
		for i, f := range items {
			out[i] = Float64(f)
		}
		return Array(KindFloat64, out)
	case []string:
		elemKind := KindText
		if elemType == "INET" || elemType == "CIDR" {
			elemKind = KindInet
		}
		out := make([]Value, len(items))
		for i, s := range items {
			if elemKind == KindInet {
				out[i] = Inet(s)
			} else {
				out[i] = Text(s)
			}
		}
		return Array(elemKind, out)
	case []uuid.UUID:
		out := make([]Value, len(items))
		for i, u := range items {
			out[i] = UUID(u)
		}
		return Array(KindUUID, out)
	default:
		return Value{Kind: KindUnknown, Text: fmt.Sprintf("%v", raw)}
	}
}

func toInt64(raw interface{}) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(raw interface{}) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
