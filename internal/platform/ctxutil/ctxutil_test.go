package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTraceDataRoundTrips(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "abc", TaskID: 9})
	got := GetTraceData(ctx)
	assert.NotNil(t, got)
	assert.Equal(t, "abc", got.TraceID)
	assert.Equal(t, int64(9), got.TaskID)
}

func TestGetTraceDataReturnsNilWhenAbsent(t *testing.T) {
	assert.Nil(t, GetTraceData(context.Background()))
}

func TestWithTraceDataNoOpOnNilInputs(t *testing.T) {
	assert.Nil(t, WithTraceData(nil, &TraceData{}))
	ctx := context.Background()
	assert.Equal(t, ctx, WithTraceData(ctx, nil))
}
