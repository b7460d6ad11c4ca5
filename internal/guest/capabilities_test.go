package guest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/logger"
	"github.com/fluxwork/durable/internal/store"
)

func newTestListener(t *testing.T) *eventsource.Listener {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	return eventsource.New(nil, log)
}

// fakeNotificationStore implements store.NotificationStore in-memory for
// exercising NotifyCapability.Blocking without a database.
type fakeNotificationStore struct {
	pending *domain.Notification
}

func (f *fakeNotificationStore) Insert(dbctx.Context, int64, string, []byte) (*domain.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationStore) Next(dbctx.Context, int64, time.Time) (*domain.Notification, error) {
	return f.pending, nil
}

var _ store.NotificationStore = (*fakeNotificationStore)(nil)

func TestSystemClockReturnsUTC(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
}

func TestSystemEntropyFillsBuffer(t *testing.T) {
	buf := make([]byte, 32)
	n, err := SystemEntropy{}.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
}

func TestNewNotifierAdaptsClosure(t *testing.T) {
	var gotTaskID int64
	var gotEvent string
	var gotData []byte

	notifier := NewNotifier(func(ctx context.Context, taskID int64, event string, data []byte) error {
		gotTaskID, gotEvent, gotData = taskID, event, data
		return nil
	}, &fakeNotificationStore{}, newTestListener(t))

	err := notifier.Notify(context.Background(), 7, "payment-completed", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), gotTaskID)
	assert.Equal(t, "payment-completed", gotEvent)
	assert.Equal(t, []byte("data"), gotData)
}

func TestNotifierBlockingReturnsPendingNotificationImmediately(t *testing.T) {
	notifications := &fakeNotificationStore{pending: &domain.Notification{Event: "wakeup", Data: []byte(`{}`)}}
	notifier := NewNotifier(func(context.Context, int64, string, []byte) error { return nil }, notifications, newTestListener(t))

	event, data, ok, err := notifier.Blocking(context.Background(), 1, time.Now(), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "wakeup", event)
	assert.Equal(t, []byte(`{}`), data)
}

func TestNotifierBlockingTimesOutWithNoNotification(t *testing.T) {
	notifications := &fakeNotificationStore{}
	notifier := NewNotifier(func(context.Context, int64, string, []byte) error { return nil }, notifications, newTestListener(t))

	start := time.Now()
	_, _, ok, err := notifier.Blocking(context.Background(), 1, time.Now(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestUnimplementedEngineReturnsSentinelError(t *testing.T) {
	_, err := UnimplementedEngine{}.Compile(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrSandboxUnconfigured)
}

// fakeLogStore implements store.LogStore in-memory for testing
// StreamCapability's byte-cap enforcement without a database.
type fakeLogStore struct {
	nextIndex int64
	appended  []string
}

func (f *fakeLogStore) Append(dbc dbctx.Context, taskID, index int64, message string) error {
	f.appended = append(f.appended, message)
	return nil
}
func (f *fakeLogStore) NextIndex(dbc dbctx.Context, taskID int64) (int64, error) {
	return f.nextIndex, nil
}
func (f *fakeLogStore) ListFrom(dbc dbctx.Context, taskID int64, from int64) ([]domain.LogEntry, error) {
	return nil, nil
}

var _ store.LogStore = (*fakeLogStore)(nil)

func TestLogStreamTruncatesOversizedMessage(t *testing.T) {
	logs := &fakeLogStore{}
	stream := NewLogStream(logs, 8)

	err := stream.WriteLog(context.Background(), 1, strings.Repeat("x", 9))
	require.NoError(t, err, "writes beyond the cap must succeed, not error")
	assert.Equal(t, []string{strings.Repeat("x", 8)}, logs.appended)
}

func TestLogStreamAppendsWithinLimit(t *testing.T) {
	logs := &fakeLogStore{}
	stream := NewLogStream(logs, 8)

	err := stream.WriteLog(context.Background(), 1, "short")
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, logs.appended)
}

func TestLogStreamTracksCumulativeBytesAcrossWrites(t *testing.T) {
	logs := &fakeLogStore{}
	stream := NewLogStream(logs, 8)

	require.NoError(t, stream.WriteLog(context.Background(), 1, "1234"))
	require.NoError(t, stream.WriteLog(context.Background(), 1, "5678"))
	// The cap (8 bytes) is already spent; this write contributes nothing.
	require.NoError(t, stream.WriteLog(context.Background(), 1, "9999"))

	assert.Equal(t, []string{"1234", "5678"}, logs.appended)
}
