package eventsource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/durable/internal/platform/logger"
)

func newTestListener(t *testing.T) *Listener {
	t.Helper()
	log, err := logger.New("development")
	require.NoError(t, err)
	return New(nil, log)
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	l := newTestListener(t)
	ch, unsub := l.Subscribe(ChannelTaskInserted)
	defer unsub()

	l.broadcast(ChannelTaskInserted, 123)

	select {
	case id := <-ch:
		assert.Equal(t, int64(123), id)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast value")
	}
}

func TestBroadcastOnlyReachesItsOwnChannel(t *testing.T) {
	l := newTestListener(t)
	inserted, unsubInserted := l.Subscribe(ChannelTaskInserted)
	defer unsubInserted()
	complete, unsubComplete := l.Subscribe(ChannelTaskComplete)
	defer unsubComplete()

	l.broadcast(ChannelTaskComplete, 9)

	select {
	case id := <-complete:
		assert.Equal(t, int64(9), id)
	case <-time.After(time.Second):
		t.Fatal("expected a value on the task-complete subscriber")
	}

	select {
	case <-inserted:
		t.Fatal("task-inserted subscriber should not have received a task-complete broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastIsLossyOnFullBuffer(t *testing.T) {
	l := newTestListener(t)
	ch, unsub := l.Subscribe(ChannelLog)
	defer unsub()

	// The subscriber channel is buffered to 16; overflow must not block.
	for i := 0; i < 64; i++ {
		l.broadcast(ChannelLog, int64(i))
	}

	assert.LessOrEqual(t, len(ch), cap(ch))
}

func TestUnsubscribeStopsDeliveryAndClosesChannel(t *testing.T) {
	l := newTestListener(t)
	ch, unsub := l.Subscribe(ChannelNotificationInserted)
	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Broadcasting after unsubscribe must not panic even though the
	// subscriber entry is gone.
	l.broadcast(ChannelNotificationInserted, 1)
}
