// Package eventsource bridges Postgres LISTEN/NOTIFY (wired by the four
// triggers in internal/db/migrations/0001_init.sql) into an in-process
// fan-out bus backed directly by jackc/pgx/v5: a dedicated pool connection
// holds the LISTEN session, and WaitForNotification results are broadcast
// to any number of in-process subscribers.
package eventsource

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluxwork/durable/internal/platform/logger"
)

// Channel names, matching the pg_notify() calls in 0001_init.sql.
const (
	ChannelTaskInserted         = "task-inserted"
	ChannelNotificationInserted = "notification-inserted"
	ChannelTaskComplete         = "task-complete"
	ChannelLog                  = "log"
)

var channels = []string{ChannelTaskInserted, ChannelNotificationInserted, ChannelTaskComplete, ChannelLog}

// reconnectDelay is how long Start waits before re-acquiring the LISTEN
// connection after it drops.
const reconnectDelay = 2 * time.Second

type subscriber struct {
	id int
	ch chan int64
}

// Listener holds the dedicated LISTEN connection and fans out payloads to
// per-channel subscriber sets. Payloads are always a task id.
type Listener struct {
	pool *pgxpool.Pool
	log  *logger.Logger

	mu       sync.Mutex
	subs     map[string]map[int]subscriber
	nextSubID int
}

func New(pool *pgxpool.Pool, log *logger.Logger) *Listener {
	subs := make(map[string]map[int]subscriber, len(channels))
	for _, c := range channels {
		subs[c] = make(map[int]subscriber)
	}
	return &Listener{pool: pool, log: log.With("service", "eventsource.Listener"), subs: subs}
}

// Subscribe registers interest in one channel and returns a buffered
// receive channel of task ids plus an unsubscribe func. Slow subscribers
// drop notifications rather than block the dispatch loop; subscribers that
// need a guaranteed read should poll the store as a fallback (the client
// and httpapi packages do this for their "follow" mode).
func (l *Listener) Subscribe(channel string) (<-chan int64, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSubID
	l.nextSubID++
	ch := make(chan int64, 16)
	l.subs[channel][id] = subscriber{id: id, ch: ch}
	unsub := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if s, ok := l.subs[channel][id]; ok {
			close(s.ch)
			delete(l.subs[channel], id)
		}
	}
	return ch, unsub
}

func (l *Listener) broadcast(channel string, taskID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.subs[channel] {
		select {
		case s.ch <- taskID:
		default:
		}
	}
}

// Start runs the LISTEN loop until ctx is cancelled, reconnecting on any
// connection error after reconnectDelay. It blocks; callers run it in its
// own goroutine.
func (l *Listener) Start(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := l.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn("listen connection lost, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
		}
	}
}

func (l *Listener) run(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, c := range channels {
		if _, err := conn.Exec(ctx, `LISTEN "`+c+`"`); err != nil {
			return err
		}
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		taskID, parseErr := strconv.ParseInt(n.Payload, 10, 64)
		if parseErr != nil {
			l.log.Warn("non-numeric notify payload", "channel", n.Channel, "payload", n.Payload)
			continue
		}
		l.broadcast(n.Channel, taskID)
	}
}
