package client

import (
	"context"
	"time"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/platform/dbctx"
)

// waitPollInterval is the fallback tick used whenever a Task method is
// waiting on a DB-visible change but either missed the NOTIFY or is
// watching something (plain event appends) the trigger set in
// 0001_init.sql doesn't broadcast its own channel for.
const waitPollInterval = 500 * time.Millisecond

type Task struct {
	client *Client
	id     int64
}

func (t *Task) ID() int64 { return t.id }

func (t *Task) Get(ctx context.Context) (*domain.Task, error) {
	return t.client.engine.Tasks.Get(dbctx.Context{Ctx: ctx}, t.id)
}

func (t *Task) Events(ctx context.Context, from int64) ([]domain.Event, error) {
	return t.client.events.ListFrom(dbctx.Context{Ctx: ctx}, t.id, from)
}

func (t *Task) Logs(ctx context.Context, from int64) ([]domain.LogEntry, error) {
	return t.client.logs.ListFrom(dbctx.Context{Ctx: ctx}, t.id, from)
}

// Wait blocks until the task reaches complete or failed, or ctx is
// cancelled.
func (t *Task) Wait(ctx context.Context) (*domain.Task, error) {
	woken, unsub := t.client.listener.Subscribe(eventsource.ChannelTaskComplete)
	defer unsub()
	for {
		task, err := t.Get(ctx)
		if err != nil {
			return nil, err
		}
		if task.State == domain.TaskComplete || task.State == domain.TaskFailed {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-woken:
		case <-time.After(waitPollInterval):
		}
	}
}

// FollowEvents streams events from `from` onward, live, until ctx is
// cancelled or the task reaches a terminal state (after which the final
// batch is delivered and the channel is closed).
func (t *Task) FollowEvents(ctx context.Context, from int64) <-chan domain.Event {
	out := make(chan domain.Event, 32)
	go func() {
		defer close(out)
		next := from
		for {
			// The state is read before the batch, so a batch fetched after a
			// terminal state was seen holds every event the task wrote.
			task, terr := t.Get(ctx)
			events, err := t.Events(ctx, next)
			if err == nil {
				for _, e := range events {
					select {
					case out <- e:
					case <-ctx.Done():
						return
					}
					next = e.Index + 1
				}
			}
			if terr == nil && err == nil && (task.State == domain.TaskComplete || task.State == domain.TaskFailed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(waitPollInterval):
			}
		}
	}()
	return out
}

// FollowLogs streams log lines from `from` onward the same way
// FollowEvents does, waking early on the "log" NOTIFY channel.
func (t *Task) FollowLogs(ctx context.Context, from int64) <-chan domain.LogEntry {
	out := make(chan domain.LogEntry, 32)
	woken, unsub := t.client.listener.Subscribe(eventsource.ChannelLog)
	go func() {
		defer close(out)
		defer unsub()
		next := from
		for {
			task, terr := t.Get(ctx)
			lines, err := t.Logs(ctx, next)
			if err == nil {
				for _, l := range lines {
					select {
					case out <- l:
					case <-ctx.Done():
						return
					}
					next = l.Index + 1
				}
			}
			if terr == nil && err == nil && (task.State == domain.TaskComplete || task.State == domain.TaskFailed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-woken:
			case <-time.After(waitPollInterval):
			}
		}
	}()
	return out
}
