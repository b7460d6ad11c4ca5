// Package client is the embeddable Go client library: Client is the entry
// point for program registration and task launch; Task is a handle for
// observing one task's progress. Both the gin HTTP surface in
// internal/httpapi and direct in-process/test callers sit on top of this
// same package, one service layer wired under two front ends.
package client

import (
	"context"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/store"
)

type Client struct {
	engine   *engine.Engine
	events   store.EventStore
	logs     store.LogStore
	listener *eventsource.Listener
}

func New(eng *engine.Engine, events store.EventStore, logs store.LogStore, listener *eventsource.Listener) *Client {
	return &Client{engine: eng, events: events, logs: logs, listener: listener}
}

// RegisterProgram registers a bytecode module, idempotent on its content
// hash.
func (c *Client) RegisterProgram(ctx context.Context, name string, module []byte) (*domain.Program, error) {
	return c.engine.Programs.Register(dbctx.Context{Ctx: ctx}, name, module)
}

// LaunchTask starts a new task running programID. module is optional: pass
// the registered program's bytecode to let the launch transparently
// re-register and retry if programID has since been GC'd out from under
// the caller; pass nil if the caller has no copy of the module handy, in
// which case a stale programID simply fails the launch.
func (c *Client) LaunchTask(ctx context.Context, name string, programID int64, module, data []byte) (*domain.Task, error) {
	return c.engine.LaunchTask(ctx, name, programID, module, data)
}

// Notify sends an external notification to a task.
func (c *Client) Notify(ctx context.Context, taskID int64, event string, data []byte) (*domain.Notification, error) {
	return c.engine.Notify(ctx, taskID, event, data)
}

// Task returns a handle for observing task id's progress.
func (c *Client) Task(id int64) *Task {
	return &Task{client: c, id: id}
}
