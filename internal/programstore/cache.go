// Package programstore is the in-process half of the program store: a
// compiled-artifact cache keyed by program id, with refcounted retention
// (an entry is evicted the moment nothing is using it, rather than held
// forever) and compilation concurrency bounded by
// max_concurrent_compilations.
package programstore

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/guest"
)

type entry struct {
	module guest.Module
	refs   int
}

type Cache struct {
	engine guest.Engine
	sem    *semaphore.Weighted

	mu      sync.Mutex
	entries map[int64]*entry
}

func NewCache(engine guest.Engine, maxConcurrentCompilations int) *Cache {
	if maxConcurrentCompilations <= 0 {
		maxConcurrentCompilations = 1
	}
	return &Cache{
		engine:  engine,
		sem:     semaphore.NewWeighted(int64(maxConcurrentCompilations)),
		entries: make(map[int64]*entry),
	}
}

// Acquire returns a compiled Module for program, compiling it if no cached
// entry currently has a positive refcount. The returned release func must
// be called exactly once when the caller is done using the module.
func (c *Cache) Acquire(ctx context.Context, program *domain.Program) (guest.Module, func(), error) {
	if m, ok := c.take(program.ID); ok {
		return m, func() { c.release(program.ID) }, nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	compiled, err := c.engine.Compile(ctx, program.Module)
	c.sem.Release(1)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[program.ID]; ok {
		e.refs++
		c.mu.Unlock()
		return e.module, func() { c.release(program.ID) }, nil
	}
	c.entries[program.ID] = &entry{module: compiled, refs: 1}
	c.mu.Unlock()
	return compiled, func() { c.release(program.ID) }, nil
}

func (c *Cache) take(id int64) (guest.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	e.refs++
	return e.module, true
}

func (c *Cache) release(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(c.entries, id)
	}
}
