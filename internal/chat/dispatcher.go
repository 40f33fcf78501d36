package chat

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
)

// HandlerFunc processes one inbound message.
type HandlerFunc func(ctx context.Context, msg InboundMessage)

// Dispatcher runs one handler invocation per inbound message. Messages that
// share a session key are handled strictly in arrival order; messages for
// different keys run concurrently.
type Dispatcher struct {
	handle HandlerFunc

	mu     sync.Mutex
	queues map[string][]InboundMessage
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher that calls handle for every message.
func NewDispatcher(handle HandlerFunc) *Dispatcher {
	return &Dispatcher{
		handle: handle,
		queues: make(map[string][]InboundMessage),
	}
}

// Submit enqueues msg behind any pending messages for the same key. When
// the key has no drain goroutine running, one is started.
func (d *Dispatcher) Submit(ctx context.Context, msg InboundMessage) {
	key := SessionKey(msg)
	d.mu.Lock()
	pending, running := d.queues[key]
	d.queues[key] = append(pending, msg)
	if !running {
		d.wg.Add(1)
		go d.drain(ctx, key)
	}
	d.mu.Unlock()
}

// drain handles queued messages for key until the queue is empty.
func (d *Dispatcher) drain(ctx context.Context, key string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[key]
		if len(q) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		msg := q[0]
		d.queues[key] = q[1:]
		d.mu.Unlock()

		d.run(ctx, msg)
	}
}

func (d *Dispatcher) run(ctx context.Context, msg InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("chat: dispatcher: panic handling %s: %v\n%s", SessionKey(msg), r, debug.Stack())
		}
	}()
	d.handle(ctx, msg)
}

// Wait blocks until every submitted message has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
