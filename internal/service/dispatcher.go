package service

import (
	"context"
	"fmt"
	"sync"

	"fieldserve/pkg/logger"
)

// Task is an outbound notification produced after a change committed.
type Task struct {
	UserID    uint                   `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	BookingID uint                   `json:"booking_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Sink delivers a task somewhere. Errors are logged and dropped.
type Sink interface {
	Deliver(ctx context.Context, t Task) error
}

type SinkFunc func(ctx context.Context, t Task) error

func (f SinkFunc) Deliver(ctx context.Context, t Task) error { return f(ctx, t) }

// Notifier accepts tasks without blocking the caller.
type Notifier interface {
	Enqueue(t Task)
}

// Dispatcher fans tasks out to its sinks from a single worker goroutine.
type Dispatcher struct {
	queue chan Task
	log   logger.ILogger

	mu    sync.RWMutex
	sinks map[string]Sink
}

func NewDispatcher(size int, log logger.ILogger) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	return &Dispatcher{
		queue: make(chan Task, size),
		log:   log,
		sinks: make(map[string]Sink),
	}
}

func (d *Dispatcher) AddSink(name string, s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks[name] = s
}

// Enqueue never blocks. A full queue drops the task.
func (d *Dispatcher) Enqueue(t Task) {
	select {
	case d.queue <- t:
	default:
		d.log.Warning("notification queue full, dropping task",
			logger.Uint("user_id", t.UserID), logger.String("type", t.Type))
	}
}

// Run delivers tasks until ctx is cancelled, then flushes what is already queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case t := <-d.queue:
			d.deliver(ctx, t)
		case <-ctx.Done():
			d.flush()
			return
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case t := <-d.queue:
			d.deliver(context.Background(), t)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, t Task) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for name, s := range d.sinks {
		if err := safeDeliver(ctx, s, t); err != nil {
			d.log.Warning("notification sink failed",
				logger.String("sink", name), logger.Uint("user_id", t.UserID),
				logger.String("type", t.Type), logger.Error(err))
		}
	}
}

func safeDeliver(ctx context.Context, s Sink, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.Deliver(ctx, t)
}

// Pending is the number of queued, undelivered tasks.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
