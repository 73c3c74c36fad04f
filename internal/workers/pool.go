// Package workers provides a bounded worker pool for membership event
// processing. It replaces per-event goroutine spawning: transports submit
// normalized events into a buffered queue and a fixed number of workers
// hand them to the ingestor. No ordering is guaranteed across events.
package workers

import (
	"context"
	"sync"

	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/tracker"
)

// Handler processes one membership event.
type Handler func(ctx context.Context, event tracker.MemberEvent)

// Task is one membership event queued for processing.
type Task struct {
	ID    string
	Event tracker.MemberEvent
}

// PoolMetrics tracks pool counters.
type PoolMetrics struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksDropped   uint64
}

// EventPool is a fixed-size pool of event workers.
type EventPool struct {
	taskQueue chan Task
	workers   int
	handler   Handler
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	metrics PoolMetrics
}

// NewPool creates an event pool with the given worker count and queue size.
func NewPool(workers, queueSize int, handler Handler, log *logger.Logger) *EventPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventPool{
		taskQueue: make(chan Task, queueSize),
		workers:   workers,
		handler:   handler,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutines.
func (p *EventPool) Start() {
	p.logger.Info("starting event worker pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "queue_size", Value: cap(p.taskQueue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a task without blocking. When the queue is full the task is
// dropped and false is returned; event processing is at-most-once.
func (p *EventPool) Submit(task Task) bool {
	select {
	case p.taskQueue <- task:
		p.mu.Lock()
		p.metrics.TasksSubmitted++
		p.mu.Unlock()
		return true
	default:
		p.mu.Lock()
		p.metrics.TasksDropped++
		p.mu.Unlock()

		p.logger.Warn("event queue full, dropping event",
			logger.Field{Key: "task_id", Value: task.ID},
			logger.Field{Key: "user_id", Value: task.Event.UserID},
			logger.Field{Key: "room_id", Value: task.Event.RoomID})
		return false
	}
}

// Stop shuts the pool down, waiting for in-flight tasks to complete.
func (p *EventPool) Stop() {
	p.cancel()
	p.wg.Wait()

	metrics := p.Metrics()
	p.logger.Info("event worker pool stopped",
		logger.Field{Key: "tasks_submitted", Value: metrics.TasksSubmitted},
		logger.Field{Key: "tasks_completed", Value: metrics.TasksCompleted},
		logger.Field{Key: "tasks_dropped", Value: metrics.TasksDropped})
}

// Metrics returns a copy of the pool counters.
func (p *EventPool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// QueueDepth returns the number of tasks waiting in the queue.
func (p *EventPool) QueueDepth() int {
	return len(p.taskQueue)
}

func (p *EventPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", logger.Field{Key: "worker_id", Value: id})

	for {
		select {
		case task := <-p.taskQueue:
			p.runTask(id, task)

		case <-p.ctx.Done():
			p.logger.Debug("worker stopping", logger.Field{Key: "worker_id", Value: id})
			return
		}
	}
}

// runTask isolates handler panics per task: the worker keeps serving the
// queue after a panic.
func (p *EventPool) runTask(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic recovered", nil,
				logger.Field{Key: "worker_id", Value: id},
				logger.Field{Key: "task_id", Value: task.ID},
				logger.Field{Key: "panic", Value: r})
		}
	}()

	p.handler(p.ctx, task.Event)

	p.mu.Lock()
	p.metrics.TasksCompleted++
	p.mu.Unlock()
}
