package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/interfaces"
)

// InlineQueue runs tasks in-process. It stands in for asynq when no Redis
// is configured, so it is both the queue and the server.
type InlineQueue struct {
	mu       sync.RWMutex
	handlers map[string]interfaces.TaskHandler
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

func NewInlineQueue() *InlineQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineQueue{
		handlers: make(map[string]interfaces.TaskHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

var (
	_ interfaces.TaskQueue  = (*InlineQueue)(nil)
	_ interfaces.TaskServer = (*InlineQueue)(nil)
)

func (q *InlineQueue) Register(taskType string, h interfaces.TaskHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

func (q *InlineQueue) Enqueue(_ context.Context, t interfaces.Task, opts ...interfaces.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("inline queue: task type is required")
	}

	q.mu.RLock()
	h, ok := q.handlers[t.Type]
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return "", errors.New("inline queue: closed")
	}
	if !ok {
		return "", fmt.Errorf("inline queue: no handler for %s", t.Type)
	}

	var delay time.Duration
	if len(opts) > 0 {
		delay = opts[0].ProcessIn
	}

	id := uuid.NewString()
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-q.ctx.Done():
				return
			}
		}
		if err := h(q.ctx, t); err != nil {
			log.Error().Err(err).Str("task", t.Type).Str("id", id).Msg("task failed")
		}
	}()
	return id, nil
}

// Run blocks until ctx is canceled, then stops the queue.
func (q *InlineQueue) Run(ctx context.Context) error {
	<-ctx.Done()
	return q.Close()
}

// Close rejects new tasks, drops delayed ones and waits for running ones.
func (q *InlineQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
	return nil
}
