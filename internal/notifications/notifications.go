// Package notifications delivers transient user-facing messages (toasts).
// Producers enqueue without blocking on the consumer; a background dispatcher moves
// queued messages into a bounded inbox in batches, and the console drains the inbox.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/patric-chuzhbe/urlify/internal/logger"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

type Notification struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type Dispatcher struct {
	queue               chan *Notification
	delayBetweenFlushes time.Duration
	capacity            int
	clock               func() time.Time
	mu                  sync.Mutex
	inbox               []Notification
	done                chan struct{}
	runOnce             sync.Once
}

func New(channelCapacity int, delayBetweenFlushes time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:               make(chan *Notification, channelCapacity),
		delayBetweenFlushes: delayBetweenFlushes,
		capacity:            channelCapacity,
		clock:               time.Now,
		done:                make(chan struct{}),
	}
}

func (d *Dispatcher) Success(message string) {
	d.enqueue(KindSuccess, message)
}

func (d *Dispatcher) Error(message string) {
	d.enqueue(KindError, message)
}

// enqueue drops the message when the queue is full; toasts are not worth blocking a request.
func (d *Dispatcher) enqueue(kind Kind, message string) {
	select {
	case d.queue <- &Notification{Kind: kind, Message: message, CreatedAt: d.clock()}:
	default:
		logger.Log.Warnf("notification queue is full, dropping %q", message)
	}
}

func (d *Dispatcher) flush(batch []Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inbox = append(d.inbox, batch...)
	if overflow := len(d.inbox) - d.capacity; overflow > 0 {
		d.inbox = d.inbox[overflow:]
		logger.Log.Warnf("notification inbox is full, dropped %d oldest", overflow)
	}
	logger.Log.Debugf("dispatched %d notifications", len(batch))
}

// Run starts the dispatcher. It stops, after a final flush, when ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.runOnce.Do(func() {
		go func() {
			defer close(d.done)

			ticker := time.NewTicker(d.delayBetweenFlushes)
			defer ticker.Stop()

			var batch []Notification

			for {
				select {
				case n := <-d.queue:
					batch = append(batch, *n)
				case <-ticker.C:
					if len(batch) == 0 {
						continue
					}
					d.flush(batch)
					batch = nil
				case <-ctx.Done():
					for {
						select {
						case n := <-d.queue:
							batch = append(batch, *n)
						default:
							if len(batch) > 0 {
								d.flush(batch)
							}
							return
						}
					}
				}
			}
		}()
	})
}

// Done is closed once a running dispatcher has stopped.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Drain returns and forgets everything dispatched so far, oldest first.
func (d *Dispatcher) Drain() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := d.inbox
	if result == nil {
		result = []Notification{}
	}
	d.inbox = nil

	return result
}
