package notify

import (
	"context"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/unitledger/pkg/ledger"
	"go.uber.org/zap"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the number of concurrent senders.
func WithWorkers(workers int) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		if workers > 0 {
			dispatcher.workers = workers
		}
	}
}

// WithQueueSize sets how many notifications may wait for a worker.
func WithQueueSize(size int) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		if size > 0 {
			dispatcher.queueSize = size
		}
	}
}

// WithSendTimeout bounds a single Send call.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		if timeout > 0 {
			dispatcher.sendTimeout = timeout
		}
	}
}

// Dispatcher is a ledger.Notifier that hands notifications to a worker pool.
// Notify never blocks: when the queue is full the notification is dropped and logged.
type Dispatcher struct {
	senders     []Sender
	logger      *zap.Logger
	workers     int
	queueSize   int
	sendTimeout time.Duration
	queue       chan ledger.Notification
	waitGroup   sync.WaitGroup
	mutex       sync.RWMutex
	closed      bool
}

var _ ledger.Notifier = (*Dispatcher)(nil)

// NewDispatcher starts the worker pool. Every notification goes to each sender.
func NewDispatcher(logger *zap.Logger, senders []Sender, options ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := &Dispatcher{
		logger:      logger,
		workers:     defaultWorkers,
		queueSize:   defaultQueueSize,
		sendTimeout: defaultSendTimeout,
	}
	for _, sender := range senders {
		if sender != nil {
			dispatcher.senders = append(dispatcher.senders, sender)
		}
	}
	for _, option := range options {
		if option != nil {
			option(dispatcher)
		}
	}
	dispatcher.queue = make(chan ledger.Notification, dispatcher.queueSize)
	for index := 0; index < dispatcher.workers; index++ {
		dispatcher.waitGroup.Add(1)
		go dispatcher.run()
	}
	return dispatcher
}

func (dispatcher *Dispatcher) Notify(_ context.Context, notification ledger.Notification) {
	dispatcher.mutex.RLock()
	defer dispatcher.mutex.RUnlock()
	if dispatcher.closed {
		dispatcher.logger.Warn("notification dropped after close", zap.String("operation", notification.Operation))
		return
	}
	select {
	case dispatcher.queue <- notification:
	default:
		dispatcher.logger.Warn("notification queue full",
			zap.String("operation", notification.Operation),
			zap.String("address", notification.Address.String()),
		)
	}
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (dispatcher *Dispatcher) Close() {
	dispatcher.mutex.Lock()
	if dispatcher.closed {
		dispatcher.mutex.Unlock()
		return
	}
	dispatcher.closed = true
	close(dispatcher.queue)
	dispatcher.mutex.Unlock()
	dispatcher.waitGroup.Wait()
}

func (dispatcher *Dispatcher) run() {
	defer dispatcher.waitGroup.Done()
	for notification := range dispatcher.queue {
		for _, sender := range dispatcher.senders {
			dispatcher.send(sender, notification)
		}
	}
}

func (dispatcher *Dispatcher) send(sender Sender, notification ledger.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatcher.sendTimeout)
	defer cancel()
	if err := sender.Send(ctx, notification); err != nil {
		dispatcher.logger.Warn("notification delivery failed",
			zap.String("operation", notification.Operation),
			zap.String("address", notification.Address.String()),
			zap.Error(err),
		)
	}
}
