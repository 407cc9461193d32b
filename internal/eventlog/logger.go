package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mossy-p/proctor-signaling/internal/models"
)

// Sink is the durable store behind the logger.
type Sink interface {
	AppendLog(ctx context.Context, entry models.LogEntry) error
	SetExamineeStatus(ctx context.Context, userID string, status models.ExamineeStatus) error
}

type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
}

type job struct {
	name string
	run  func(ctx context.Context, s Sink) error
}

// Logger queues writes for a single worker so a slow or failing sink never
// delays message routing. When the queue is full new jobs are dropped.
type Logger struct {
	sink    Sink
	timeout time.Duration
	queue   chan job

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped uint64
}

func New(sink Sink, opts Options) *Logger {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	l := &Logger{
		sink:    sink,
		timeout: opts.WriteTimeout,
		queue:   make(chan job, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) Record(entry models.LogEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	l.enqueue(job{
		name: string(entry.LogType),
		run: func(ctx context.Context, s Sink) error {
			return s.AppendLog(ctx, entry)
		},
	})
}

func (l *Logger) MarkExaminee(userID string, status models.ExamineeStatus) {
	l.enqueue(job{
		name: "examinee_status",
		run: func(ctx context.Context, s Sink) error {
			return s.SetExamineeStatus(ctx, userID, status)
		},
	})
}

// Dropped returns how many jobs were discarded because the queue was full
// or the logger was closed.
func (l *Logger) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}

// Close stops accepting jobs and waits until the queued ones are written
// or ctx ends.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) enqueue(j job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.dropped++
		return
	}
	select {
	case l.queue <- j:
	default:
		l.dropped++
		log.Warn().Str("module", "eventlog").Str("job", j.name).
			Uint64("dropped", l.dropped).Msg("event queue full, dropping")
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for j := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		if err := j.run(ctx, l.sink); err != nil {
			log.Warn().Err(err).Str("module", "eventlog").Str("job", j.name).Msg("event write failed")
		}
		cancel()
	}
}
