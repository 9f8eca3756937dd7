package activation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/straja-ai/mailsieve/internal/config"
	"github.com/straja-ai/mailsieve/internal/redact"
)

// Sink consumes decision events.
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Stats is a point-in-time copy of the emitter counters, keyed by sink name.
type Stats struct {
	Enqueued  uint64
	Dropped   uint64
	Delivered map[string]uint64
	Failed    map[string]uint64
}

type sinkCounters struct {
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// Emitter hands decision events to sinks on background workers so that
// classification never waits on a slow file or webhook.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	counters        []*sinkCounters
	shutdownTimeout time.Duration

	enqueued atomic.Uint64
	dropped  atomic.Uint64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// EmitterConfig controls worker and queue sizing.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	em := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		counters:        make([]*sinkCounters, len(sinks)),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	for i := range em.counters {
		em.counters[i] = &sinkCounters{}
	}

	em.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go em.worker()
	}
	return em
}

// Emit enqueues the event without blocking; a full or closed queue drops it.
func (e *Emitter) Emit(_ context.Context, ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}

	select {
	case e.queue <- ev:
		e.enqueued.Add(1)
	default:
		e.dropped.Add(1)
	}
}

// Close stops accepting events, waits up to the shutdown timeout for the
// queue to drain and then closes every sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
		redact.Logf("activation: shutdown timed out with events still queued")
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			redact.Logf("activation: sink %s close error: %v", s.Name(), err)
		}
	}

	st := e.Stats()
	if st.Dropped > 0 {
		redact.Logf("activation: closed enqueued=%d dropped=%d", st.Enqueued, st.Dropped)
	}
}

// Stats copies the current counters.
func (e *Emitter) Stats() Stats {
	st := Stats{Delivered: map[string]uint64{}, Failed: map[string]uint64{}}
	if e == nil {
		return st
	}
	st.Enqueued = e.enqueued.Load()
	st.Dropped = e.dropped.Load()
	for i, s := range e.sinks {
		st.Delivered[s.Name()] = e.counters[i].delivered.Load()
		st.Failed[s.Name()] = e.counters[i].failed.Load()
	}
	return st
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		for i, s := range e.sinks {
			if err := s.Deliver(context.Background(), ev); err != nil {
				redact.Logf("activation: sink %s failed event=%s: %v", s.Name(), ev.ID, err)
				e.counters[i].failed.Add(1)
				continue
			}
			e.counters[i].delivered.Add(1)
		}
	}
}

// FromConfig opens the configured sinks and starts an Emitter. It returns
// nil when no sinks are configured; a nil Emitter accepts and ignores events.
func FromConfig(cfg config.ActivationConfig) (*Emitter, error) {
	if len(cfg.Sinks) == 0 {
		return nil, nil
	}
	sinks := make([]Sink, 0, len(cfg.Sinks))
	for i, sc := range cfg.Sinks {
		var (
			s   Sink
			err error
		)
		switch strings.ToLower(strings.TrimSpace(sc.Type)) {
		case "file_jsonl":
			s, err = NewFileSink(sc.Path)
		case "webhook":
			s, err = NewWebhookSink(WebhookConfig{
				URL:     sc.URL,
				Headers: sc.Headers,
				Timeout: sc.Timeout,
				Secret:  config.ResolveAPIKey(sc.Secret, sc.SecretEnv),
			})
		default:
			err = fmt.Errorf("unknown type %q", sc.Type)
		}
		if err != nil {
			for _, opened := range sinks {
				_ = opened.Close(context.Background())
			}
			return nil, fmt.Errorf("activation sink %d: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	return NewEmitter(EmitterConfig{QueueSize: cfg.QueueSize, Workers: cfg.Workers}, sinks), nil
}
