package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

type Router struct {
	cfg          Config
	queue        chan Event
	sinks        []*sinkWorker
	clock        Clock
	fallback     *log.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	closed       atomic.Bool
	minSeverity  Severity
	fields       map[string]any
	wg           sync.WaitGroup
	dispatchOnce sync.Once

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	lastDropLog  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
	Sinks        map[string]SinkStats
}

// NewRouter starts the dispatch goroutine and one worker per sink. A nil
// fallback logger writes router diagnostics to stderr.
func NewRouter(clock Clock, cfg Config, fallback *log.Logger, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:         cfg,
		queue:       make(chan Event, bufferSize),
		clock:       clock,
		fallback:    fallback,
		ctx:         ctx,
		cancel:      cancel,
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
	}

	sinkBuffer := bufferSize
	if sinkBuffer > 1024 {
		sinkBuffer = 1024
	}
	if sinkBuffer < 32 {
		sinkBuffer = 32
	}

	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		if len(cfg.EnabledSinks) > 0 && !cfg.HasSink(named.Name) {
			continue
		}
		worker := newSinkWorker(named.Name, named.Sink, sinkBuffer, r.fallback)
		r.sinks = append(r.sinks, worker)
	}

	r.start()
	return r, nil
}

func (r *Router) start() {
	r.dispatchOnce.Do(func() {
		r.wg.Add(1)
		go func() {
			defer func() {
				for _, worker := range r.sinks {
					close(worker.events)
				}
				r.wg.Done()
			}()
			for {
				select {
				case <-r.ctx.Done():
					r.drain()
					return
				case event := <-r.queue:
					r.forward(event)
				}
			}
		}()

		for _, worker := range r.sinks {
			r.wg.Add(1)
			go func(w *sinkWorker) {
				defer r.wg.Done()
				w.run()
			}(worker)
		}
	})
}

func (r *Router) drain() {
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		default:
			return
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.fields) > 0 {
		event = cloneForFields(event)
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	r.eventsTotal.Add(1)
	for _, worker := range r.sinks {
		worker.enqueue(event)
	}
}

// Publish enqueues event without blocking; a full queue drops it.
func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" {
		return
	}
	if r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.handleDrop(event)
	}
}

func (r *Router) handleDrop(event Event) {
	r.droppedTotal.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := r.clock.Now().UnixNano()
	next := r.lastDropLog.Load()
	if next == 0 || now >= next {
		if r.lastDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
			r.fallback.Printf("dropping event type=%s tick=%d dropped=%d", event.Type, event.Tick, r.droppedTotal.Load())
		}
	}
}

func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, worker := range r.sinks {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats reports router totals and per-sink delivery counts.
func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
		Sinks:        make(map[string]SinkStats, len(r.sinks)),
	}
	for _, worker := range r.sinks {
		stats.Sinks[worker.name] = worker.stats()
	}
	return stats
}

// Export writes the current stats as flat metric keys through store.
func (r *Router) Export(store func(key string, value uint64)) {
	if store == nil {
		return
	}
	stats := r.Stats()
	store("log_events_total", stats.EventsTotal)
	store("log_events_dropped_total", stats.DroppedTotal)
	for name, sink := range stats.Sinks {
		store("log_sink_"+name+"_written_total", sink.Written)
		store("log_sink_"+name+"_dropped_total", sink.Dropped)
		store("log_sink_"+name+"_failures_total", sink.Failures)
	}
}

func (r *Router) Sink(name string) Sink {
	for _, worker := range r.sinks {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

// SinkStats counts one sink's deliveries.
type SinkStats struct {
	Written  uint64
	Dropped  uint64
	Failures uint64
}

type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger

	written  atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	failures int
	retryAt  time.Time
}

func newSinkWorker(name string, sink Sink, buffer int, fallback *log.Logger) *sinkWorker {
	if buffer <= 0 {
		buffer = 32
	}
	return &sinkWorker{
		name:     name,
		sink:     sink,
		events:   make(chan Event, buffer),
		fallback: fallback,
	}
}

func (w *sinkWorker) stats() SinkStats {
	return SinkStats{
		Written:  w.written.Load(),
		Dropped:  w.dropped.Load(),
		Failures: w.failed.Load(),
	}
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneForFields(event):
	default:
		w.reportDrop(event)
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if !w.retryAt.IsZero() {
			if wait := time.Until(w.retryAt); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := w.sink.Write(event); err != nil {
			w.fail(err)
			continue
		}
		w.written.Add(1)
		w.failures = 0
		w.retryAt = time.Time{}
	}
}

// fail backs the worker off exponentially, capped at 32 seconds.
func (w *sinkWorker) fail(err error) {
	w.failed.Add(1)
	w.failures++
	delay := time.Duration(1<<min(w.failures, 5)) * time.Second
	w.retryAt = time.Now().Add(delay)
	w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
}

// reportDrop logs the first drop and then every power of two.
func (w *sinkWorker) reportDrop(event Event) {
	count := w.dropped.Add(1)
	if count&(count-1) != 0 {
		return
	}
	w.fallback.Printf("sink %s backlog full, dropping event type=%s (dropped=%d)", w.name, event.Type, count)
}
