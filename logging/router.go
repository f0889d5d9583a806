package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives forwarded events on a dedicated worker goroutine.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// NamedSink pairs a Sink with the name it is registered under.
type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans published events out to every registered sink on background
// workers, never blocking the publishing goroutine beyond a channel send.
type Router struct {
	cfg          Config
	queue        chan Event
	sinks        []*sinkWorker
	clock        Clock
	fallback     *log.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	closed         atomic.Bool
	minSeverity    Severity
	categoryFloors map[string]Severity
	fields         map[string]any
	wg             sync.WaitGroup
	dispatchOnce   sync.Once

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	lastDropLog  atomic.Int64

	categoryMu     sync.Mutex
	categoryTotals map[string]uint64
}

// RouterStats reports lifetime counters for diagnostics endpoints.
type RouterStats struct {
	EventsTotal    uint64
	DroppedTotal   uint64
	CategoryTotals map[string]uint64
}

// NewRouter constructs and starts a Router with the given clock, config,
// and named sinks. The returned router accepts Publish calls immediately.
func NewRouter(cfg Config, clock Clock, fallback *log.Logger, namedSinks map[string]Sink) (*Router, error) {
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
		cfg:            cfg,
		queue:          make(chan Event, bufferSize),
		clock:          clock,
		fallback:       fallback,
		ctx:            ctx,
		cancel:         cancel,
		minSeverity:    cfg.MinimumSeverity,
		categoryFloors: cloneCategoryFloors(cfg.CategoryFloors),
		fields:         cfg.CloneFields(),
		categoryTotals: make(map[string]uint64),
	}

	sinkBuffer := bufferSize
	if sinkBuffer > 1024 {
		sinkBuffer = 1024
	}
	if sinkBuffer < 32 {
		sinkBuffer = 32
	}

	for name, sink := range namedSinks {
		if sink == nil || !cfg.HasSink(name) {
			continue
		}
		r.sinks = append(r.sinks, newSinkWorker(name, sink, sinkBuffer, r.fallback))
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
	floor := r.minSeverity
	if categoryFloor, ok := r.categoryFloors[event.Category]; ok {
		floor = categoryFloor
	}
	if event.Severity < floor {
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
	if event.Category != "" {
		r.categoryMu.Lock()
		r.categoryTotals[event.Category]++
		r.categoryMu.Unlock()
	}
	for _, worker := range r.sinks {
		worker.enqueue(event)
	}
}

func cloneCategoryFloors(floors map[string]Severity) map[string]Severity {
	if len(floors) == 0 {
		return map[string]Severity{}
	}
	cloned := make(map[string]Severity, len(floors))
	for k, v := range floors {
		cloned[k] = v
	}
	return cloned
}

// Publish enqueues event for dispatch. It never blocks; a full queue drops
// the event and logs a rate-limited warning via the fallback logger.
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
	now := time.Now().UnixNano()
	next := r.lastDropLog.Load()
	if next == 0 || now >= next {
		if r.lastDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
			r.fallback.Printf("dropping event type=%s room=%s", event.Type, event.RoomID)
		}
	}
}

// Close stops dispatch and waits for every sink worker to drain, or returns
// early if ctx is cancelled first.
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

// Stats returns lifetime router counters.
func (r *Router) Stats() RouterStats {
	r.categoryMu.Lock()
	categoryTotals := make(map[string]uint64, len(r.categoryTotals))
	for k, v := range r.categoryTotals {
		categoryTotals[k] = v
	}
	r.categoryMu.Unlock()
	return RouterStats{
		EventsTotal:    r.eventsTotal.Load(),
		DroppedTotal:   r.droppedTotal.Load(),
		CategoryTotals: categoryTotals,
	}
}

type sinkWorker struct {
	name      string
	sink      Sink
	events    chan Event
	fallback  *log.Logger
	failures  int
	nextRetry time.Time
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

func (w *sinkWorker) enqueue(event Event) {
	cloned := cloneForFields(event)
	select {
	case w.events <- cloned:
	default:
		w.fallback.Printf("sink %s backlog full dropping event type=%s", w.name, event.Type)
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		w.waitUntilReady()
		if err := w.sink.Write(event); err != nil {
			w.fail(err)
		} else {
			w.failures = 0
			w.nextRetry = time.Time{}
		}
	}
}

func (w *sinkWorker) waitUntilReady() {
	if w.failures == 0 {
		return
	}
	for {
		now := time.Now()
		if w.nextRetry.IsZero() || now.After(w.nextRetry) || now.Equal(w.nextRetry) {
			return
		}
		time.Sleep(time.Until(w.nextRetry))
	}
}

func (w *sinkWorker) fail(err error) {
	if err == nil {
		return
	}
	w.failures++
	backoff := w.failures
	if backoff > 5 {
		backoff = 5
	}
	delay := time.Duration(1<<uint(backoff)) * time.Second
	w.nextRetry = time.Now().Add(delay)
	w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
}
