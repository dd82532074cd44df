// Package listener drives the capture pipeline: supervise the engine, tail
// its fields file, parse, format, and emit until cancelled or the engine
// exits on its own.
package listener

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/asreqsniff/asreqsniff/internal/capture"
	"github.com/asreqsniff/asreqsniff/internal/roast"
	"github.com/asreqsniff/asreqsniff/internal/sink"
	"github.com/asreqsniff/asreqsniff/internal/tail"
)

// DefaultPollInterval balances responsiveness against open/stat overhead
// for a human-paced credential stream.
const DefaultPollInterval = 400 * time.Millisecond

// Engine abstracts the external capture process so the pipeline can run
// against a fake producer in tests.
type Engine interface {
	Validate(ctx context.Context, iface string) error
	Start(ctx context.Context, iface string) (*capture.Handle, error)
	Stop(h *capture.Handle) error
	Diagnostics(h *capture.Handle) string
	Cleanup(h *capture.Handle) error
}

// Listener owns one capture session: the supervised engine process, the
// consumed stream offset, and the cancellation state.
type Listener struct {
	Engine       Engine
	Sink         *sink.Sink
	Format       roast.Format
	Interface    string
	PollInterval time.Duration

	mu       sync.Mutex
	handle   *capture.Handle
	tornDown bool
}

func New(engine Engine, s *sink.Sink, format roast.Format, iface string) *Listener {
	return &Listener{
		Engine:       engine,
		Sink:         s,
		Format:       format,
		Interface:    iface,
		PollInterval: DefaultPollInterval,
	}
}

// Run drives the capture loop until ctx is cancelled, Shutdown is called,
// or the engine exits on its own. Teardown runs exactly once on every exit
// path. Returns nil on cancellation; only a launch failure is an error.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Engine.Validate(ctx, l.Interface); err != nil {
		log.Printf("[listener] Interface check failed (continuing anyway): %v", err)
	}

	h, err := l.Engine.Start(ctx, l.Interface)
	if err != nil {
		return fmt.Errorf("start capture engine: %w", err)
	}
	l.mu.Lock()
	l.handle = h
	l.mu.Unlock()

	defer l.Shutdown()

	t := tail.New(h.FieldsPath)
	ticker := time.NewTicker(l.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[listener] Cancellation requested, shutting down")
			return nil
		case <-h.Done():
			// Drain whatever the engine flushed before exiting. An exit is
			// only unexpected when nobody asked for teardown: a signal
			// handler's kill can close Done before the loop sees ctx.Done.
			l.consume(t)
			if ctx.Err() == nil && !l.stopping() {
				log.Printf("[listener] Capture engine exited unexpectedly")
				if diag := l.Engine.Diagnostics(h); diag != "" {
					log.Printf("[listener] Engine diagnostics: %s", diag)
				}
			}
			return nil
		case <-ticker.C:
			l.consume(t)
		}
	}
}

// consume processes one poll's worth of lines in arrival order. Malformed
// lines are expected noise and skipped without comment.
func (l *Listener) consume(t *tail.Tailer) {
	lines, err := t.Poll()
	if err != nil {
		log.Printf("[listener] Poll failed: %v", err)
		return
	}
	for _, line := range lines {
		rec, ok := roast.Parse(line)
		if !ok {
			continue
		}
		l.Sink.Emit(rec, roast.Hash(rec, l.Format))
	}
}

// stopping reports whether teardown has already been requested.
func (l *Listener) stopping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tornDown
}

// Shutdown kills the engine and removes its transient stream files, exactly
// once no matter how many goroutines request it. Safe to call from a signal
// handler while Run is mid-poll; a call before the engine has started is a
// no-op and does not consume the teardown.
func (l *Listener) Shutdown() {
	l.mu.Lock()
	if l.tornDown || l.handle == nil {
		l.mu.Unlock()
		return
	}
	l.tornDown = true
	h := l.handle
	l.mu.Unlock()

	if err := l.Engine.Stop(h); err != nil {
		log.Printf("[listener] Engine stop failed: %v", err)
	}
	if err := l.Engine.Cleanup(h); err != nil {
		log.Printf("[listener] Cleanup failed: %v", err)
	}
	log.Printf("[listener] Capture stopped")
}
