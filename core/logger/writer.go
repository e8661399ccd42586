package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// sink is one output with a minimum level.
type sink struct {
	w      *bufio.Writer
	min    slog.Level
	closer io.Closer
}

func newSink(w io.Writer, min slog.Level, closer io.Closer) sink {
	return sink{w: bufio.NewWriterSize(w, 32<<10), min: min, closer: closer}
}

// entry is either a line or, when ack is set, a flush request. Both share one
// queue so a flush covers every line written before it.
type entry struct {
	level slog.Level
	line  []byte
	ack   chan error
}

// fanoutWriter writes records to every sink whose level admits them from a
// single goroutine. Buffers are flushed whenever the queue drains.
type fanoutWriter struct {
	sinks []sink
	queue chan entry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newFanoutWriter(sinks []sink, depth int) *fanoutWriter {
	if depth <= 0 {
		depth = 1
	}
	w := &fanoutWriter{
		sinks: sinks,
		queue: make(chan entry, depth),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *fanoutWriter) loop() {
	defer close(w.done)
	for e := range w.queue {
		if e.ack != nil {
			e.ack <- w.flush()
			continue
		}
		for _, s := range w.sinks {
			if e.level < s.min {
				continue
			}
			if _, err := s.w.Write(e.line); err != nil {
				w.record(err)
			}
		}
		if len(w.queue) == 0 {
			w.record(w.flush())
		}
	}
	w.record(w.flush())
}

// Write queues a copy of line. It blocks while the queue is full.
func (w *fanoutWriter) Write(level slog.Level, line []byte) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- entry{level: level, line: append([]byte(nil), line...)}
	return w.lastErr()
}

// Flush waits until every queued line has reached the sinks.
func (w *fanoutWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return nil
	}
	ack := make(chan error, 1)
	w.queue <- entry{ack: ack}
	w.mu.RUnlock()
	return <-ack
}

// Close drains the queue and closes file sinks. Later writes fail.
func (w *fanoutWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done

	errs := []error{w.lastErr()}
	for _, s := range w.sinks {
		if s.closer != nil {
			errs = append(errs, s.closer.Close())
		}
	}
	return errors.Join(errs...)
}

func (w *fanoutWriter) flush() error {
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.w.Flush())
	}
	return errors.Join(errs...)
}

func (w *fanoutWriter) record(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *fanoutWriter) lastErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
