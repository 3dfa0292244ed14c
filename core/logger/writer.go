package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter hands finished lines to a single goroutine that owns the sinks.
type asyncWriter struct {
	lines chan []byte
	syncs chan chan error
	done  chan struct{}
	stop  sync.Once

	sinks []*bufio.Writer

	mu     sync.Mutex
	failed error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines: make(chan []byte, 256),
		syncs: make(chan chan error),
		done:  make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.flush())
				return
			}
			w.fail(w.emit(line))
		case ack := <-w.syncs:
			ack <- w.flush()
		}
	}
}

// Write copies p and queues it; it blocks only when the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush blocks until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.err(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.syncs <- ack
	return <-ack
}

// Close drains pending lines and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.stop.Do(func() { close(w.lines) })
	<-w.done
	return w.err()
}

func (w *asyncWriter) emit(line []byte) error {
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			return err
		}
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errList []error
	for _, s := range w.sinks {
		if err := s.Flush(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.failed == nil {
		w.failed = err
	}
	w.mu.Unlock()
}
