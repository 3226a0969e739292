// Package asyncwriter contains an asynchronous writer.
package asyncwriter

import (
	"fmt"

	"github.com/bluenviron/gortsplib/v4/pkg/ringbuffer"

	"github.com/bluenviron/avplay/internal/logger"
)

// Writer runs callbacks in a dedicated routine, in the same order they were pushed.
// Callbacks are dropped when the queue is full, so that the pusher never blocks.
type Writer struct {
	QueueSize int
	Parent    logger.Writer

	buffer         *ringbuffer.RingBuffer
	fullLogger     logger.Writer
	dropped        uint64
	terminateError error

	// out
	err chan error
}

// Initialize initializes Writer.
// QueueSize must be a power of two.
func (w *Writer) Initialize() error {
	var err error
	w.buffer, err = ringbuffer.New(uint64(w.QueueSize))
	if err != nil {
		return err
	}

	w.fullLogger = logger.NewLimitedLogger(w.Parent)
	w.terminateError = fmt.Errorf("terminated")
	w.err = make(chan error)

	return nil
}

// Start starts the writer routine.
func (w *Writer) Start() {
	go w.run()
}

// Stop stops the writer routine.
func (w *Writer) Stop() {
	w.buffer.Close()
	<-w.err
}

// Error returns a channel that receives the error that stopped the routine.
func (w *Writer) Error() chan error {
	return w.err
}

func (w *Writer) run() {
	w.err <- w.runInner()
	close(w.err)
}

func (w *Writer) runInner() error {
	for {
		cb, ok := w.buffer.Pull()
		if !ok {
			return w.terminateError
		}

		err := cb.(func() error)()
		if err != nil {
			return err
		}
	}
}

// Push appends a callback to the queue.
// It returns false when the queue is full and the callback has been dropped.
func (w *Writer) Push(cb func() error) bool {
	ok := w.buffer.Push(cb)
	if !ok {
		w.dropped++
		w.fullLogger.Log(logger.Warn, "write queue is full, %d items dropped so far", w.dropped)
	}
	return ok
}
