package logger

import (
	"fmt"
	"io"
	"os"
)

// AsyncLogger decouples a writer (typically a rotating file) from the
// goroutine producing log lines: Write hands the message to a bounded
// channel and returns immediately, while a single background goroutine
// drains the channel to the underlying writer in order. A full buffer
// drops the message rather than blocking the caller, since a stalled
// log sink must never stall trace processing.
type AsyncLogger struct {
	out    io.WriteCloser
	msgCh  chan []byte
	doneCh chan struct{}
}

// NewAsyncLogger starts the background writer goroutine and returns a
// logger ready to accept writes. bufferSize bounds how many
// not-yet-flushed messages may queue before new writes are dropped.
func NewAsyncLogger(out io.WriteCloser, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		out:    out,
		msgCh:  make(chan []byte, bufferSize),
		doneCh: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.doneCh)
	for msg := range a.msgCh {
		_, _ = a.out.Write(msg)
	}
}

// Write queues p for the background writer. It never blocks: if the
// buffer is full, the message is dropped and a notice is printed to
// stderr.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case a.msgCh <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains the remaining buffered messages and closes the
// underlying writer.
func (a *AsyncLogger) Close() error {
	close(a.msgCh)
	<-a.doneCh
	return a.out.Close()
}
