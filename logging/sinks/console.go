// Package sinks provides logging.Sink implementations for the router.
package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"usion-arena/server/logging"
)

// Console writes one line per event to an io.Writer, guarded by a mutex
// since the router may dispatch from a single worker goroutine but callers
// should not assume that stays true.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole constructs a console sink writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Write implements logging.Sink.
func (c *Console) Write(event logging.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s [%s] room=%s tick=%d %s %v\n",
		event.Time.Format("15:04:05.000"),
		severityLabel(event.Severity),
		event.RoomID,
		event.Tick,
		event.Type,
		event.Payload,
	)
	return err
}

// Close implements logging.Sink.
func (c *Console) Close(context.Context) error {
	return nil
}

func severityLabel(s logging.Severity) string {
	switch s {
	case logging.SeverityDebug:
		return "DEBUG"
	case logging.SeverityWarn:
		return "WARN"
	case logging.SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}
