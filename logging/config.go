package logging

import "time"

// Config tunes the router's buffering, severity floor, and sink set.
type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	// CategoryFloors overrides MinimumSeverity for specific categories, so
	// e.g. webhook delivery failures still reach sinks even when the
	// global floor is raised to cut simulation tick noise.
	CategoryFloors   map[string]Severity
	Fields           map[string]any
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

// ConsoleConfig tunes the console sink.
type ConsoleConfig struct {
	UseColor bool
}

// DefaultConfig returns the server's default logging configuration: a
// single console sink, a 512-event buffer, info severity floor. Webhook
// delivery events always clear the floor at warn, since a silently
// swallowed match-result submission is the costliest thing to miss.
func DefaultConfig() Config {
	return Config{
		EnabledSinks:    []string{"console"},
		BufferSize:      512,
		MinimumSeverity: SeverityInfo,
		CategoryFloors: map[string]Severity{
			CategoryWebhook: SeverityWarn,
		},
		DropWarnInterval: 5 * time.Second,
	}
}

// HasSink reports whether name is in the enabled sink list.
func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

// CloneFields returns a defensive copy of the configured static fields.
func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
