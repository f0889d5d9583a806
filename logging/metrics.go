package logging

import "sync"

// Metrics is a small thread-safe counter/gauge table used by the room
// runtime and gateway to expose operational telemetry without pulling in a
// full metrics client.
type Metrics struct {
	mu   sync.Mutex
	vals map[string]uint64
}

// TelemetryAdd increments key by delta.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals == nil {
		m.vals = make(map[string]uint64)
	}
	m.vals[key] += delta
}

// TelemetryStore sets key to value.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vals == nil {
		m.vals = make(map[string]uint64)
	}
	m.vals[key] = value
}

// Snapshot returns a defensive copy of every tracked counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.vals))
	for k, v := range m.vals {
		out[k] = v
	}
	return out
}
