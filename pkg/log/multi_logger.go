package log

// MultiLogger fans trace events out to several loggers, typically a
// FileLogger for the .plog file and a SlogAdapter for the console.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger over the non-nil loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log forwards the event to every logger in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Len returns the number of loggers.
func (m *MultiLogger) Len() int {
	return len(m.loggers)
}

// Combine returns a single Logger for the non-nil loggers: nil when there
// are none, the logger itself when there is one, and a MultiLogger
// otherwise. A nil result disables tracing on a device.
func Combine(loggers ...Logger) Logger {
	m := NewMultiLogger(loggers...)
	switch m.Len() {
	case 0:
		return nil
	case 1:
		return m.loggers[0]
	default:
		return m
	}
}

var _ Logger = (*MultiLogger)(nil)
