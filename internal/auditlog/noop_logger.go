package auditlog

// NoopLogger discards every event. It is the default StructuredLogger for
// callers that have not configured file-backed audit logging.
type NoopLogger struct{}

// NewNoopLogger returns a StructuredLogger that does nothing.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// Log implements StructuredLogger.
func (l *NoopLogger) Log(event AuditEvent) {}

// Close implements StructuredLogger.
func (l *NoopLogger) Close() error { return nil }

var _ StructuredLogger = (*NoopLogger)(nil)
