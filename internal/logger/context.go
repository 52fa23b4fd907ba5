package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds the request-scoped fields that *Ctx logging calls
// prepend to every record.
type LogContext struct {
	TraceID    string // OpenTelemetry trace ID
	SpanID     string // OpenTelemetry span ID
	Op         string // NFSv4 operation being executed
	Export     string // export path of the current filehandle
	ClientAddr string // client transport address
	SessionID  string // NFSv4.1 session bound by SEQUENCE
	UID        uint32
	GID        uint32
	AuthFlavor uint32
	StartTime  time.Time
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext of ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for a request from clientAddr.
func NewLogContext(clientAddr string) *LogContext {
	return &LogContext{
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone returns a copy of lc. A nil receiver yields nil.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithOp returns a copy with the operation name set.
func (lc *LogContext) WithOp(op string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Op = op
	}
	return c
}

// WithExport returns a copy with the export path set.
func (lc *LogContext) WithExport(path string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Export = path
	}
	return c
}

// WithSession returns a copy with the session ID set.
func (lc *LogContext) WithSession(id string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.SessionID = id
	}
	return c
}

// WithAuth returns a copy with the caller's credentials set.
func (lc *LogContext) WithAuth(uid, gid, authFlavor uint32) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.UID = uid
		c.GID = gid
		c.AuthFlavor = authFlavor
	}
	return c
}

// WithTrace returns a copy with the trace identifiers set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the milliseconds elapsed since StartTime.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}
