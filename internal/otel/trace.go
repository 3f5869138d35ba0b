package otel

import (
	"os"
	"sync/atomic"
)

// NEXTTOGO_TRACE turns on per-message UI tracing.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("NEXTTOGO_TRACE") != "")
}

// TraceEnabled reports whether trace.* events should be emitted.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
