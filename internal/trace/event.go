package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	KindHeartbeat // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of the event.
// Lower values are coarser.
type Scope uint8

const (
	// ScopeRun covers one pipeline invocation.
	ScopeRun Scope = iota + 1
	// ScopeUnit covers one work unit.
	ScopeUnit
	// ScopePhase covers configure or build of one unit.
	ScopePhase
	// ScopeProcess marks toolchain process start and exit.
	ScopeProcess
	ScopeLine // one classified diagnostic
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeRun:
		return "run"
	case ScopeUnit:
		return "unit"
	case ScopePhase:
		return "phase"
	case ScopeProcess:
		return "process"
	case ScopeLine:
		return "line"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	Name     string            // e.g. "run", "unit core", "configure"
	Unit     string            // work unit the event belongs to, empty at run level
	Phase    string            // configure or build, empty above phase level
	PID      int               // toolchain process ID on process events
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
