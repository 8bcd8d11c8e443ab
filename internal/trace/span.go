package trace

import (
	"strconv"
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

// NextSeq returns the next global event sequence number.
func NextSeq() uint64 { return seqCounter.Add(1) }

// NextSpanID returns a fresh span ID. IDs start at 1.
func NextSpanID() uint64 { return spanCounter.Add(1) }

// Span is one open begin/end pair. A span whose scope is filtered out by
// the tracer level is inert: it has ID 0 and emits nothing, but still
// measures its own duration and still shows up in an Activity.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	unit    string
	phase   string
	pid     int
	started time.Time
	extra   map[string]string

	activity *Activity
	proc     *Proc
}

// Begin opens a span under parent (0 for a root span).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	return begin(t, scope, name, frame{span: parent})
}

func begin(t Tracer, scope Scope, name string, f frame) *Span {
	s := &Span{
		tracer:  Nop,
		parent:  f.span,
		scope:   scope,
		name:    name,
		unit:    f.unit,
		phase:   f.phase,
		started: time.Now(),
	}
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return s
	}
	s.tracer = t
	s.id = NextSpanID()
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:     at,
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Unit:     s.unit,
		Phase:    s.phase,
		PID:      s.pid,
		Detail:   detail,
	}
}

// SetPID records the OS process ID of a process span. It is shown on the
// end event and on heartbeats.
func (s *Span) SetPID(pid int) {
	if s == nil {
		return
	}
	s.pid = pid
	if s.proc != nil {
		s.proc.pid.Store(int64(pid))
	}
}

// Line records one classified output line of a process span. At
// LevelDebug it also emits a point event labelled with the severity.
func (s *Span) Line(severity string) {
	if s == nil {
		return
	}
	if s.proc != nil {
		s.proc.lines.Add(1)
		s.proc.touched.Store(time.Now().UnixNano())
	}
	if s.id == 0 || !s.tracer.Level().ShouldEmit(ScopeLine) {
		return
	}
	ev := s.event(KindPoint, time.Now(), severity)
	ev.Scope = ScopeLine
	ev.SpanID = 0
	ev.ParentID = s.id
	ev.Name = "diagnostic"
	s.tracer.Emit(ev)
}

// End closes the span, drops it from its Activity and returns how long it
// was open.
func (s *Span) End(detail string) time.Duration {
	if s == nil {
		return 0
	}
	now := time.Now()
	if s.activity != nil {
		s.activity.remove(s.proc)
		s.activity = nil
	}
	if s.id != 0 && s.tracer.Enabled() {
		ev := s.event(KindSpanEnd, now, detail)
		ev.Extra = s.extra
		s.tracer.Emit(ev)
	}
	return now.Sub(s.started)
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.id == 0 {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

func itoa(n int) string { return strconv.Itoa(n) }
