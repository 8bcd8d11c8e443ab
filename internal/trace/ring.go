package trace

import (
	"io"
	"sync"
)

// RingTracer retains the most recent events in memory so they can be
// dumped after a failed run.
type RingTracer struct {
	mu    sync.Mutex
	buf   []Event
	start int // index of the oldest event
	n     int // number of retained events
	level Level
}

// NewRingTracer returns a RingTracer holding at most capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &RingTracer{buf: make([]Event, capacity), level: level}
}

// Emit stores ev, overwriting the oldest event once the buffer is full.
func (t *RingTracer) Emit(ev *Event) {
	if ev == nil || !accepts(t.level, ev) {
		return
	}
	stored := *ev
	if stored.Seq == 0 {
		stored.Seq = NextSeq()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n < len(t.buf) {
		t.buf[(t.start+t.n)%len(t.buf)] = stored
		t.n++
		return
	}
	t.buf[t.start] = stored
	t.start = (t.start + 1) % len(t.buf)
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, t.n)
	for i := range out {
		out[i] = t.buf[(t.start+i)%len(t.buf)]
	}
	return out
}

// Dump writes the retained events. A non-empty unit keeps only the events
// of that unit plus the run-level events around them, so a failure dump
// is not crowded out by the units that built cleanly.
func (t *RingTracer) Dump(w io.Writer, format Format, unit string) error {
	for _, ev := range t.Snapshot() {
		if unit != "" && ev.Unit != "" && ev.Unit != unit {
			continue
		}
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }
func (t *RingTracer) Close() error { return nil }

// Level returns the recording level.
func (t *RingTracer) Level() Level { return t.level }

// Enabled reports whether the level records anything.
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }

// accepts applies the level filter. Heartbeats pass at every level that
// records anything.
func accepts(level Level, ev *Event) bool {
	if ev.Kind == KindHeartbeat {
		return level > LevelOff
	}
	return level.ShouldEmit(ev.Scope)
}
