package trace

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Activity lists the toolchain processes that are currently being
// drained. Process spans register themselves on start and drop out on
// End; the heartbeat reads it.
type Activity struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]*Proc
}

// Proc is one running toolchain process as seen by an Activity.
type Proc struct {
	key     uint64
	Unit    string
	Phase   string
	Started time.Time

	pid     atomic.Int64
	lines   atomic.Int64
	touched atomic.Int64 // unix nanos of the last classified line
}

// ProcState is a point-in-time copy of a Proc.
type ProcState struct {
	Unit     string
	Phase    string
	PID      int
	Lines    int64
	Started  time.Time
	LastLine time.Time
}

// NewActivity returns an empty Activity.
func NewActivity() *Activity {
	return &Activity{live: make(map[uint64]*Proc)}
}

func (a *Activity) add(unit, phase string) *Proc {
	now := time.Now()
	p := &Proc{Unit: unit, Phase: phase, Started: now}
	p.touched.Store(now.UnixNano())
	a.mu.Lock()
	a.next++
	p.key = a.next
	a.live[p.key] = p
	a.mu.Unlock()
	return p
}

func (a *Activity) remove(p *Proc) {
	if p == nil {
		return
	}
	a.mu.Lock()
	delete(a.live, p.key)
	a.mu.Unlock()
}

// Snapshot returns the live processes ordered by start.
func (a *Activity) Snapshot() []ProcState {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	out := make([]ProcState, 0, len(a.live))
	keys := make([]uint64, 0, len(a.live))
	for k := range a.live {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		p := a.live[k]
		out = append(out, ProcState{
			Unit:     p.Unit,
			Phase:    p.Phase,
			PID:      int(p.pid.Load()),
			Lines:    p.lines.Load(),
			Started:  p.Started,
			LastLine: time.Unix(0, p.touched.Load()),
		})
	}
	a.mu.Unlock()
	return out
}

type activityKey struct{}

// WithActivity attaches a to ctx so process spans register with it.
func WithActivity(ctx context.Context, a *Activity) context.Context {
	if a == nil {
		return ctx
	}
	return context.WithValue(ctx, activityKey{}, a)
}

// ActivityFrom returns the Activity stored in ctx, or nil.
func ActivityFrom(ctx context.Context) *Activity {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(activityKey{}).(*Activity)
	return a
}
