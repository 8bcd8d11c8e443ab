package trace

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Heartbeat reports the running toolchain processes at a fixed interval.
// Each tick emits one event per live process with its unit, phase, PID
// and classified line count; a process that produced no output since the
// previous tick is flagged "quiet". With nothing running a single "idle"
// tick is emitted.
type Heartbeat struct {
	tracer   Tracer
	activity *Activity
	interval time.Duration
	now      func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	tick     uint64
}

// StartHeartbeat starts reporting activity to tracer. It returns nil when
// tracing is off or interval is not positive.
func StartHeartbeat(tracer Tracer, activity *Activity, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		activity: activity,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Heartbeat) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.beat()
		case <-h.stop:
			return
		}
	}
}

func (h *Heartbeat) beat() {
	h.tick++
	now := h.now()
	procs := h.activity.Snapshot()
	if len(procs) == 0 {
		h.tracer.Emit(&Event{
			Time:   now,
			Seq:    NextSeq(),
			Kind:   KindHeartbeat,
			Scope:  ScopeRun,
			Name:   "idle",
			Detail: fmt.Sprintf("#%d", h.tick),
		})
		return
	}
	for _, p := range procs {
		detail := fmt.Sprintf("#%d", h.tick)
		if quiet := now.Sub(p.LastLine); quiet >= h.interval {
			detail += ", quiet " + quiet.Round(time.Millisecond).String()
		}
		h.tracer.Emit(&Event{
			Time:   now,
			Seq:    NextSeq(),
			Kind:   KindHeartbeat,
			Scope:  ScopeProcess,
			Name:   "cabal " + p.Phase,
			Unit:   p.Unit,
			Phase:  p.Phase,
			PID:    p.PID,
			Detail: detail,
			Extra: map[string]string{
				"lines":   strconv.FormatInt(p.Lines, 10),
				"elapsed": now.Sub(p.Started).Round(time.Millisecond).String(),
			},
		})
	}
}

// Stop ends the heartbeat and waits for the last tick to finish. It is
// safe to call more than once and on a nil Heartbeat.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}
