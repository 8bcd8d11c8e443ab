package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":       LevelOff,
		"off":    LevelOff,
		"Error":  LevelError,
		"phase":  LevelPhase,
		"detail": LevelDetail,
		" debug": LevelDebug,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeStream, m)
	m, err = ParseMode(" Ring")
	require.NoError(t, err)
	assert.Equal(t, "ring", m.String())
	_, err = ParseMode("disk")
	assert.Error(t, err)
}

func TestShouldEmitDepth(t *testing.T) {
	assert.False(t, LevelOff.ShouldEmit(ScopeRun))
	assert.True(t, LevelPhase.ShouldEmit(ScopePhase))
	assert.False(t, LevelPhase.ShouldEmit(ScopeProcess))
	assert.True(t, LevelDetail.ShouldEmit(ScopeProcess))
	assert.False(t, LevelDetail.ShouldEmit(ScopeLine))
	assert.True(t, LevelDebug.ShouldEmit(ScopeLine))
}

func TestNewOffReturnsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	require.NoError(t, err)
	assert.False(t, tr.Enabled())
}

func TestStreamTextNesting(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	ctx := WithTracer(context.Background(), tr)

	ctx, run := StartRun(ctx, 1)
	ctx, unit := StartUnit(ctx, "core")
	_, phase := StartPhase(ctx, "configure")
	phase.End("ok")
	unit.End("")
	run.End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "] → run")
	assert.Contains(t, lines[1], "]   → unit core")
	assert.Contains(t, lines[2], "→ configure [core]")
	assert.Contains(t, lines[3], "← configure [core] (ok)")
	assert.Contains(t, lines[4], "← unit core")
	assert.Contains(t, lines[5], "← run {units=1}")
}

func TestSpansInheritUnitAndPhase(t *testing.T) {
	ring := NewRingTracer(32, LevelDebug)
	ctx := WithTracer(context.Background(), ring)

	ctx, run := StartRun(ctx, 1)
	ctx, unit := StartUnit(ctx, "core")
	ctx, phase := StartPhase(ctx, "build")
	proc := StartProcess(ctx)
	proc.SetPID(4242)
	proc.Line("error")
	proc.WithExtra("exit", "1").End("")
	phase.End("")
	unit.End("")
	run.End("")

	events := ring.Snapshot()
	require.Len(t, events, 9)
	assert.Equal(t, uint64(0), events[0].ParentID)
	assert.Equal(t, "", events[0].Unit)
	assert.Equal(t, run.ID(), events[1].ParentID)
	assert.Equal(t, "core", events[1].Unit)

	begin := events[3]
	assert.Equal(t, ScopeProcess, begin.Scope)
	assert.Equal(t, "cabal build", begin.Name)
	assert.Equal(t, "core", begin.Unit)
	assert.Equal(t, "build", begin.Phase)
	assert.Equal(t, phase.ID(), begin.ParentID)

	line := events[4]
	assert.Equal(t, KindPoint, line.Kind)
	assert.Equal(t, ScopeLine, line.Scope)
	assert.Equal(t, proc.ID(), line.ParentID)
	assert.Equal(t, "error", line.Detail)
	assert.Equal(t, 4242, line.PID)

	end := events[5]
	assert.Equal(t, KindSpanEnd, end.Kind)
	assert.Equal(t, 4242, end.PID)
	assert.Equal(t, "1", end.Extra["exit"])
}

func TestFilteredScopeIsInert(t *testing.T) {
	ring := NewRingTracer(16, LevelPhase)
	ctx := WithTracer(context.Background(), ring)
	proc := StartProcess(ctx)
	proc.SetPID(7)
	proc.Line("warning")
	proc.End("")
	assert.Empty(t, ring.Snapshot())
	assert.Equal(t, uint64(0), proc.ID())
}

func TestRingWrapsInOrder(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Begin(ring, ScopeRun, name, 0)
	}
	events := ring.Snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, "c", events[0].Name)
	assert.Equal(t, "d", events[1].Name)
	assert.Equal(t, "e", events[2].Name)
}

func TestRingDumpNarrowsToUnit(t *testing.T) {
	ring := NewRingTracer(64, LevelPhase)
	ctx := WithTracer(context.Background(), ring)

	ctx, run := StartRun(ctx, 2)
	for _, name := range []string{"base", "app"} {
		uctx, unit := StartUnit(ctx, name)
		_, phase := StartPhase(uctx, "configure")
		phase.End("")
		unit.End("")
	}
	run.End("aborted")

	var all, app bytes.Buffer
	require.NoError(t, ring.Dump(&all, FormatText, ""))
	require.NoError(t, ring.Dump(&app, FormatText, "app"))

	assert.Contains(t, all.String(), "unit base")
	assert.NotContains(t, app.String(), "base")
	assert.Contains(t, app.String(), "unit app")
	assert.Contains(t, app.String(), "configure [app]")
	assert.Contains(t, app.String(), "← run (aborted)")
}

func TestActivityTracksLiveProcesses(t *testing.T) {
	activity := NewActivity()
	ctx := WithActivity(context.Background(), activity)
	ctx, _ = StartUnit(ctx, "core")
	ctx, _ = StartPhase(ctx, "build")

	proc := StartProcess(ctx)
	proc.SetPID(99)
	proc.Line("warning")
	proc.Line("error")

	live := activity.Snapshot()
	require.Len(t, live, 1)
	assert.Equal(t, "core", live[0].Unit)
	assert.Equal(t, "build", live[0].Phase)
	assert.Equal(t, 99, live[0].PID)
	assert.Equal(t, int64(2), live[0].Lines)

	proc.End("")
	proc.End("")
	assert.Empty(t, activity.Snapshot())
	assert.Nil(t, ActivityFrom(context.Background()))
}

func TestHeartbeatReportsRunningProcess(t *testing.T) {
	ring := NewRingTracer(16, LevelError)
	activity := NewActivity()
	ctx := WithActivity(context.Background(), activity)
	ctx, _ = StartUnit(ctx, "core")
	ctx, _ = StartPhase(ctx, "configure")

	at := time.Now().Add(5 * time.Second)
	h := &Heartbeat{tracer: ring, activity: activity, interval: time.Second, now: func() time.Time { return at }}

	h.beat()
	proc := StartProcess(ctx)
	proc.SetPID(31)
	proc.Line("info")
	h.beat()
	proc.End("")

	events := ring.Snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "idle", events[0].Name)
	assert.Equal(t, "#1", events[0].Detail)

	hb := events[1]
	assert.Equal(t, KindHeartbeat, hb.Kind)
	assert.Equal(t, "cabal configure", hb.Name)
	assert.Equal(t, "core", hb.Unit)
	assert.Equal(t, 31, hb.PID)
	assert.Equal(t, "1", hb.Extra["lines"])
	assert.True(t, strings.HasPrefix(hb.Detail, "#2, quiet "), hb.Detail)
}

func TestHeartbeatStops(t *testing.T) {
	ring := NewRingTracer(64, LevelPhase)
	hb := StartHeartbeat(ring, NewActivity(), time.Millisecond)
	require.NotNil(t, hb)
	require.Eventually(t, func() bool { return len(ring.Snapshot()) > 0 }, time.Second, time.Millisecond)
	hb.Stop()
	hb.Stop()
	assert.Nil(t, StartHeartbeat(Nop, nil, time.Millisecond))
	assert.Nil(t, StartHeartbeat(ring, nil, 0))
}

func TestNDJSONFormat(t *testing.T) {
	ev := &Event{
		Time:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Seq:    7,
		Kind:   KindPoint,
		Scope:  ScopeLine,
		Name:   "diagnostic",
		Unit:   "core",
		Phase:  "build",
		PID:    12,
		Detail: "warning",
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(FormatEvent(ev, FormatNDJSON), &decoded))
	assert.Equal(t, "point", decoded["kind"])
	assert.Equal(t, "line", decoded["scope"])
	assert.Equal(t, "core", decoded["unit"])
	assert.Equal(t, "build", decoded["phase"])
	assert.Equal(t, float64(12), decoded["pid"])
	assert.Equal(t, float64(7), decoded["seq"])
}

func TestMultiDumpsRing(t *testing.T) {
	var stream bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &stream})
	require.NoError(t, err)

	_, run := StartRun(WithTracer(context.Background(), tr), 0)
	run.End("")

	d, ok := tr.(Dumper)
	require.True(t, ok)
	var dump bytes.Buffer
	require.NoError(t, d.Dump(&dump, FormatText, ""))
	assert.Equal(t, stream.String(), dump.String())
}

func TestNewAutoDetectsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.ndjson")
	tr, err := New(Config{Level: LevelPhase, Mode: ModeStream, OutputPath: path})
	require.NoError(t, err)
	st, ok := tr.(*StreamTracer)
	require.True(t, ok)
	assert.Equal(t, FormatNDJSON, st.format)
	require.NoError(t, tr.Close())
}
