package trace

import "context"

type tracerKey struct{}

// FromContext returns the tracer stored in ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx. A nil t stores Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// frame is the innermost open span together with the unit and phase it
// belongs to. Spans started below it inherit the labels.
type frame struct {
	span  uint64
	unit  string
	phase string
}

type frameKey struct{}

func frameFrom(ctx context.Context) frame {
	if ctx == nil {
		return frame{}
	}
	f, _ := ctx.Value(frameKey{}).(frame)
	return f
}

// CurrentSpan returns the ID of the innermost span stored in ctx, or 0.
func CurrentSpan(ctx context.Context) uint64 {
	return frameFrom(ctx).span
}

// WithSpan makes span the parent of spans started from the returned
// context. An inert span still passes on its unit and phase labels, while
// its children attach to the nearest recorded ancestor.
func WithSpan(ctx context.Context, span *Span) context.Context {
	if span == nil {
		return ctx
	}
	f := frame{span: span.id, unit: span.unit, phase: span.phase}
	if f.span == 0 {
		f.span = span.parent
	}
	return context.WithValue(ctx, frameKey{}, f)
}

// StartRun opens the span covering one pipeline invocation.
func StartRun(ctx context.Context, units int) (context.Context, *Span) {
	span := Begin(FromContext(ctx), ScopeRun, "run", CurrentSpan(ctx))
	span.WithExtra("units", itoa(units))
	return WithSpan(ctx, span), span
}

// StartUnit opens a unit span. Everything traced below it carries unit.
func StartUnit(ctx context.Context, unit string) (context.Context, *Span) {
	f := frameFrom(ctx)
	f.unit = unit
	f.phase = ""
	span := begin(FromContext(ctx), ScopeUnit, "unit "+unit, f)
	return WithSpan(ctx, span), span
}

// StartPhase opens a configure or build span inside the current unit.
func StartPhase(ctx context.Context, phase string) (context.Context, *Span) {
	f := frameFrom(ctx)
	f.phase = phase
	span := begin(FromContext(ctx), ScopePhase, phase, f)
	return WithSpan(ctx, span), span
}

// StartProcess opens the span for the toolchain process of the current
// phase. When ctx carries an Activity the process is listed there until
// the span ends, so heartbeats can report it.
func StartProcess(ctx context.Context) *Span {
	f := frameFrom(ctx)
	span := begin(FromContext(ctx), ScopeProcess, "cabal "+f.phase, f)
	if a := ActivityFrom(ctx); a != nil {
		span.proc = a.add(f.unit, f.phase)
		span.activity = a
	}
	return span
}
