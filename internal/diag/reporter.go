package diag

// Reporter is the message sink the build pipeline talks to.
// Calls arrive in the order diagnostics are produced; implementations must
// not reorder them. Report and Progress are fire-and-forget.
type Reporter interface {
	Report(d Diagnostic)
	Progress(msg string)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Report(Diagnostic) {}
func (NopReporter) Progress(string)   {}

// BagReporter is an adapter that stores diagnostics in a *Bag.
// Progress notifications are not kept.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

func (r BagReporter) Progress(string) {}

// MultiReporter fans every call out to each wrapped reporter in order.
type MultiReporter []Reporter

// NewMultiReporter drops nil entries so callers can pass optional sinks.
func NewMultiReporter(reporters ...Reporter) MultiReporter {
	out := make(MultiReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m MultiReporter) Report(d Diagnostic) {
	for _, r := range m {
		r.Report(d)
	}
}

func (m MultiReporter) Progress(msg string) {
	for _, r := range m {
		r.Progress(msg)
	}
}

// CountingReporter tallies diagnostics per severity before forwarding them.
type CountingReporter struct {
	Next   Reporter
	counts [SevError + 1]int
}

func (c *CountingReporter) Report(d Diagnostic) {
	if int(d.Severity) < len(c.counts) {
		c.counts[d.Severity]++
	}
	if c.Next != nil {
		c.Next.Report(d)
	}
}

func (c *CountingReporter) Progress(msg string) {
	if c.Next != nil {
		c.Next.Progress(msg)
	}
}

// Count returns how many diagnostics of sev went through.
func (c *CountingReporter) Count(sev Severity) int {
	if int(sev) >= len(c.counts) {
		return 0
	}
	return c.counts[sev]
}
