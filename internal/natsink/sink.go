// Package natsink publishes diagnostics and progress to NATS subjects.
package natsink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/diag"
	"cabalrun/internal/diagfmt"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "cabalrun"

// InvocationHeader carries the run id on every message.
const InvocationHeader = "Cabalrun-Invocation"

// Publisher is the part of *nats.Conn the sink uses.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// DiagnosticMessage is the payload on <prefix>.diagnostic.<severity>.
type DiagnosticMessage struct {
	Invocation string                 `json:"invocation"`
	Seq        uint64                 `json:"seq"`
	Time       time.Time              `json:"time"`
	Diagnostic diagfmt.DiagnosticJSON `json:"diagnostic"`
}

// ProgressMessage is the payload on <prefix>.progress.
type ProgressMessage struct {
	Invocation string    `json:"invocation"`
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"time"`
	Message    string    `json:"message"`
}

// EventMessage is the payload on <prefix>.event.
type EventMessage struct {
	Invocation string    `json:"invocation"`
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"time"`
	Unit       string    `json:"unit,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms,omitempty"`
}

// Sink is a diag.Reporter and buildpipeline.ProgressSink. Publishing is
// fire-and-forget: failures are logged and counted, never returned.
type Sink struct {
	pub        Publisher
	prefix     string
	invocation string
	log        *slog.Logger

	seq    atomic.Uint64
	failed atomic.Uint64
}

// New wraps an established publisher.
func New(pub Publisher, prefix, invocation string, log *slog.Logger) *Sink {
	if prefix == "" {
		prefix = DefaultSubject
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sink{pub: pub, prefix: prefix, invocation: invocation, log: log}
}

// Connect dials url and returns a sink with its connection.
func Connect(url, prefix, invocation string, log *slog.Logger) (*Sink, *nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("cabalrun"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s := New(conn, prefix, invocation, log)
	s.log.Info("NATS sink connected", "url", url, "subject", s.prefix)
	return s, conn, nil
}

// Report publishes d on <prefix>.diagnostic.<severity>.
func (s *Sink) Report(d diag.Diagnostic) {
	s.publish(s.prefix+".diagnostic."+d.Severity.Label(), DiagnosticMessage{
		Invocation: s.invocation,
		Seq:        s.seq.Add(1),
		Time:       time.Now().UTC(),
		Diagnostic: diagfmt.MakeDiagnosticJSON(d, diagfmt.PathModeAbsolute, ""),
	})
}

// Progress publishes msg on <prefix>.progress.
func (s *Sink) Progress(msg string) {
	s.publish(s.prefix+".progress", ProgressMessage{
		Invocation: s.invocation,
		Seq:        s.seq.Add(1),
		Time:       time.Now().UTC(),
		Message:    msg,
	})
}

// OnEvent publishes pipeline status changes on <prefix>.event.
func (s *Sink) OnEvent(evt buildpipeline.Event) {
	m := EventMessage{
		Invocation: s.invocation,
		Seq:        s.seq.Add(1),
		Time:       time.Now().UTC(),
		Unit:       evt.Unit,
		Phase:      string(evt.Phase),
		Status:     string(evt.Status),
		ElapsedMS:  evt.Elapsed.Milliseconds(),
	}
	if evt.Err != nil {
		m.Error = evt.Err.Error()
	}
	s.publish(s.prefix+".event", m)
}

// Failed returns how many messages could not be published.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

func (s *Sink) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.failed.Add(1)
		s.log.Warn("failed to marshal NATS payload", "subject", subject, "err", err)
		return
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(InvocationHeader, s.invocation)
	if err := s.pub.PublishMsg(msg); err != nil {
		s.failed.Add(1)
		s.log.Warn("failed to publish to NATS", "subject", subject, "err", err)
	}
}
