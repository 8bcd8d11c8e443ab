// Package report writes a machine-readable summary of one pipeline run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"cabalrun/internal/buildpipeline"
	"cabalrun/internal/diag"
	"cabalrun/internal/diagfmt"
)

// Format is a report encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name. An empty name picks the format from
// the extension of path.
func ParseFormat(name, path string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return FormatYAML, nil
		case ".msgpack", ".mpk":
			return FormatMsgpack, nil
		default:
			return FormatJSON, nil
		}
	}
	switch f := Format(name); f {
	case FormatJSON, FormatYAML, FormatMsgpack:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected: json|yaml|msgpack)", name)
	}
}

// NewInvocationID returns a fresh id for one run.
func NewInvocationID() string {
	return uuid.NewString()
}

// Report is the persisted summary.
type Report struct {
	ID          string                   `json:"id" yaml:"id"`
	Workspace   string                   `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	StartedAt   time.Time                `json:"started_at" yaml:"started_at"`
	ElapsedMS   int64                    `json:"elapsed_ms" yaml:"elapsed_ms"`
	OK          bool                     `json:"ok" yaml:"ok"`
	Error       string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Units       []Unit                   `json:"units" yaml:"units"`
	Diagnostics []diagfmt.DiagnosticJSON `json:"diagnostics" yaml:"diagnostics"`
}

// Unit summarises one work unit.
type Unit struct {
	Name        string        `json:"name" yaml:"name"`
	ContentRoot string        `json:"content_root" yaml:"content_root"`
	Manifest    string        `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Status      string        `json:"status" yaml:"status"`
	FailedPhase string        `json:"failed_phase,omitempty" yaml:"failed_phase,omitempty"`
	ExitCode    int           `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Warnings    int           `json:"warnings" yaml:"warnings"`
	Errors      int           `json:"errors" yaml:"errors"`
	Phases      []PhaseTiming `json:"phases,omitempty" yaml:"phases,omitempty"`
}

// PhaseTiming is the duration of one phase in milliseconds.
type PhaseTiming struct {
	Phase string `json:"phase" yaml:"phase"`
	MS    int64  `json:"ms" yaml:"ms"`
}

// Build assembles a report from a pipeline result.
func Build(id, workspace string, started time.Time, res buildpipeline.Result, runErr error, diags []diag.Diagnostic) *Report {
	r := &Report{
		ID:          id,
		Workspace:   workspace,
		StartedAt:   started.UTC(),
		ElapsedMS:   res.Elapsed.Milliseconds(),
		OK:          res.OK,
		Units:       make([]Unit, 0, len(res.Units)),
		Diagnostics: diagfmt.BuildDiagnosticsOutput(diags, diagfmt.JSONOpts{PathMode: diagfmt.PathModeAbsolute}).Diagnostics,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	for _, u := range res.Units {
		ru := Unit{
			Name:        u.Unit.Name,
			ContentRoot: u.Unit.ContentRoot,
			Manifest:    u.Manifest,
			Status:      string(u.Status),
			FailedPhase: string(u.FailedPhase),
			ExitCode:    u.ExitCode,
			Warnings:    u.Warnings,
			Errors:      u.Errors,
		}
		for _, phase := range buildpipeline.Phases() {
			if u.Timings.Has(phase) {
				ru.Phases = append(ru.Phases, PhaseTiming{Phase: string(phase), MS: u.Timings.Duration(phase).Milliseconds()})
			}
		}
		r.Units = append(r.Units, ru)
	}
	return r
}

// Encode writes r to w.
func (r *Report) Encode(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// Decode reads a report written by Encode.
func Decode(rd io.Reader, f Format) (*Report, error) {
	var r Report
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(rd).Decode(&r)
	case FormatYAML:
		err = yaml.NewDecoder(rd).Decode(&r)
	case FormatMsgpack:
		dec := msgpack.NewDecoder(rd)
		dec.SetCustomStructTag("json")
		err = dec.Decode(&r)
	default:
		err = fmt.Errorf("unknown report format %q", f)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// WriteFile writes r to path through a temporary file and an atomic rename.
func (r *Report) WriteFile(path string, f Format) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := r.Encode(tmp, f); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string, f Format) (*Report, error) {
	// #nosec G304 -- path is chosen by the user
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file, f)
}
