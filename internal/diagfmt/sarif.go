package diagfmt

import (
	"encoding/json"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"cabalrun/internal/diag"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// Sarif writes warnings and errors as a SARIF 2.1.0 log. Info output is
// build chatter and is left out.
func Sarif(w io.Writer, diags []diag.Diagnostic, meta SarifRunMeta) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: meta.ToolName, Version: meta.ToolVersion}},
		Results: make([]sarifResult, 0, len(diags)),
	}
	failed := false
	for _, d := range diags {
		if d.Severity == diag.SevInfo {
			continue
		}
		if d.Severity == diag.SevError {
			failed = true
		}
		res := sarifResult{
			RuleID:  ruleID(d),
			Level:   sarifLevel(d.Severity),
			Message: sarifMessage{Text: strings.TrimRight(d.Message, "\n")},
		}
		if d.Location != nil {
			res.Locations = []sarifLocation{{
				PhysicalLocation: sarifPhysical{
					ArtifactLocation: sarifArtifact{URI: artifactURI(d.Location.File, meta.BaseDir)},
					Region:           region(d.Location),
				},
			}}
		}
		run.Results = append(run.Results, res)
	}
	if len(meta.InvocationArgs) > 0 {
		run.Invocations = []sarifInvocation{{Arguments: meta.InvocationArgs, ExecutionSuccessful: !failed}}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sarifLog{Schema: sarifSchema, Version: sarifVersion, Runs: []sarifRun{run}})
}

func ruleID(d diag.Diagnostic) string {
	tool := string(d.Tool)
	if tool == "" {
		tool = "cabal"
	}
	return tool + "/" + d.Severity.Label()
}

func sarifLevel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

// region drops non-positive positions; SARIF lines and columns are 1-based.
func region(loc *diag.Location) *sarifRegion {
	r := &sarifRegion{}
	if loc.Line > 0 {
		r.StartLine = loc.Line
	}
	if loc.Column > 0 {
		r.StartColumn = loc.Column
	}
	if r.StartLine == 0 {
		return nil
	}
	return r
}

// artifactURI is relative to baseDir when the file lives below it, and a
// file URL otherwise.
func artifactURI(file, baseDir string) string {
	rel := diag.RelativePath(file, baseDir)
	if rel != filepath.ToSlash(file) || !filepath.IsAbs(file) {
		return rel
	}
	return FileURI(file)
}

// FileURI converts an absolute path to a file:// URL.
func FileURI(p string) string {
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String()
}
