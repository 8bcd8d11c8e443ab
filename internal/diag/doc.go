// Package diag defines the diagnostic model shared by the classifier, the
// build pipeline and every output sink.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Tool – which external program produced the line (cabal or ghc).
//   - Message – the text as classified; multi-line for warnings and
//     compiler errors.
//   - Location – project-absolute file, line and column. Only Error
//     diagnostics built from a file:line:col: header carry one.
//
// # Emitting diagnostics
//
// Producers talk to a Reporter. Reporter.Report receives diagnostics,
// Reporter.Progress receives short progress notifications ("cabal build").
// BagReporter collects into a Bag, MultiReporter fans out to several sinks
// and CountingReporter keeps per-severity totals for summaries and metrics.
//
// Package diag does not perform any formatting beyond the short one-line
// form used by tests and quiet CLI output. Rendering lives in
// internal/diagfmt.
package diag
