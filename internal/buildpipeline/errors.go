package buildpipeline

import "errors"

var (
	// ErrPhaseFailed marks a configure or build process that exited non-zero.
	ErrPhaseFailed = errors.New("phase failed")
	// ErrOutput marks a failure reading process output or observing its exit.
	ErrOutput = errors.New("process output failure")
	// ErrInterrupted marks a run cancelled through its context.
	ErrInterrupted = errors.New("interrupted")
	// ErrLookup marks a manifest lookup that failed with an I/O error.
	ErrLookup = errors.New("manifest lookup failed")
	// ErrLaunch marks a process that could not be started.
	ErrLaunch = errors.New("cannot start process")
)
