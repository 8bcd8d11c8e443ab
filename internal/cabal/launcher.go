package cabal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"cabalrun/internal/buildpipeline"
)

// DefaultBinary is the cabal executable looked up on PATH.
const DefaultBinary = "cabal"

// Options configures a Launcher.
type Options struct {
	Binary        string   // cabal executable; DefaultBinary when empty
	ConfigureArgs []string // extra arguments for `cabal configure`
	BuildArgs     []string // extra arguments for `cabal build`
	EnvFile       string   // optional dotenv file merged over the environment
	Env           []string // KEY=VALUE pairs applied last
	PTY           bool     // run under a pseudo-terminal
	Encoding      string   // IANA charset of the tool output; UTF-8 when empty
	Logger        *slog.Logger
}

// Launcher starts cabal processes. Stdout and stderr are merged into one
// stream, the way the tool prints them on a terminal.
type Launcher struct {
	binary  string
	opts    Options
	env     []string
	decoder *encoding.Decoder
	log     *slog.Logger
}

// NewLauncher validates opts and prepares the process environment.
func NewLauncher(opts Options) (*Launcher, error) {
	l := &Launcher{
		binary: opts.Binary,
		opts:   opts,
		log:    opts.Logger,
	}
	if l.binary == "" {
		l.binary = DefaultBinary
	}
	if l.log == nil {
		l.log = slog.Default()
	}

	env, err := buildEnv(os.Environ(), opts.EnvFile, opts.Env)
	if err != nil {
		return nil, err
	}
	l.env = env

	dec, err := outputDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}
	l.decoder = dec
	return l, nil
}

// Configure starts `cabal configure` in the manifest's directory.
func (l *Launcher) Configure(ctx context.Context, m buildpipeline.Manifest) (buildpipeline.Process, error) {
	return l.start(ctx, m, "configure", l.opts.ConfigureArgs)
}

// Build starts `cabal build` in the manifest's directory.
func (l *Launcher) Build(ctx context.Context, m buildpipeline.Manifest) (buildpipeline.Process, error) {
	return l.start(ctx, m, "build", l.opts.BuildArgs)
}

// Command returns the argv used for a phase.
func (l *Launcher) Command(phase buildpipeline.Phase) []string {
	args := l.opts.ConfigureArgs
	if phase == buildpipeline.PhaseBuild {
		args = l.opts.BuildArgs
	}
	return append([]string{l.binary, string(phase)}, args...)
}

func (l *Launcher) start(ctx context.Context, m buildpipeline.Manifest, sub string, extra []string) (buildpipeline.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args := append([]string{sub}, extra...)
	// #nosec G204 -- the cabal binary and its arguments come from user configuration
	cmd := exec.Command(l.binary, args...)
	cmd.Dir = filepath.Dir(m.Path)
	cmd.Env = l.env

	var (
		out io.ReadCloser
		err error
	)
	if l.opts.PTY {
		out, err = startPTY(cmd)
	} else {
		out, err = startPiped(cmd)
	}
	if err != nil {
		return nil, err
	}
	l.log.Debug("cabal started",
		"unit", m.Unit.Name,
		"cmd", strings.Join(append([]string{l.binary}, args...), " "),
		"dir", cmd.Dir,
		"pid", cmd.Process.Pid,
		"pty", l.opts.PTY,
	)

	var r io.Reader = out
	if l.decoder != nil {
		r = transform.NewReader(out, l.decoder)
	}
	return &process{cmd: cmd, out: r, closer: out}, nil
}

// startPiped wires stdout and stderr to the write end of one pipe so the
// reader sees the lines interleaved as written.
func startPiped(cmd *exec.Cmd) (io.ReadCloser, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, err
	}
	// The child holds its own copy; closing ours lets the reader see EOF.
	_ = w.Close()
	return r, nil
}

type process struct {
	cmd    *exec.Cmd
	out    io.Reader
	closer io.Closer

	waitOnce sync.Once
	exited   atomic.Bool
	code     int
	err      error
}

func (p *process) Output() io.Reader { return p.out }

func (p *process) PID() int { return p.cmd.Process.Pid }

// Wait reaps the process. A non-zero exit, including death by signal, is
// reported through the code rather than the error.
func (p *process) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		p.exited.Store(true)
		_ = p.closer.Close()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.code = 0
		case errors.As(err, &exitErr):
			p.code = exitErr.ExitCode()
		default:
			p.err = err
		}
	})
	return p.code, p.err
}

// Kill terminates the process and everything it spawned.
func (p *process) Kill() error {
	if p.cmd.Process == nil || p.exited.Load() {
		return nil
	}
	err := killProcess(p.cmd.Process)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func buildEnv(base []string, envFile string, extra []string) ([]string, error) {
	vars := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	set := func(k, v string) {
		if _, ok := vars[k]; !ok {
			order = append(order, k)
		}
		vars[k] = v
	}
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			set(k, v)
		}
	}
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
		keys := make([]string, 0, len(fileVars))
		for k := range fileVars {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			set(k, fileVars[k])
		}
	}
	for _, kv := range extra {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid environment entry %q (expected KEY=VALUE)", kv)
		}
		set(k, v)
	}

	env := make([]string, 0, len(order))
	for _, k := range order {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}

func outputDecoder(name string) (*encoding.Decoder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("output encoding %q is not supported", name)
	}
	if isUTF8(name) {
		return nil, nil
	}
	return enc.NewDecoder(), nil
}

func isUTF8(name string) bool {
	n := strings.ToLower(strings.ReplaceAll(name, "-", ""))
	return n == "utf8"
}
