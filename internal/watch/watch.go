// Package watch reruns a build whenever Haskell sources or package
// descriptions change under a set of content roots.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"cabalrun/internal/cabal"
)

// DefaultDebounce is the quiet period after the last change before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// skipDirs are never watched: build output and VCS metadata.
var skipDirs = map[string]bool{
	".git":          true,
	"dist":          true,
	"dist-newstyle": true,
	".stack-work":   true,
}

// Options configures a Watcher.
type Options struct {
	Roots    []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher observes content roots and triggers rebuilds.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []root
	debounce time.Duration
	log      *slog.Logger
}

type root struct {
	path   string
	ignore *ignore.GitIgnore
}

// New starts watching every directory below opts.Roots. Directories matched
// by a root's .gitignore are skipped.
func New(opts Options) (*Watcher, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("watch: no roots")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: opts.Debounce,
		log:      opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	for _, p := range opts.Roots {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, err
		}
		r := root{path: abs, ignore: loadIgnore(abs)}
		w.roots = append(w.roots, r)
		if err := w.addRecursive(abs); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run calls rebuild once, then again after every debounced batch of
// relevant changes, until ctx is cancelled. Changes arriving during a
// rebuild queue exactly one follow-up rebuild. A rebuild error is logged
// and watching continues.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context) error) error {
	requests := make(chan struct{}, 1)
	requests <- struct{}{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.collect(ctx, requests)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-requests:
				if err := rebuild(ctx); err != nil && ctx.Err() == nil {
					w.log.Warn("rebuild failed", "err", err)
				}
			}
		}
	})
	return g.Wait()
}

func (w *Watcher) collect(ctx context.Context, requests chan<- struct{}) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "err", err)
		case <-timer.C:
			w.log.Info("change detected, rebuilding")
			select {
			case requests <- struct{}{}:
			default:
			}
		}
	}
}

// handle registers new directories and reports whether ev should trigger
// a rebuild.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if w.ignored(ev.Name) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.log.Warn("watch new directory", "dir", ev.Name, "err", err)
			}
			return false
		}
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	return Relevant(ev.Name)
}

// Relevant reports whether a change to path can affect a build.
func Relevant(path string) bool {
	return cabal.IsSource(path) || cabal.IsManifest(path) || filepath.Base(path) == "cabal.project"
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (skipDirs[d.Name()] || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	for _, r := range w.roots {
		rel, err := filepath.Rel(r.path, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, part := range strings.Split(rel, "/") {
			if skipDirs[part] {
				return true
			}
		}
		if r.ignore != nil && r.ignore.MatchesPath(rel) {
			return true
		}
	}
	return false
}

func loadIgnore(dir string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
