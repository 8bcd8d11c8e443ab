// Package project locates the cabalrun workspace and resolves the content
// root of every work unit it declares.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"cabalrun/internal/buildpipeline"
)

// Workspace is a parsed workspace file.
type Workspace struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the workspace file layout.
type Config struct {
	Workspace WorkspaceSection `toml:"workspace" yaml:"workspace"`
	Units     []UnitSpec       `toml:"units" yaml:"units"`
}

// WorkspaceSection is the [workspace] table.
type WorkspaceSection struct {
	Name string `toml:"name" yaml:"name"`
}

// UnitSpec declares one work unit. Name defaults to the last element of Root.
type UnitSpec struct {
	Name string `toml:"name" yaml:"name"`
	Root string `toml:"root" yaml:"root"`
}

// LoadWorkspace finds and parses the workspace file above startDir.
// ok is false when there is none.
func LoadWorkspace(startDir string) (*Workspace, bool, error) {
	path, ok, err := FindWorkspace(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	ws, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return ws, true, nil
}

// Load parses the workspace file at path. The format follows the extension.
func Load(path string) (*Workspace, error) {
	var (
		cfg Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		cfg, err = loadTOML(path)
	}
	if err != nil {
		return nil, err
	}
	if err := validate(path, &cfg); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	return &Workspace{
		Path:   abs,
		Root:   filepath.Dir(abs),
		Config: cfg,
	}, nil
}

func loadTOML(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("units") {
		return Config{}, fmt.Errorf("%s: missing [[units]]", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

func loadYAML(path string) (Config, error) {
	// #nosec G304 -- path is the discovered workspace file
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}
	if cfg.Units == nil {
		return Config{}, fmt.Errorf("%s: missing units", path)
	}
	return cfg, nil
}

func validate(path string, cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Units))
	for i := range cfg.Units {
		u := &cfg.Units[i]
		u.Root = strings.TrimSpace(u.Root)
		u.Name = strings.TrimSpace(u.Name)
		if u.Root == "" {
			return fmt.Errorf("%s: units[%d].root is empty", path, i)
		}
		if u.Name == "" {
			u.Name = defaultName(u.Root)
		}
		if _, dup := seen[u.Name]; dup {
			return fmt.Errorf("%s: duplicate unit name %q", path, u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return nil
}

func defaultName(root string) string {
	root = strings.TrimSuffix(strings.ReplaceAll(root, "\\", "/"), "/")
	if i := strings.LastIndexByte(root, '/'); i >= 0 {
		root = root[i+1:]
	}
	if root == "" || root == "." {
		return "root"
	}
	return root
}

// Name returns the workspace name, falling back to the root directory name.
func (w *Workspace) Name() string {
	if n := strings.TrimSpace(w.Config.Workspace.Name); n != "" {
		return n
	}
	return filepath.Base(w.Root)
}

// WorkUnits resolves every declared unit in file order.
func (w *Workspace) WorkUnits() ([]buildpipeline.WorkUnit, error) {
	out := make([]buildpipeline.WorkUnit, 0, len(w.Config.Units))
	for _, u := range w.Config.Units {
		root, err := ContentRoot(w.Root, u.Root)
		if err != nil {
			return nil, fmt.Errorf("%s: unit %q: %w", w.Path, u.Name, err)
		}
		out = append(out, buildpipeline.WorkUnit{Name: u.Name, ContentRoot: root})
	}
	return out, nil
}

// Units picks the work units for a command: explicit roots win, then the
// workspace file above dir, then dir itself as a single unit.
func Units(dir string, roots []string) ([]buildpipeline.WorkUnit, *Workspace, error) {
	if len(roots) > 0 {
		out := make([]buildpipeline.WorkUnit, 0, len(roots))
		for _, r := range roots {
			root, err := ContentRoot(dir, r)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, buildpipeline.WorkUnit{Name: filepath.Base(root), ContentRoot: root})
		}
		return out, nil, nil
	}

	ws, ok, err := LoadWorkspace(dir)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		units, err := ws.WorkUnits()
		return units, ws, err
	}

	root, err := ContentRoot(dir, ".")
	if err != nil {
		return nil, nil, err
	}
	return []buildpipeline.WorkUnit{{Name: filepath.Base(root), ContentRoot: root}}, nil, nil
}
