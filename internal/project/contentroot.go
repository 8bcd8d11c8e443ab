package project

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// ContentRoot turns a unit root as written in a workspace file into an
// absolute directory. file: URLs are converted to paths first; relative
// paths are taken relative to base.
func ContentRoot(base, root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", fmt.Errorf("empty content root")
	}
	p := filepath.FromSlash(root)
	if strings.HasPrefix(strings.ToLower(root), "file:") {
		var err error
		if p, err = fromFileURL(root); err != nil {
			return "", err
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve content root %q: %w", root, err)
	}
	return abs, nil
}

func fromFileURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid content root URL %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported content root scheme %q", u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("content root URL %q names a remote host", raw)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", fmt.Errorf("content root URL %q has no path", raw)
	}
	// file:///C:/src → C:/src
	if runtime.GOOS == "windows" && len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}
