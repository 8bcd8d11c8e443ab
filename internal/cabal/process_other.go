//go:build !unix

package cabal

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func killProcess(p *os.Process) error {
	return p.Kill()
}

func startPTY(*exec.Cmd) (io.ReadCloser, error) {
	return nil, errors.New("pseudo-terminal mode is not supported on this platform")
}
