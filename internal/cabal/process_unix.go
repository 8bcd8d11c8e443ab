//go:build unix

package cabal

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcess signals the whole process group; cabal forks ghc and the
// children must not outlive an aborted build.
func killProcess(p *os.Process) error {
	err := syscall.Kill(-p.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return p.Kill()
	}
	return err
}

// startPTY runs cmd as a session leader on a fresh pseudo-terminal, so its
// pid is also its process group id.
func startPTY(cmd *exec.Cmd) (io.ReadCloser, error) {
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 50, Cols: 200})
	if err != nil {
		return nil, err
	}
	return ptyReader{f}, nil
}

// ptyReader maps the EIO Linux returns once the slave side closes to EOF.
type ptyReader struct {
	*os.File
}

func (r ptyReader) Read(p []byte) (int, error) {
	n, err := r.File.Read(p)
	if errors.Is(err, syscall.EIO) {
		return n, io.EOF
	}
	return n, err
}
