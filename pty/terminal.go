// ABOUTME: Session is a long-lived interactive PTY backing /ws/terminal:
// ABOUTME: raw read/write plus resize, grounded on the Python original's
// ABOUTME: backend/app/core/session_manager.py PtySession.
package pty

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Session wraps one interactive shell's PTY master, safe for concurrent
// Write/Resize calls from a websocket read loop while Read is drained by
// another goroutine.
type Session struct {
	cmd *exec.Cmd
	pty *os.File

	mu     sync.Mutex
	closed bool
}

// DefaultSize reports the size a freshly opened terminal socket should use
// before the client sends its first resize frame: the daemon's own
// controlling terminal size if it has one, else a conservative 80x24.
func DefaultSize() (cols, rows uint16) {
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
		return uint16(w), uint16(h)
	}
	return 80, 24
}

// NewSession spawns shellCmd (e.g. "/bin/bash") attached to a fresh PTY
// with the given initial size.
func NewSession(shellCmd string, cols, rows uint16) (*Session, error) {
	cmd := exec.Command(shellCmd)
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("start interactive pty: %w", err)
	}
	return &Session{cmd: cmd, pty: f}, nil
}

// Read satisfies io.Reader by delegating to the PTY master, so callers can
// pump Session directly into a websocket writer.
func (s *Session) Read(p []byte) (int, error) {
	return s.pty.Read(p)
}

// Write sends keystrokes to the shell.
func (s *Session) Write(p []byte) (int, error) {
	return s.pty.Write(p)
}

// Resize updates the PTY's window size, matching the Python original's
// fcntl.ioctl(TIOCSWINSZ) call.
func (s *Session) Resize(cols, rows uint16) error {
	return pty.Setsize(s.pty, &pty.Winsize{Cols: cols, Rows: rows})
}

// Close kills the shell process and releases the PTY master.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.pty.Close()
}
