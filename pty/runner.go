// ABOUTME: Runner executes a single shell command inside a real PTY, with
// ABOUTME: optional sudo credential injection via a sentinel prompt and a
// ABOUTME: trap-protected background credential refresher. Grounded on the
// ABOUTME: Python original's backend/engine/pty_runner.py.
package pty

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

// sudoSentinel is written as sudo's custom prompt so the runner can tell
// the password request apart from ordinary command output. Matches the
// Python original's FLOWX_SUDO_PROMPT: sentinel exactly.
const sudoSentinel = "FLOWX_SUDO_PROMPT:"

// refreshInterval matches the Python original's 50s sudo -n -v cadence,
// safely inside sudo's default 5 minute credential cache window.
const refreshInterval = 50 * time.Second

// OutputFunc receives each chunk of streamed, sentinel-filtered output as
// it arrives, for live display over the event bus.
type OutputFunc func(chunk string)

// Result is what a one-shot PTY-backed command execution produces.
type Result struct {
	ExitCode int
	Stdout   string
}

// Runner executes one-shot commands in a pseudo-terminal.
type Runner struct{}

// NewRunner returns a Runner. It carries no state; each Run call is
// independent.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes command inside a PTY. If sudoPassword is non-empty, the
// command is wrapped in a trap-protected script that authenticates sudo
// via the sentinel prompt, refreshes the credential cache every
// refreshInterval in the background, and tears the refresher down on exit
// regardless of how the command finishes. onOutput, if non-nil, is called
// for every streamed chunk (with sentinel lines filtered out).
func (r *Runner) Run(ctx context.Context, command string, sudoPassword string, onOutput OutputFunc) (Result, error) {
	script := wrapScript(command, sudoPassword != "")

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", script)
	f, err := pty.Start(cmd)
	if err != nil {
		return Result{}, fmt.Errorf("allocate pty: %w", err)
	}
	defer f.Close()

	var out bytes.Buffer
	authDone := sudoPassword == ""
	authFailed := false

	readErrCh := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readErrCh <- streamOutput(f, sudoPassword, &authDone, &authFailed, &out, onOutput)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	if authFailed {
		return Result{ExitCode: -1, Stdout: out.String()}, fmt.Errorf("sudo authentication failed")
	}

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return Result{ExitCode: exitCode, Stdout: out.String()}, nil
}

// wrapScript builds the bash wrapper: when sudo is needed it primes sudo's
// credential cache using the sentinel prompt, starts a background
// keep-alive loop, installs a trap to kill that loop on any exit path, then
// evals the user's command.
func wrapScript(command string, needsSudo bool) string {
	if !needsSudo {
		return command
	}
	return strings.Join([]string{
		`set +e`,
		fmt.Sprintf(`sudo -S -k -p "%s" -v`, sudoSentinel),
		`__flowx_refresh() { while true; do sleep 50; sudo -n -v 2>/dev/null; done; }`,
		`__flowx_refresh & __FLOWX_REFRESH_PID=$!`,
		`trap 'kill $__FLOWX_REFRESH_PID 2>/dev/null' EXIT`,
		"eval " + shellQuote(command),
	}, "\n")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// streamOutput reads PTY output in small non-blocking-ish chunks (the PTY
// read itself blocks, but the chunk size is small enough to keep latency
// low), handles the two-phase sudo handshake, filters sentinel lines from
// what's forwarded to onOutput/out, and watches for sudo's rejection
// message within the first second after the password is sent.
func streamOutput(f io.ReadWriter, sudoPassword string, authDone *bool, authFailed *bool, out *bytes.Buffer, onOutput OutputFunc) error {
	reader := bufio.NewReaderSize(f, 4096)
	sentPassword := false
	var sinceSent time.Time

	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])

			if !*authDone {
				if !sentPassword && strings.Contains(chunk, sudoSentinel) {
					if _, werr := f.Write([]byte(sudoPassword + "\n")); werr != nil {
						return werr
					}
					sentPassword = true
					sinceSent = time.Now()
				}
				if sentPassword && !sinceSent.IsZero() && time.Since(sinceSent) < time.Second {
					if strings.Contains(chunk, "Sorry, try again") || strings.Contains(chunk, "incorrect sudo password") {
						*authFailed = true
						return nil
					}
				}
				if sentPassword && time.Since(sinceSent) >= time.Second {
					*authDone = true
				}
			}

			filtered := filterSentinelLines(chunk)
			if filtered != "" {
				out.WriteString(filtered)
				if onOutput != nil {
					onOutput(filtered)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			// A PTY master read after the child exits typically returns an
			// I/O error rather than EOF; treat any post-exit read failure
			// as a clean end of stream.
			return nil
		}
	}
}

func filterSentinelLines(chunk string) string {
	if !strings.Contains(chunk, sudoSentinel) {
		return chunk
	}
	lines := strings.Split(chunk, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.Contains(l, sudoSentinel) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
