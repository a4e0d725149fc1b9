package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/vidfetch/vidfetch-api/internal/extract"
)

// maxStderrBytes bounds the diagnostic buffer. Only the tail is kept: when
// yt-dlp fails, the actionable message is the last thing it prints.
const maxStderrBytes = 4000

// run spawns the subprocess and supervises it to completion. Stdout is
// streamed fragment-by-fragment into stdoutSink; stderr is accumulated
// (bounded) for diagnostics. Both pipes are drained concurrently; a
// blocked pipe would stall the subprocess on a full buffer.
func (c *Client) run(ctx context.Context, args []string, stdoutSink io.Writer) (string, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH", extract.ErrToolUnavailable, c.binary)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("%w: stdout pipe: %v", extract.ErrExtractionFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("%w: stderr pipe: %v", extract.ErrExtractionFailed, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", extract.ErrToolUnavailable, err)
		}
		return "", fmt.Errorf("%w: start: %v", extract.ErrExtractionFailed, err)
	}

	c.logger.Debug("extraction subprocess started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("binary", c.binary),
	)

	var (
		wg        sync.WaitGroup
		stderrBuf tailBuffer
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		drain(stdout, stdoutSink)
	}()
	go func() {
		defer wg.Done()
		drain(stderr, &stderrBuf)
	}()

	// Readers must finish before Wait closes the pipes. A timeout kill
	// closes both pipe ends, so the readers unblock either way.
	wg.Wait()
	waitErr := cmd.Wait()
	diag := stderrBuf.String()

	if waitErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return diag, fmt.Errorf("%w after %s", extract.ErrTimeout, c.timeout)
		}
		return diag, fmt.Errorf("%w: %s", extract.ErrExtractionFailed, diagnosticTail(diag))
	}
	return diag, nil
}

// drain copies r into w in small fragments until EOF. Write errors from the
// sink are ignored: the parser sink never fails and the stderr buffer is
// in-memory.
func drain(r io.Reader, w io.Writer) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = w.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// diagnosticTail condenses captured stderr into a single-line message.
func diagnosticTail(diag string) string {
	diag = strings.TrimSpace(diag)
	if diag == "" {
		return "no diagnostic output"
	}
	lines := strings.Split(diag, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" && len(lines) > 1 {
		last = strings.TrimSpace(lines[len(lines)-2])
	}
	return last
}

// tailBuffer keeps the last maxStderrBytes written to it.
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > maxStderrBytes {
		t.buf = t.buf[len(t.buf)-maxStderrBytes:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
