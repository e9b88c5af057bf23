package process

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	appErr "codeexec/pkg/errors"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestRunCapturesOutput(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{})

	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "echo out; echo err >&2"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != 0 || res.KilledByTimeout {
		t.Fatalf("unexpected result: %+v", res)
	}
	if strings.TrimSpace(res.Stdout) != "out" || strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("unexpected output: stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

func TestRunPipesStdin(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{})

	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "read a b; echo $((a + b))"},
		Stdin:   "2 3\n",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "5" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{})

	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "echo boom >&2; exit 3"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stderr) != "boom" {
		t.Fatalf("unexpected stderr %q", res.Stderr)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	sh := requireShell(t)
	dir := t.TempDir()
	r := NewRunner(Config{})

	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "pwd -P"},
		Dir:     dir,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != want {
		t.Fatalf("expected pwd %s, got %q", want, res.Stdout)
	}
}

func TestRunTimeout(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{KillGrace: 200 * time.Millisecond})

	start := time.Now()
	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "while :; do :; done"},
		Timeout: 300 * time.Millisecond,
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if !res.KilledByTimeout {
		t.Fatalf("expected KilledByTimeout, got %+v", res)
	}
	if res.ExitCode == 0 {
		t.Fatalf("timed out process must not report exit code 0")
	}
	if elapsed > 3*time.Second {
		t.Fatalf("run returned too late: %v", elapsed)
	}
}

func TestRunParentDeadline(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := r.Run(ctx, Command{Args: []string{sh, "-c", "sleep 5"}})
	if err != nil {
		t.Fatalf("deadline must not be an error: %v", err)
	}
	if !res.KilledByTimeout {
		t.Fatalf("expected KilledByTimeout from parent deadline")
	}
}

func TestRunCanceled(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := r.Run(ctx, Command{Args: []string{sh, "-c", "sleep 5"}, Timeout: 5 * time.Second})
	if err == nil {
		t.Fatalf("expected error on cancellation")
	}
	if res.KilledByTimeout {
		t.Fatalf("cancellation is not a timeout")
	}
}

func TestRunOutputCapped(t *testing.T) {
	sh := requireShell(t)
	r := NewRunner(Config{OutputMaxBytes: 16})

	res, err := r.Run(context.Background(), Command{
		Args:    []string{sh, "-c", "i=0; while [ $i -lt 200 ]; do echo 0123456789; i=$((i+1)); done"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(res.Stdout) != 16 {
		t.Fatalf("expected 16 bytes of stdout, got %d", len(res.Stdout))
	}
	if !res.OutputTruncated {
		t.Fatalf("expected OutputTruncated")
	}
}

func TestRunMissingExecutable(t *testing.T) {
	r := NewRunner(Config{})
	_, err := r.Run(context.Background(), Command{Args: []string{"definitely-not-a-real-binary-xyz"}, Timeout: time.Second})
	if err == nil {
		t.Fatalf("expected start error")
	}
	if !appErr.Is(err, appErr.RuntimeError) {
		t.Fatalf("expected RuntimeError, got %v", appErr.GetCode(err))
	}
}

func TestRunEmptyArgs(t *testing.T) {
	r := NewRunner(Config{})
	if _, err := r.Run(context.Background(), Command{}); err == nil {
		t.Fatalf("expected error for empty args")
	}
}

func TestLimitedBuffer(t *testing.T) {
	b := newLimitedBuffer(5)
	n, err := b.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("write = %d, %v", n, err)
	}
	n, err = b.Write([]byte("defgh"))
	if err != nil || n != 5 {
		t.Fatalf("write = %d, %v", n, err)
	}
	if b.String() != "abcde" || !b.Truncated() {
		t.Fatalf("unexpected buffer %q truncated=%v", b.String(), b.Truncated())
	}
}

func TestLimitedBufferKeepsWholeRunes(t *testing.T) {
	b := newLimitedBuffer(4)
	b.Write([]byte("ab€c"))
	if b.String() != "ab" || !b.Truncated() {
		t.Fatalf("unexpected buffer %q truncated=%v", b.String(), b.Truncated())
	}

	b = newLimitedBuffer(1)
	b.Write([]byte("é"))
	if b.String() != "" || !b.Truncated() {
		t.Fatalf("partial rune kept: %q", b.String())
	}

	b = newLimitedBuffer(5)
	b.Write([]byte("ab€c"))
	if b.String() != "ab€" {
		t.Fatalf("complete rune dropped: %q", b.String())
	}
}
