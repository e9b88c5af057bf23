// Package process runs one command as a child process under a wall-clock deadline.
package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultOutputMaxBytes int64 = 64 * 1024
	defaultKillGrace            = 500 * time.Millisecond
)

// Config controls runner behavior.
type Config struct {
	// OutputMaxBytes caps each of stdout and stderr.
	OutputMaxBytes int64
	// KillGrace bounds how long Wait may block on output pipes after the process is gone.
	KillGrace time.Duration
}

// Command is one process invocation.
type Command struct {
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration
}

// Result is the raw outcome of a finished process.
type Result struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	KilledByTimeout bool
	OutputTruncated bool
	Duration        time.Duration
}

// Runner starts processes in their own process group and kills the whole
// group when the deadline passes or the caller cancels.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	if cfg.OutputMaxBytes <= 0 {
		cfg.OutputMaxBytes = defaultOutputMaxBytes
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	return &Runner{cfg: cfg}
}

// Run executes the command and waits for it. A non-zero exit is reported in the
// result, not as an error; errors mean the process could not be run at all.
func (r *Runner) Run(ctx context.Context, command Command) (Result, error) {
	if len(command.Args) == 0 || strings.TrimSpace(command.Args[0]) == "" {
		return Result{ExitCode: -1}, appErr.ValidationError("args", "required")
	}

	runCtx := ctx
	if command.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}
	if err := runCtx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{ExitCode: -1, KilledByTimeout: true}, nil
		}
		return Result{ExitCode: -1}, appErr.Wrapf(err, appErr.JudgeSystemError, "process canceled")
	}

	stdout := newLimitedBuffer(r.cfg.OutputMaxBytes)
	stderr := newLimitedBuffer(r.cfg.OutputMaxBytes)

	cmd := exec.CommandContext(runCtx, command.Args[0], command.Args[1:]...)
	cmd.Dir = command.Dir
	if len(command.Env) > 0 {
		cmd.Env = command.Env
	}
	cmd.Stdin = strings.NewReader(command.Stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcAttr(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = r.cfg.KillGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, appErr.Wrapf(err, appErr.RuntimeError, "start %s failed: %v", command.Args[0], err)
	}
	// The leader stays unreaped until its group is gone, so the group id
	// cannot be handed to another job in between.
	if err := killGroupAfterExit(cmd); err != nil {
		logger.Warn(ctx, "kill process group failed", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
	}
	waitErr := cmd.Wait()
	duration := time.Since(start)

	res := Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExitCode:        exitCodeFromErr(waitErr, cmd.ProcessState),
		OutputTruncated: stdout.Truncated() || stderr.Truncated(),
		Duration:        duration,
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			res.KilledByTimeout = true
			if res.ExitCode == 0 {
				res.ExitCode = -1
			}
			return res, nil
		}
		return res, appErr.Wrapf(ctxErr, appErr.JudgeSystemError, "process canceled")
	}
	return res, nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
