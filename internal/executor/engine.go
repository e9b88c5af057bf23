// Package executor runs untrusted code submissions: it allocates a workspace,
// compiles when needed, runs under the language deadline, validates the
// output and always reclaims the workspace.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"codeexec/internal/executor/language"
	"codeexec/internal/executor/observer"
	"codeexec/internal/executor/pool"
	"codeexec/internal/executor/process"
	"codeexec/internal/executor/sqlrun"
	"codeexec/internal/executor/verdict"
	"codeexec/internal/executor/workspace"
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultMaxCodeBytes  = 64 * 1024
	defaultMaxInputBytes = 1024 * 1024
)

// ProcessRunner runs one child process.
type ProcessRunner interface {
	Run(ctx context.Context, cmd process.Command) (process.Result, error)
}

// SQLRunner runs a SQL script against a fresh database.
type SQLRunner interface {
	Run(ctx context.Context, setup, code string) (sqlrun.Result, error)
}

// Config holds engine limits.
type Config struct {
	MaxCodeBytes  int
	MaxInputBytes int
}

// Deps are the collaborators of the engine. Languages and Workspace are required.
type Deps struct {
	Languages *language.Table
	Workspace *workspace.Manager
	Runner    ProcessRunner
	SQL       SQLRunner
	Pool      *pool.Pool
	Metrics   observer.MetricsRecorder
}

// Engine is the single entry point for code execution.
type Engine struct {
	cfg       Config
	languages *language.Table
	workspace *workspace.Manager
	runner    ProcessRunner
	sql       SQLRunner
	pool      *pool.Pool
	metrics   observer.MetricsRecorder
}

// New creates an engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Languages == nil {
		return nil, appErr.ValidationError("languages", "required")
	}
	if deps.Workspace == nil {
		return nil, appErr.ValidationError("workspace", "required")
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = defaultMaxInputBytes
	}
	if deps.Runner == nil {
		deps.Runner = process.NewRunner(process.Config{})
	}
	if deps.SQL == nil {
		deps.SQL = sqlrun.New(sqlrun.Config{})
	}
	if deps.Metrics == nil {
		deps.Metrics = observer.NoopMetricsRecorder{}
	}
	return &Engine{
		cfg:       cfg,
		languages: deps.Languages,
		workspace: deps.Workspace,
		runner:    deps.Runner,
		sql:       deps.SQL,
		pool:      deps.Pool,
		metrics:   deps.Metrics,
	}, nil
}

// Languages lists the supported languages sorted by id.
func (e *Engine) Languages() []LanguageInfo {
	specs := e.languages.List()
	out := make([]LanguageInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, LanguageInfo{
			ID:        spec.ID,
			Name:      spec.Name,
			Aliases:   spec.Aliases,
			TimeoutMs: spec.TimeoutMs,
			Compiled:  spec.Compiled(),
		})
	}
	return out
}

// Execute runs one request. It never returns an error or panics; every failure
// is reported through the result.
func (e *Engine) Execute(ctx context.Context, req ExecutionRequest) ExecutionResult {
	lang, err := e.languages.Resolve(req.Language)
	if err != nil {
		e.metrics.ObserveRejected(ctx, "unknown", string(ErrorKindUnsupportedLanguage))
		logger.Info(ctx, "execution rejected", zap.String("language", req.Language), zap.Error(err))
		return failure(ErrorKindUnsupportedLanguage, err.Error())
	}

	if err := e.checkLimits(req); err != nil {
		e.metrics.ObserveRejected(ctx, lang.ID, "too_large")
		logger.Info(ctx, "execution rejected", zap.String("language", lang.ID), zap.Error(err))
		return failure(ErrorKindRejected, err.Error())
	}

	if e.pool == nil {
		return e.executeJob(ctx, lang, req)
	}

	var res ExecutionResult
	err = e.pool.Do(ctx, func(ctx context.Context) {
		res = e.executeJob(ctx, lang, req)
	})
	if err != nil {
		if appErr.Is(err, appErr.JudgeQueueFull) {
			e.metrics.ObserveRejected(ctx, lang.ID, "queue_full")
			logger.Warn(ctx, "execution rejected", zap.String("language", lang.ID), zap.Error(err))
			return failure(ErrorKindRejected, err.Error())
		}
		logger.Warn(ctx, "execution abandoned while queued", zap.String("language", lang.ID), zap.Error(err))
		return failure(ErrorKindInternal, "request canceled before execution")
	}
	return res
}

func (e *Engine) checkLimits(req ExecutionRequest) error {
	if size := len(req.Code) + len(req.Setup); size > e.cfg.MaxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "code is too large: %d bytes exceeds limit of %d", size, e.cfg.MaxCodeBytes)
	}
	if size := len(req.Input); size > e.cfg.MaxInputBytes {
		return appErr.Newf(appErr.CustomInputTooLarge, "input is too large: %d bytes exceeds limit of %d", size, e.cfg.MaxInputBytes)
	}
	return nil
}

func (e *Engine) executeJob(ctx context.Context, lang language.Spec, req ExecutionRequest) (res ExecutionResult) {
	start := time.Now()
	job, err := e.workspace.Allocate(lang, req.Code)
	if err != nil {
		logger.Error(ctx, "allocate workspace failed", zap.String("language", lang.ID), zap.Error(err))
		return failure(ErrorKindIO, "failed to prepare workspace")
	}
	ctx = logger.WithJobID(ctx, job.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "execution panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			job.Status = workspace.StatusFailed
			res = failure(ErrorKindInternal, "internal execution error")
		}
		res.JobID = job.ID
		if err := e.workspace.Release(ctx, job); err != nil {
			logger.Error(ctx, "release workspace failed", zap.Error(err))
		}
		e.metrics.ObserveRun(ctx, lang.ID, outcomeLabel(res), time.Duration(res.ExecutionTimeMs)*time.Millisecond)
		logger.Info(ctx, "execution finished",
			zap.String("language", lang.ID),
			zap.String("status", string(job.Status)),
			zap.Bool("passed", res.Passed),
			zap.String("error_kind", string(res.ErrorKind)),
			zap.Int64("run_ms", res.ExecutionTimeMs),
			zap.Duration("total", time.Since(start)),
		)
	}()

	if err := e.workspace.Materialize(job, req.Code); err != nil {
		job.Status = workspace.StatusFailed
		logger.Error(ctx, "materialize source failed", zap.Error(err))
		return failure(ErrorKindIO, "failed to write source file")
	}

	// One deadline covers compile and run together.
	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(lang.TimeoutMs)*time.Millisecond)
	defer cancel()

	if lang.InProcess() {
		return e.runSQL(jobCtx, job, req)
	}

	vars := language.Vars{
		Src:   job.SourcePath,
		Bin:   job.BinaryPath,
		Dir:   job.Dir,
		Class: job.MainClass(),
	}
	if job.ClassName == "" {
		vars.Class = language.DefaultBaseName
	}

	if lang.Compiled() {
		if failed, ok := e.compile(jobCtx, lang, job, vars); !ok {
			return failed
		}
	}
	return e.run(jobCtx, lang, job, vars, req)
}

func (e *Engine) compile(ctx context.Context, lang language.Spec, job *workspace.Job, vars language.Vars) (ExecutionResult, bool) {
	job.Status = workspace.StatusCompiling
	args, err := lang.CompileArgs(vars)
	if err != nil {
		job.Status = workspace.StatusFailed
		logger.Error(ctx, "build compile command failed", zap.Error(err))
		return failure(ErrorKindInternal, "invalid compile command configuration"), false
	}

	logger.Debug(ctx, "compiling", zap.Strings("args", args))
	res, err := e.runner.Run(ctx, process.Command{Args: args, Dir: job.Dir})
	ok := err == nil && !res.KilledByTimeout && res.ExitCode == 0
	e.metrics.ObserveCompile(ctx, lang.ID, ok, res.Duration)
	switch {
	case res.KilledByTimeout:
		job.Status = workspace.StatusTimedOut
		return failure(ErrorKindTimeout, verdict.TimeoutMessage), false
	case err != nil:
		if appErr.Is(err, appErr.JudgeSystemError) {
			job.Status = workspace.StatusFailed
			return failure(ErrorKindInternal, "execution canceled"), false
		}
		job.Status = workspace.StatusCompileFailed
		logger.Warn(ctx, "compiler could not be started", zap.Strings("args", args), zap.Error(err))
		return failure(ErrorKindCompile, err.Error()), false
	case res.ExitCode != 0:
		job.Status = workspace.StatusCompileFailed
		return failure(ErrorKindCompile, diagnostics(res, fmt.Sprintf("compilation failed with exit code %d", res.ExitCode))), false
	}
	return ExecutionResult{}, true
}

func (e *Engine) run(ctx context.Context, lang language.Spec, job *workspace.Job, vars language.Vars, req ExecutionRequest) ExecutionResult {
	job.Status = workspace.StatusRunning
	args, err := lang.RunArgs(vars)
	if err != nil {
		job.Status = workspace.StatusFailed
		logger.Error(ctx, "build run command failed", zap.Error(err))
		return failure(ErrorKindInternal, "invalid run command configuration")
	}

	logger.Debug(ctx, "running", zap.Strings("args", args), zap.Int("stdin_bytes", len(req.Input)))
	res, err := e.runner.Run(ctx, process.Command{Args: args, Dir: job.Dir, Stdin: req.Input})
	elapsed := res.Duration.Milliseconds()
	switch {
	case res.KilledByTimeout:
		job.Status = workspace.StatusTimedOut
		out := failure(ErrorKindTimeout, verdict.TimeoutMessage)
		out.ExecutionTimeMs = elapsed
		return out
	case err != nil:
		if appErr.Is(err, appErr.JudgeSystemError) {
			job.Status = workspace.StatusFailed
			return failure(ErrorKindInternal, "execution canceled")
		}
		job.Status = workspace.StatusRuntimeFailed
		logger.Warn(ctx, "program could not be started", zap.Strings("args", args), zap.Error(err))
		return failure(ErrorKindRuntime, err.Error())
	case res.OutputTruncated:
		return outputLimit(job, elapsed)
	case res.ExitCode != 0:
		job.Status = workspace.StatusRuntimeFailed
		out := failure(ErrorKindRuntime, diagnostics(res, fmt.Sprintf("program exited with code %d", res.ExitCode)))
		out.ExecutionTimeMs = elapsed
		return out
	}

	job.Status = workspace.StatusCompleted
	return e.complete(verdict.Normalize(res.Stdout), elapsed, req.ExpectedOutput)
}

func (e *Engine) runSQL(ctx context.Context, job *workspace.Job, req ExecutionRequest) ExecutionResult {
	job.Status = workspace.StatusRunning
	res, err := e.sql.Run(ctx, req.Setup, req.Code)
	elapsed := res.Duration.Milliseconds()
	switch {
	case res.KilledByTimeout:
		job.Status = workspace.StatusTimedOut
		out := failure(ErrorKindTimeout, verdict.TimeoutMessage)
		out.ExecutionTimeMs = elapsed
		return out
	case err != nil:
		kind := ErrorKindRuntime
		job.Status = workspace.StatusRuntimeFailed
		if !appErr.Is(err, appErr.RuntimeError) {
			kind = ErrorKindInternal
			job.Status = workspace.StatusFailed
		}
		out := failure(kind, err.Error())
		out.ExecutionTimeMs = elapsed
		return out
	case res.OutputTruncated:
		return outputLimit(job, elapsed)
	}
	job.Status = workspace.StatusCompleted
	return e.complete(verdict.Normalize(res.Output), elapsed, req.ExpectedOutput)
}

// outputLimit fails a run whose captured output was cut; a prefix is never judged.
func outputLimit(job *workspace.Job, elapsedMs int64) ExecutionResult {
	job.Status = workspace.StatusRuntimeFailed
	out := failure(ErrorKindOutputLimit, verdict.OutputLimitMessage)
	out.ExecutionTimeMs = elapsedMs
	return out
}

func (e *Engine) complete(output string, elapsedMs int64, expected *string) ExecutionResult {
	res := ExecutionResult{Output: output, ExecutionTimeMs: elapsedMs}
	res.Passed = verdict.Validate(verdict.Outcome{Output: output}, expected)
	return res
}

// diagnostics picks the text shown for a failed process: stderr, then stdout, then fallback.
func diagnostics(res process.Result, fallback string) string {
	if msg := verdict.Normalize(res.Stderr); msg != "" {
		return msg
	}
	if msg := verdict.Normalize(res.Stdout); msg != "" {
		return msg
	}
	return fallback
}

func outcomeLabel(res ExecutionResult) string {
	switch {
	case res.Error:
		return string(res.ErrorKind)
	case res.Passed:
		return "passed"
	default:
		return "wrong_output"
	}
}
