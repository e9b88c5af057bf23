package executor

import appErr "codeexec/pkg/errors"

// ExecutionRequest is one submission. ExpectedOutput is nil when the caller
// only wants the program run; a non-nil empty string expects empty output.
type ExecutionRequest struct {
	Code           string  `json:"code"`
	Language       string  `json:"language"`
	Input          string  `json:"input,omitempty"`
	ExpectedOutput *string `json:"expectedOutput,omitempty"`
	// Setup is only used by SQL: statements run before Code whose output is discarded.
	Setup string `json:"setup,omitempty"`
}

// ErrorKind classifies why an execution did not complete normally.
type ErrorKind string

const (
	ErrorKindNone                ErrorKind = ""
	ErrorKindUnsupportedLanguage ErrorKind = "unsupported_language"
	ErrorKindIO                  ErrorKind = "io"
	ErrorKindCompile             ErrorKind = "compile"
	ErrorKindRuntime             ErrorKind = "runtime"
	ErrorKindTimeout             ErrorKind = "timeout"
	ErrorKindOutputLimit         ErrorKind = "output_limit"
	ErrorKindRejected            ErrorKind = "rejected"
	ErrorKindInternal            ErrorKind = "internal"
)

// Code maps the kind onto the service error code space.
func (k ErrorKind) Code() appErr.ErrorCode {
	switch k {
	case ErrorKindNone:
		return appErr.Success
	case ErrorKindUnsupportedLanguage:
		return appErr.LanguageNotSupported
	case ErrorKindIO:
		return appErr.WorkspaceError
	case ErrorKindCompile:
		return appErr.CompilationError
	case ErrorKindRuntime:
		return appErr.RuntimeError
	case ErrorKindTimeout:
		return appErr.TimeLimitExceeded
	case ErrorKindOutputLimit:
		return appErr.OutputLimitExceeded
	case ErrorKindRejected:
		return appErr.JudgeQueueFull
	default:
		return appErr.JudgeSystemError
	}
}

// ExecutionResult is produced once per request and never persisted.
type ExecutionResult struct {
	Output          string    `json:"output"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`
	Passed          bool      `json:"passed"`
	Error           bool      `json:"error"`
	ErrorKind       ErrorKind `json:"errorKind,omitempty"`
	JobID           string    `json:"jobId,omitempty"`
}

// LanguageInfo is the public description of a supported language.
type LanguageInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Aliases   []string `json:"aliases,omitempty"`
	TimeoutMs int64    `json:"timeoutMs"`
	Compiled  bool     `json:"compiled"`
}

func failure(kind ErrorKind, output string) ExecutionResult {
	return ExecutionResult{Output: output, Error: true, ErrorKind: kind}
}
