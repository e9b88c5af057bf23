package workspace

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending       Status = "pending"
	StatusCompiling     Status = "compiling"
	StatusRunning       Status = "running"
	StatusCompleted     Status = "completed"
	StatusTimedOut      Status = "timedOut"
	StatusCompileFailed Status = "compileFailed"
	StatusRuntimeFailed Status = "runtimeFailed"
	StatusFailed        Status = "failed"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusTimedOut, StatusCompileFailed, StatusRuntimeFailed, StatusFailed:
		return true
	default:
		return false
	}
}

// Job is one execution attempt and the filesystem paths derived from its id.
type Job struct {
	ID         string
	Language   string
	Dir        string
	SourcePath string
	// BinaryPath is empty for languages without a compile phase.
	BinaryPath string
	ClassName  string
	Package    string
	CreatedAt  time.Time
	Status     Status
}

// MainClass is the class to launch. javac -d places a packaged class under its
// package directories, so the name is qualified by Package when one is declared.
func (j *Job) MainClass() string {
	if j.ClassName == "" || j.Package == "" {
		return j.ClassName
	}
	return j.Package + "." + j.ClassName
}
