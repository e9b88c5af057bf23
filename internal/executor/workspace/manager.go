// Package workspace allocates per-job directories and removes them afterwards.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"codeexec/internal/executor/language"
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	publicClassPattern = regexp.MustCompile(`(?m)^\s*public\s+(?:(?:final|abstract|strictfp)\s+)*class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	anyClassPattern    = regexp.MustCompile(`(?m)^\s*(?:(?:final|abstract|strictfp)\s+)*class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	packagePattern     = regexp.MustCompile(`(?m)^\s*package\s+([A-Za-z_$][A-Za-z0-9_$]*(?:\s*\.\s*[A-Za-z_$][A-Za-z0-9_$]*)*)\s*;`)
)

// Manager owns the workspace root and every job directory below it.
type Manager struct {
	root string
	now  func() time.Time
}

// NewManager creates the root directory if needed.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, appErr.ValidationError("workspace.root", "required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "resolve workspace root failed")
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace root failed")
	}
	return &Manager{root: abs, now: time.Now}, nil
}

// Root returns the absolute workspace root.
func (m *Manager) Root() string {
	return m.root
}

// Path returns the directory owned by a job id.
func (m *Manager) Path(id string) string {
	return filepath.Join(m.root, id)
}

// Allocate creates a fresh job directory and derives source/binary paths for the language.
func (m *Manager) Allocate(lang language.Spec, code string) (*Job, error) {
	if err := os.MkdirAll(m.root, dirPerm); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace root failed")
	}
	id := uuid.NewString()
	dir := m.Path(id)
	// Mkdir fails on an existing directory, so an id collision can never share a workspace.
	if err := os.Mkdir(dir, dirPerm); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create job directory failed")
	}

	base := language.DefaultBaseName
	className, pkg := "", ""
	if lang.NamingRule == language.NamingJavaClass {
		className = JavaClassName(code)
		pkg = JavaPackage(code)
		base = className
	}

	job := &Job{
		ID:         id,
		Language:   lang.ID,
		Dir:        dir,
		SourcePath: filepath.Join(dir, base+lang.FileExtension),
		ClassName:  className,
		Package:    pkg,
		CreatedAt:  m.now(),
		Status:     StatusPending,
	}
	if lang.Compiled() {
		job.BinaryPath = filepath.Join(dir, base)
	}
	return job, nil
}

// Materialize writes the code verbatim to the job source path.
func (m *Manager) Materialize(job *Job, code string) error {
	if job == nil {
		return appErr.New(appErr.WorkspaceError).WithMessage("job is required")
	}
	if err := os.WriteFile(job.SourcePath, []byte(code), filePerm); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceError, "write source file failed")
	}
	return nil
}

// Release removes everything derived from the job id. Missing paths are not an error.
func (m *Manager) Release(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return nil
	}
	dir := m.Path(job.ID)
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn(ctx, "release job workspace failed", zap.String("dir", dir), zap.Error(err))
		return appErr.Wrapf(err, appErr.CleanupFailed, "remove job directory failed")
	}
	return nil
}

// JavaClassName returns the public class declared in code, then the first
// top-level class, then DefaultBaseName.
func JavaClassName(code string) string {
	if m := publicClassPattern.FindStringSubmatch(code); len(m) == 2 {
		return m[1]
	}
	if m := anyClassPattern.FindStringSubmatch(code); len(m) == 2 {
		return m[1]
	}
	return language.DefaultBaseName
}

// JavaPackage returns the declared package name with whitespace removed, or "".
func JavaPackage(code string) string {
	m := packagePattern.FindStringSubmatch(code)
	if len(m) != 2 {
		return ""
	}
	return strings.Join(strings.Fields(m[1]), "")
}
