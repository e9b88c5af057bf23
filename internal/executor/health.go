package executor

import (
	"context"
	"os"
	"os/exec"

	"codeexec/internal/executor/pool"
	"codeexec/pkg/utils/logger"

	"go.uber.org/zap"
)

// Health states.
const (
	HealthOK        = "ok"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthReport describes whether the engine can accept work.
type HealthReport struct {
	Status    string           `json:"status"`
	Workspace WorkspaceHealth  `json:"workspace"`
	Languages []LanguageHealth `json:"languages"`
	Pool      *pool.Stats      `json:"pool,omitempty"`
}

// WorkspaceHealth reports whether job directories can be created.
type WorkspaceHealth struct {
	Root     string `json:"root"`
	Writable bool   `json:"writable"`
	Error    string `json:"error,omitempty"`
}

// LanguageHealth reports whether a language's toolchain is installed.
type LanguageHealth struct {
	ID        string   `json:"id"`
	Available bool     `json:"available"`
	Missing   []string `json:"missing,omitempty"`
}

// Health probes the workspace root and every language toolchain. A missing
// toolchain degrades the service; an unusable workspace makes it unhealthy.
func (e *Engine) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    HealthOK,
		Workspace: e.checkWorkspace(ctx),
	}
	for _, spec := range e.languages.List() {
		lh := LanguageHealth{ID: spec.ID, Available: true}
		for _, tool := range spec.Toolchain() {
			if _, err := exec.LookPath(tool); err != nil {
				lh.Available = false
				lh.Missing = append(lh.Missing, tool)
			}
		}
		if !lh.Available {
			report.Status = HealthDegraded
		}
		report.Languages = append(report.Languages, lh)
	}
	if e.pool != nil {
		stats := e.pool.Stats()
		report.Pool = &stats
	}
	if !report.Workspace.Writable {
		report.Status = HealthUnhealthy
	}
	return report
}

func (e *Engine) checkWorkspace(ctx context.Context) WorkspaceHealth {
	root := e.workspace.Root()
	wh := WorkspaceHealth{Root: root}
	f, err := os.CreateTemp(root, ".health-*")
	if err != nil {
		logger.Warn(ctx, "workspace health probe failed", zap.String("root", root), zap.Error(err))
		wh.Error = err.Error()
		return wh
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		wh.Error = err.Error()
		return wh
	}
	wh.Writable = true
	return wh
}
