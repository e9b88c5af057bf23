package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeexec/internal/executor/language"
	appErr "codeexec/pkg/errors"
)

func mustResolve(t *testing.T, id string) language.Spec {
	t.Helper()
	spec, err := language.Default().Resolve(id)
	if err != nil {
		t.Fatalf("resolve %s: %v", id, err)
	}
	return spec
}

func TestAllocateInterpreted(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	mgr, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := os.Stat(mgr.Root()); err != nil {
		t.Fatalf("expected root to be created: %v", err)
	}

	job, err := mgr.Allocate(mustResolve(t, "python"), "print(1)")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if job.Dir != mgr.Path(job.ID) {
		t.Fatalf("unexpected dir %s", job.Dir)
	}
	if filepath.Dir(job.SourcePath) != job.Dir || filepath.Ext(job.SourcePath) != ".py" {
		t.Fatalf("unexpected source path %s", job.SourcePath)
	}
	if job.BinaryPath != "" {
		t.Fatalf("interpreted language should not have a binary path, got %s", job.BinaryPath)
	}
	if job.Status != StatusPending || job.CreatedAt.IsZero() {
		t.Fatalf("unexpected job state: %+v", job)
	}
}

func TestAllocateCompiledHasBinaryInJobDir(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	job, err := mgr.Allocate(mustResolve(t, "cpp"), "int main(){}")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if job.BinaryPath == "" || filepath.Dir(job.BinaryPath) != job.Dir {
		t.Fatalf("binary path must live in job dir, got %q", job.BinaryPath)
	}
	if job.BinaryPath == job.SourcePath {
		t.Fatalf("binary and source paths must differ")
	}
}

func TestAllocateUniqueIDs(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	lang := mustResolve(t, "python")
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		job, err := mgr.Allocate(lang, "")
		if err != nil {
			t.Fatalf("Allocate failed: %v", err)
		}
		if _, ok := seen[job.ID]; ok {
			t.Fatalf("duplicate job id %s", job.ID)
		}
		seen[job.ID] = struct{}{}
	}
}

func TestAllocateJavaUsesClassName(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	code := "import java.util.*;\n\npublic final class Solution {\n  public static void main(String[] a) {}\n}\n"
	job, err := mgr.Allocate(mustResolve(t, "java"), code)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if job.ClassName != "Solution" {
		t.Fatalf("ClassName = %q", job.ClassName)
	}
	if filepath.Base(job.SourcePath) != "Solution.java" {
		t.Fatalf("unexpected source path %s", job.SourcePath)
	}
}

func TestAllocateJavaQualifiesPackagedClass(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	code := "package com . example.app;\n\npublic class Main {\n  public static void main(String[] a) {}\n}\n"
	job, err := mgr.Allocate(mustResolve(t, "java"), code)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if job.Package != "com.example.app" || job.MainClass() != "com.example.app.Main" {
		t.Fatalf("package = %q main class = %q", job.Package, job.MainClass())
	}
	if filepath.Base(job.SourcePath) != "Main.java" {
		t.Fatalf("unexpected source path %s", job.SourcePath)
	}

	job, err = mgr.Allocate(mustResolve(t, "java"), "// package not.really;\npublic class App {}")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if job.MainClass() != "App" {
		t.Fatalf("main class = %q", job.MainClass())
	}
}

func TestJavaClassName(t *testing.T) {
	cases := []struct {
		name string
		code string
		want string
	}{
		{name: "public class", code: "public class Hello {}", want: "Hello"},
		{name: "public abstract", code: "public abstract class Shape {}", want: "Shape"},
		{name: "public wins over earlier class", code: "class Helper {}\npublic class App {}", want: "App"},
		{name: "fallback to first class", code: "class Only { }", want: "Only"},
		{name: "no class", code: "interface X {}", want: "Main"},
		{name: "empty", code: "", want: "Main"},
		{name: "path characters ignored", code: "public class ../../etc {}", want: "Main"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := JavaClassName(tc.code); got != tc.want {
				t.Fatalf("JavaClassName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMaterializeAndRelease(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	code := "print('héllo')\r\n"
	job, err := mgr.Allocate(mustResolve(t, "python"), code)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := mgr.Materialize(job, code); err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	data, err := os.ReadFile(job.SourcePath)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != code {
		t.Fatalf("source not written verbatim: %q", data)
	}
	if err := os.WriteFile(filepath.Join(job.Dir, "Main.class"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write derived file: %v", err)
	}

	ctx := context.Background()
	if err := mgr.Release(ctx, job); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(job.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected job dir removed, stat err = %v", err)
	}
	if err := mgr.Release(ctx, job); err != nil {
		t.Fatalf("second Release should be a no-op, got %v", err)
	}
	if err := mgr.Release(ctx, nil); err != nil {
		t.Fatalf("Release(nil) should be a no-op, got %v", err)
	}
}

func TestMaterializeMissingDir(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	job, err := mgr.Allocate(mustResolve(t, "python"), "")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := os.RemoveAll(job.Dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	err = mgr.Materialize(job, "print(1)")
	if !appErr.Is(err, appErr.WorkspaceError) {
		t.Fatalf("expected WorkspaceError, got %v", err)
	}
}

func TestNewManagerRequiresRoot(t *testing.T) {
	if _, err := NewManager(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusCompiling, StatusRunning} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusTimedOut, StatusCompileFailed, StatusRuntimeFailed, StatusFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}
