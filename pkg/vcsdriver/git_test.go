package vcsdriver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestBashScriptRunnerSuccess(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "ok.sh", "#!/bin/bash\necho hello\nexit 0\n")

	r := NewBashScriptRunner(dir)
	stdout, _, code, err := r.RunScript(context.Background(), script)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if stdout != "hello\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "hello\n")
	}
}

func TestBashScriptRunnerNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", "#!/bin/bash\necho oops 1>&2\nexit 3\n")

	r := NewBashScriptRunner(dir)
	_, stderr, code, err := r.RunScript(context.Background(), script)
	if err != nil {
		t.Fatalf("RunScript should not error on non-zero exit: %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
	if stderr != "oops\n" {
		t.Fatalf("stderr = %q, want %q", stderr, "oops\n")
	}
}

func TestBashScriptRunnerTimeout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "slow.sh", "#!/bin/bash\nsleep 5\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := NewBashScriptRunner(dir)
	_, _, _, err := r.RunScript(ctx, script)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestGitExecutorRunRequiresArgs(t *testing.T) {
	g := NewGitExecutor(t.TempDir())
	if _, err := g.Run(context.Background()); err == nil {
		t.Fatal("expected an error when no git command is given")
	}
}

func TestGitExecutorRepoPath(t *testing.T) {
	dir := t.TempDir()
	g := NewGitExecutor(dir)
	if g.RepoPath() != dir {
		t.Fatalf("RepoPath() = %q, want %q", g.RepoPath(), dir)
	}
}

func TestGitExecutorRunReportsFailure(t *testing.T) {
	g := NewGitExecutor(t.TempDir())
	if _, err := g.Run(context.Background(), "status"); err == nil {
		t.Fatal("expected an error running git status outside a repository")
	}
}
