// Package vcsdriver wraps git and the target repository's build
// scripts in a small typed driver, per spec.md §9's design note: the
// deploy agent's state machine should be language-independent and
// unit-testable against a fake driver rather than built on ad hoc
// subprocess calls.
package vcsdriver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitRunner executes a git command with the given arguments inside a
// fixed repository directory. Mockable for tests.
type GitRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
	RepoPath() string
}

// GitExecutor is the real subprocess-backed GitRunner.
type GitExecutor struct {
	repoPath string
}

// NewGitExecutor creates a GitExecutor rooted at repoPath. It does not
// verify repoPath is a git repository; the first command run will
// surface that as an error.
func NewGitExecutor(repoPath string) *GitExecutor {
	return &GitExecutor{repoPath: repoPath}
}

func (g *GitExecutor) RepoPath() string {
	return g.repoPath
}

// Run executes `git <args...>` in the repository directory, capturing
// stdout and stderr. A context deadline produces a wrapped ctx.Err().
func (g *GitExecutor) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("vcsdriver: no git command specified")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("vcsdriver: git %s timed out: %w", args[0], ctx.Err())
		}
		if stderrStr := strings.TrimSpace(stderr.String()); stderrStr != "" {
			return "", fmt.Errorf("vcsdriver: git %s failed: %s", args[0], stderrStr)
		}
		return "", fmt.Errorf("vcsdriver: git %s failed: %w", args[0], err)
	}

	return stdout.String(), nil
}

// ScriptRunner executes a shell script with a timeout, used for the
// target repository's pipeline and deploy scripts. Mockable for
// tests.
type ScriptRunner interface {
	RunScript(ctx context.Context, scriptPath string) (stdout, stderr string, exitCode int, err error)
}

// BashScriptRunner runs `bash <scriptPath>` rooted at repoPath.
type BashScriptRunner struct {
	repoPath string
}

func NewBashScriptRunner(repoPath string) *BashScriptRunner {
	return &BashScriptRunner{repoPath: repoPath}
}

// RunScript runs the script and reports its exit code. err is non-nil
// only for infrastructure failures (bash cannot be started, context
// canceled/timed out); a missing script makes bash exit 127, which is
// reported like any other non-zero exit code: via exitCode,
// not err, so callers can distinguish "script ran and failed" from
// "could not run the script at all".
func (b *BashScriptRunner) RunScript(ctx context.Context, scriptPath string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "bash", scriptPath)
	cmd.Dir = b.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return stdout.String(), stderr.String(), -1, fmt.Errorf("vcsdriver: script %s timed out: %w", scriptPath, ctx.Err())
	}
	if runErr == nil {
		return stdout.String(), stderr.String(), 0, nil
	}

	var exitErr *exec.ExitError
	if ok := asExitError(runErr, &exitErr); ok {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	return stdout.String(), stderr.String(), -1, fmt.Errorf("vcsdriver: could not run script %s: %w", scriptPath, runErr)
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
