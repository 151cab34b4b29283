package vcsdriver

import (
	"context"
	"strings"
	"time"
)

// Driver exposes the typed git operations the deploy agent needs,
// per spec.md §9: status_clean, create_branch, merge, abort_merge,
// run_script, etc. It is built against GitRunner/ScriptRunner so a
// fake implementation of either can drive deploy agent tests without
// touching a real repository. Every git subcommand runs under
// gitTimeout so a wedged git process cannot wedge a batch.
type Driver struct {
	git        GitRunner
	scripts    ScriptRunner
	gitTimeout time.Duration
}

func NewDriver(git GitRunner, scripts ScriptRunner, gitTimeout time.Duration) *Driver {
	return &Driver{git: git, scripts: scripts, gitTimeout: gitTimeout}
}

// runGit wraps a single git invocation in gitTimeout, if set.
func (d *Driver) runGit(ctx context.Context, args ...string) (string, error) {
	if d.gitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.gitTimeout)
		defer cancel()
	}
	return d.git.Run(ctx, args...)
}

// StatusClean reports whether `git status --porcelain` has no output.
func (d *Driver) StatusClean(ctx context.Context) (bool, error) {
	out, err := d.runGit(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// CurrentBranch returns the checked-out branch name.
func (d *Driver) CurrentBranch(ctx context.Context) (string, error) {
	out, err := d.runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateBranch creates and checks out a new branch from the current HEAD.
func (d *Driver) CreateBranch(ctx context.Context, name string) error {
	_, err := d.runGit(ctx, "checkout", "-b", name)
	return err
}

// Checkout switches to an existing branch.
func (d *Driver) Checkout(ctx context.Context, name string) error {
	_, err := d.runGit(ctx, "checkout", name)
	return err
}

// Commit stages everything under the repo root and commits it.
func (d *Driver) Commit(ctx context.Context, message string) error {
	if _, err := d.runGit(ctx, "add", "-A"); err != nil {
		return err
	}
	_, err := d.runGit(ctx, "commit", "-m", message)
	return err
}

// MergeNoFF merges branch into the current HEAD with --no-ff.
func (d *Driver) MergeNoFF(ctx context.Context, branch, message string) error {
	_, err := d.runGit(ctx, "merge", "--no-ff", "-m", message, branch)
	return err
}

// AbortMerge aborts an in-progress merge.
func (d *Driver) AbortMerge(ctx context.Context) error {
	_, err := d.runGit(ctx, "merge", "--abort")
	return err
}

// DeleteBranch deletes a branch. force=true uses -D (required when
// the branch's commits were never merged, e.g. after a rollback).
func (d *Driver) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := d.runGit(ctx, "branch", flag, name)
	return err
}

// ScriptResult is the outcome of running a pipeline/deploy script,
// with output truncated to the configured tail length for inclusion
// in diagnostics.
type ScriptResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the script exited zero.
func (r ScriptResult) Success() bool {
	return r.ExitCode == 0
}

// RunScript runs scriptPath under the given timeout and truncates
// stdout/stderr to truncateBytes from the tail. timeout <= 0 runs the
// script with no deadline beyond ctx's own.
func (d *Driver) RunScript(ctx context.Context, scriptPath string, truncateBytes int, timeout time.Duration) (ScriptResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stdout, stderr, code, err := d.scripts.RunScript(ctx, scriptPath)
	if err != nil {
		return ScriptResult{}, err
	}
	return ScriptResult{
		ExitCode: code,
		Stdout:   tailBytes(stdout, truncateBytes),
		Stderr:   tailBytes(stderr, truncateBytes),
	}, nil
}

func tailBytes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
