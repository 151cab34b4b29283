package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loopwire/feedback-pipeline/pkg/model"
	"github.com/loopwire/feedback-pipeline/pkg/vcsdriver"
)

// DeployAgent creates a feature branch, applies a ChangeSet, runs the
// repository's pipeline script, merges on success, and runs the
// deploy script, per spec.md §4.8. The pipeline and deploy scripts
// each run under their own configured timeout; a timed-out pipeline
// script rolls back the same as any other pipeline failure.
type DeployAgent struct {
	driver          *vcsdriver.Driver
	pipelineScript  string
	deployScript    string
	truncateBytes   int
	pipelineTimeout time.Duration
	deployTimeout   time.Duration
}

func NewDeployAgent(driver *vcsdriver.Driver, pipelineScript, deployScript string, truncateBytes int, pipelineTimeout, deployTimeout time.Duration) *DeployAgent {
	return &DeployAgent{
		driver:          driver,
		pipelineScript:  pipelineScript,
		deployScript:    deployScript,
		truncateBytes:   truncateBytes,
		pipelineTimeout: pipelineTimeout,
		deployTimeout:   deployTimeout,
	}
}

func (a *DeployAgent) Run(ctx context.Context, in Input) (Output, error) {
	if in.ChangeSet == nil || len(in.ChangeSet.Changes) == 0 {
		return Output{Success: true, Message: "no changes to deploy", Branch: "", Deployed: false}, nil
	}
	cs := *in.ChangeSet

	clean, err := a.driver.StatusClean(ctx)
	if err != nil {
		return Output{Success: false, Message: "failed to check working tree status: " + err.Error()}, nil
	}
	if !clean {
		return Output{Success: false, Message: "working directory is not clean"}, nil
	}

	originalBranch, err := a.driver.CurrentBranch(ctx)
	if err != nil {
		return Output{Success: false, Message: "failed to determine current branch: " + err.Error()}, nil
	}

	branch, err := randomBranchName()
	if err != nil {
		return Output{Success: false, Message: "failed to generate branch name: " + err.Error()}, nil
	}

	if err := a.driver.CreateBranch(ctx, branch); err != nil {
		return Output{Success: false, Message: fmt.Sprintf("failed to create branch %s: %s", branch, err)}, nil
	}

	if err := applyChanges(cs.Changes, in.RepoPath); err != nil {
		a.rollback(ctx, originalBranch, branch)
		return Output{Success: false, Branch: branch, Message: "failed to apply changes: " + err.Error()}, nil
	}

	commitMsg := "agent: " + cs.Summary
	if err := a.driver.Commit(ctx, commitMsg); err != nil {
		a.rollback(ctx, originalBranch, branch)
		return Output{Success: false, Branch: branch, Message: "failed to commit: " + err.Error()}, nil
	}

	pipelineResult, err := a.driver.RunScript(ctx, a.pipelineScript, a.truncateBytes, a.pipelineTimeout)
	if err != nil {
		a.rollback(ctx, originalBranch, branch)
		return Output{Success: false, Branch: branch, Message: "deployment timed out or failed: " + err.Error()}, nil
	}
	if !pipelineResult.Success() {
		a.rollback(ctx, originalBranch, branch)
		return Output{
			Success: false,
			Branch:  branch,
			Message: fmt.Sprintf("pipeline failed on branch %s", branch),
		}, nil
	}

	if err := a.driver.Checkout(ctx, originalBranch); err != nil {
		return Output{Success: false, Branch: branch, Message: "failed to return to " + originalBranch + ": " + err.Error()}, nil
	}
	mergeMsg := fmt.Sprintf("Merge %s: %s", branch, cs.Summary)
	if err := a.driver.MergeNoFF(ctx, branch, mergeMsg); err != nil {
		_ = a.driver.AbortMerge(ctx)
		_ = a.driver.DeleteBranch(ctx, branch, true)
		return Output{Success: false, Branch: branch, Message: "merge failed: " + err.Error()}, nil
	}

	_ = a.driver.DeleteBranch(ctx, branch, false)

	deployResult, err := a.driver.RunScript(ctx, a.deployScript, a.truncateBytes, a.deployTimeout)
	deployed := err == nil && deployResult.Success()
	message := fmt.Sprintf("changes merged and deployed from %s", branch)
	if !deployed {
		message = fmt.Sprintf("changes merged from %s but deployment failed", branch)
	}

	return Output{
		Success:  true,
		Branch:   branch,
		Deployed: deployed,
		Message:  message,
	}, nil
}

// rollback best-effort returns to originalBranch and force-deletes the
// feature branch. Failures here are swallowed: there is nothing more
// useful to do than report the original failure.
func (a *DeployAgent) rollback(ctx context.Context, originalBranch, branch string) {
	_ = a.driver.Checkout(ctx, originalBranch)
	_ = a.driver.DeleteBranch(ctx, branch, true)
}

func randomBranchName() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "agent/" + hex.EncodeToString(buf), nil
}

// applyChanges writes each FileChange under repoPath, rejecting any
// path that resolves outside repoPath before touching the filesystem.
func applyChanges(changes []model.FileChange, repoPath string) error {
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return fmt.Errorf("resolve repo path: %w", err)
	}

	for _, change := range changes {
		target := filepath.Join(root, change.Path)
		rel, err := filepath.Rel(root, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("path escapes repository: %s", change.Path)
		}

		switch change.Action {
		case model.ActionCreate:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create directories for %s: %w", change.Path, err)
			}
			if err := os.WriteFile(target, []byte(change.Content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", change.Path, err)
			}
		case model.ActionModify:
			if _, err := os.Stat(target); err != nil {
				return fmt.Errorf("cannot modify non-existent file: %s", change.Path)
			}
			if err := os.WriteFile(target, []byte(change.Content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", change.Path, err)
			}
		case model.ActionDelete:
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("delete %s: %w", change.Path, err)
			}
		default:
			return fmt.Errorf("unknown action %q for %s", change.Action, change.Path)
		}
	}

	return nil
}
