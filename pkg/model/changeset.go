package model

// FileChangeAction is the sum type over what a FileChange does to a
// path, kept as a named string type (not a bare string) per the
// tagged-variant convention used throughout this package.
type FileChangeAction string

const (
	ActionCreate FileChangeAction = "create"
	ActionModify FileChangeAction = "modify"
	ActionDelete FileChangeAction = "delete"
)

// FileChange is one file operation inside a ChangeSet. Path is
// relative to the target repository root; the deploy agent is
// responsible for resolving it and rejecting any traversal outside
// that root before touching the filesystem.
type FileChange struct {
	Path    string
	Action  FileChangeAction
	Content string
}

// ChangeSet is the writer's structured output: a human-readable
// summary, the model's stated reasoning, and the list of file
// operations to apply.
type ChangeSet struct {
	Summary   string
	Reasoning string
	Changes   []FileChange
}
