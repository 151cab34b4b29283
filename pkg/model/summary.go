package model

// TaskDetail is one task's outcome as recorded in a BatchSummary.
type TaskDetail struct {
	References  []string
	Summary     string
	Outcome     string
	TokensUsed  int
	AgentNotes  string
	Deployed    bool
}

// BatchSummary is the batch orchestrator's final report.
type BatchSummary struct {
	TasksAttempted  int
	TasksCompleted  int
	TasksFailed     int
	TotalTokens     int
	BudgetRemaining float64
	Details         []TaskDetail
}
