package model

// ReviewVerdictKind is the sum type over a review's outcome. Any value
// decoded from the model that is not one of these two is coerced to
// Reject by the review agent before it ever reaches this type.
type ReviewVerdictKind string

const (
	VerdictApprove ReviewVerdictKind = "approve"
	VerdictReject  ReviewVerdictKind = "reject"
)

// ReviewIssue is one pointed-out problem with a specific file.
type ReviewIssue struct {
	File        string
	Description string
}

// ReviewVerdict is the review agent's output: an accept/reject
// decision, free-form comments (echoed back to the writer as
// reviewer_feedback on the next attempt), and a structured issue list.
type ReviewVerdict struct {
	Verdict  ReviewVerdictKind
	Comments string
	Issues   []ReviewIssue
}
