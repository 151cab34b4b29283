package model

// FilterVerdictKind is the sum type over the filter agent's decision.
type FilterVerdictKind string

const (
	FilterSafe   FilterVerdictKind = "safe"
	FilterReject FilterVerdictKind = "reject"
)

// FilterVerdict is the filter agent's output.
type FilterVerdict struct {
	Verdict FilterVerdictKind
	Reason  string
}
