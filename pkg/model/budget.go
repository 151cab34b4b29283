package model

// Budget is the result of the accountant's check operation: today's
// and this week's spend against their caps.
type Budget struct {
	DailySpent      float64
	DailyRemaining  float64
	DailyCap        float64
	WeeklySpent     float64
	WeeklyRemaining float64
	WeeklyCap       float64
	Allowed         bool
}

// Ledger is the on-disk shape of the budget file: two independent
// maps keyed by ISO date (daily) and ISO Monday-of-week (weekly).
// Entries for windows other than the current one are never deleted —
// they are simply ignored by Check, which only reads today's and this
// week's keys.
type Ledger struct {
	Daily  map[string]float64 `json:"daily"`
	Weekly map[string]float64 `json:"weekly"`
}
