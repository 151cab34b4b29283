// Package budget implements the budget accountant described in
// spec.md §4.1: a persistent daily/weekly spend ledger with cap
// enforcement, consulted before every paid operation and credited
// after every paid operation.
package budget

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/loopwire/feedback-pipeline/pkg/model"
)

// Accountant is a small mutex-guarded state machine over a JSON ledger
// file, following the same "injectable clock" test seam as
// resilience.Breaker — now func() time.Time defaults to time.Now but
// can be swapped out so tests control which UTC day/week a record
// lands in.
type Accountant struct {
	mu sync.Mutex

	path          string
	dailyCapGBP   float64
	weeklyCapGBP  float64
	costPerToken  float64
	now           func() time.Time
}

// Option configures an Accountant beyond its required fields.
type Option func(*Accountant)

// WithClock overrides the accountant's notion of "now". Intended for
// tests that need deterministic date/Monday keys.
func WithClock(now func() time.Time) Option {
	return func(a *Accountant) { a.now = now }
}

// New creates an Accountant backed by the ledger file at path.
func New(path string, dailyCapGBP, weeklyCapGBP, costPerTokenGBP float64, opts ...Option) *Accountant {
	a := &Accountant{
		path:         path,
		dailyCapGBP:  dailyCapGBP,
		weeklyCapGBP: weeklyCapGBP,
		costPerToken: costPerTokenGBP,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func mondayKey(t time.Time) string {
	u := t.UTC()
	offset := int(u.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	monday := u.AddDate(0, 0, -offset)
	return monday.Format("2006-01-02")
}

// CostPerToken returns the configured blended cost per token, used by
// the prioritise agent to project the cost of its next summarisation
// call before making it.
func (a *Accountant) CostPerToken() float64 {
	return a.costPerToken
}

// Check returns today's and this week's spend against their caps.
// allowed = daily_remaining > 0 && weekly_remaining > 0.
func (a *Accountant) Check() (model.Budget, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ledger, err := a.load()
	if err != nil {
		return model.Budget{}, err
	}

	now := a.now()
	dailySpent := ledger.Daily[dayKey(now)]
	weeklySpent := ledger.Weekly[mondayKey(now)]

	dailyRemaining := a.dailyCapGBP - dailySpent
	if dailyRemaining < 0 {
		dailyRemaining = 0
	}
	weeklyRemaining := a.weeklyCapGBP - weeklySpent
	if weeklyRemaining < 0 {
		weeklyRemaining = 0
	}

	return model.Budget{
		DailySpent:      dailySpent,
		DailyRemaining:  dailyRemaining,
		DailyCap:        a.dailyCapGBP,
		WeeklySpent:     weeklySpent,
		WeeklyRemaining: weeklyRemaining,
		WeeklyCap:       a.weeklyCapGBP,
		Allowed:         dailyRemaining > 0 && weeklyRemaining > 0,
	}, nil
}

// Record credits tokens*cost_per_token to today's and this week's
// entries and persists the ledger.
func (a *Accountant) Record(tokens int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ledger, err := a.load()
	if err != nil {
		return err
	}

	cost := float64(tokens) * a.costPerToken
	now := a.now()
	today := dayKey(now)
	week := mondayKey(now)

	if ledger.Daily == nil {
		ledger.Daily = map[string]float64{}
	}
	if ledger.Weekly == nil {
		ledger.Weekly = map[string]float64{}
	}
	ledger.Daily[today] += cost
	ledger.Weekly[week] += cost

	return a.save(ledger)
}

// load reads the ledger file, treating a missing or unreadable file
// as an empty ledger (fresh budget) per spec.md §4.1's failure policy.
func (a *Accountant) load() (model.Ledger, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Ledger{Daily: map[string]float64{}, Weekly: map[string]float64{}}, nil
		}
		return model.Ledger{Daily: map[string]float64{}, Weekly: map[string]float64{}}, nil
	}

	var ledger model.Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return model.Ledger{Daily: map[string]float64{}, Weekly: map[string]float64{}}, nil
	}
	if ledger.Daily == nil {
		ledger.Daily = map[string]float64{}
	}
	if ledger.Weekly == nil {
		ledger.Weekly = map[string]float64{}
	}
	return ledger, nil
}

// save writes the ledger via a temp-file-then-rename so a concurrent
// reader always observes either the old or the new file, never a
// partial write.
func (a *Accountant) save(ledger model.Ledger) error {
	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("budget: create ledger directory: %w", err)
	}

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("budget: marshal ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".budget-*.tmp")
	if err != nil {
		return fmt.Errorf("budget: create temp ledger file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("budget: write temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("budget: close temp ledger file: %w", err)
	}

	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("budget: rename ledger into place: %w", err)
	}
	return nil
}
