// Package events publishes optional pipeline notifications —
// submission status changes and batch summaries — over NATS. It is
// never required for correctness: a nil Publisher is a no-op, so a
// batch run with no broker configured behaves identically from the
// orchestrator's point of view.
package events

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loopwire/feedback-pipeline/pkg/model"
	"github.com/loopwire/feedback-pipeline/pkg/natsutil"
)

const (
	SubjectSubmissionStatusChanged = "submission.status_changed"
	SubjectBatchSummary            = "batch.summary"
)

// SubmissionStatusChanged is the envelope published whenever a
// submission transitions status.
type SubmissionStatusChanged struct {
	Reference string                  `json:"reference"`
	Status    model.SubmissionStatus  `json:"status"`
	Notes     string                  `json:"notes,omitempty"`
	At        time.Time               `json:"at"`
}

// BatchSummaryEvent wraps a completed batch's summary for publication.
type BatchSummaryEvent struct {
	Summary model.BatchSummary `json:"summary"`
	At      time.Time          `json:"at"`
}

// Publisher emits events to NATS subjects. A nil *Publisher (or one
// constructed with a nil connection) makes every method a no-op —
// callers never need to nil-check before calling.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials url and returns a Publisher. An empty url yields a
// disconnected no-op Publisher.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc}, nil
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}

// PublishStatusChanged emits a submission.status_changed event.
// Errors are returned but are not fatal to the caller's own
// operation — the event stream is best-effort.
func (p *Publisher) PublishStatusChanged(ctx context.Context, reference string, status model.SubmissionStatus, notes string) error {
	if p == nil || p.nc == nil {
		return nil
	}
	return natsutil.Publish(ctx, p.nc, SubjectSubmissionStatusChanged, SubmissionStatusChanged{
		Reference: reference,
		Status:    status,
		Notes:     notes,
		At:        time.Now().UTC(),
	})
}

// PublishBatchSummary emits a batch.summary event.
func (p *Publisher) PublishBatchSummary(ctx context.Context, summary model.BatchSummary) error {
	if p == nil || p.nc == nil {
		return nil
	}
	return natsutil.Publish(ctx, p.nc, SubjectBatchSummary, BatchSummaryEvent{
		Summary: summary,
		At:      time.Now().UTC(),
	})
}
