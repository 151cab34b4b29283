package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/loopwire/feedback-pipeline/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedback.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAssignsReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sub, err := s.Create(ctx, "the export button is broken")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.Reference != model.Reference(sub.ID) {
		t.Fatalf("Reference = %q, want %q", sub.Reference, model.Reference(sub.ID))
	}
	if sub.Status != model.StatusPending {
		t.Fatalf("Status = %q, want pending", sub.Status)
	}
}

func TestGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "feature request: dark mode")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, created.Reference)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != created.Content {
		t.Fatalf("Content = %q, want %q", got.Content, created.Content)
	}
}

func TestGetMissingReferenceErrors(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "LW-999"); err == nil {
		t.Fatal("expected an error for a missing reference")
	}
}

func TestListPendingExcludesInProgress(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pending, err := s.Create(ctx, "pending item")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inProgress, err := s.Create(ctx, "in-progress item")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.UpdateStatus(ctx, inProgress.Reference, model.StatusInProgress, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	rows, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(rows) != 1 || rows[0].Reference != pending.Reference {
		t.Fatalf("ListPending = %+v, want only %s", rows, pending.Reference)
	}
}

func TestUpdateStatusUnknownReference(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateStatus(context.Background(), "LW-404", model.StatusDone, "notes"); err == nil {
		t.Fatal("expected an error updating an unknown reference")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, "b"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.UpdateStatus(ctx, a.Reference, model.StatusDone, "shipped"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	done, err := s.List(ctx, model.StatusDone, 0, 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(done) != 1 || done[0].Reference != a.Reference {
		t.Fatalf("List(done) = %+v, want only %s", done, a.Reference)
	}

	all, err := s.List(ctx, "", 0, 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List(all) returned %d rows, want 2", len(all))
	}
}

// TestCreateHandlesConcurrentSubmissions exercises spec.md's "intake
// accepts concurrent requests" requirement against the UNIQUE
// constraint on submissions.reference: every overlapping Create must
// succeed and land on a distinct reference.
func TestCreateHandlesConcurrentSubmissions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	refs := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := s.Create(ctx, "concurrent submission")
			errs[i] = err
			if err == nil {
				refs[i] = sub.Reference
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Create[%d]: %v", i, err)
		}
		if seen[refs[i]] {
			t.Fatalf("duplicate reference assigned: %s", refs[i])
		}
		seen[refs[i]] = true
	}
}
