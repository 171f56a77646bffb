package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/config"
	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/pipeline"
)

// fakeSource lists fixed ids and fails every fetch.
type fakeSource struct {
	ids     []string
	listErr error
	fetched []string
}

func (f *fakeSource) List(ctx context.Context) ([]string, error) {
	return f.ids, f.listErr
}

func (f *fakeSource) Fetch(ctx context.Context, id string) ([]byte, error) {
	f.fetched = append(f.fetched, id)
	return nil, errors.New("attachment gone")
}

type otherJob struct{}

func (otherJob) GetID() string             { return "x" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }
func (otherJob) Key() string               { return "x" }

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := &config.Config{DatabasePath: filepath.Join(t.TempDir(), "ledger.db")}
	a, err := New(context.Background(), cfg, zerolog.Nop(), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_MinimalConfig(t *testing.T) {
	a := newTestApp(t)

	if a.Ledger == nil || a.Pipeline == nil || a.Reconciler == nil {
		t.Fatal("core components not wired")
	}
	if len(a.SourceNames()) != 0 {
		t.Errorf("SourceNames() = %v, want none", a.SourceNames())
	}
	if a.Exporter != nil || a.Bucket != nil {
		t.Error("optional integrations should be disabled")
	}

	ids, err := a.Ledger.ListSourceIDs(context.Background())
	if err != nil || len(ids) != 0 {
		t.Errorf("fresh ledger ListSourceIDs() = %v, %v", ids, err)
	}
}

func TestHandleJob(t *testing.T) {
	a := newTestApp(t)
	src := &fakeSource{ids: []string{"m1", "m2"}}
	a.Sources[jobs.SourceGmail] = src

	n, err := a.HandleJob(context.Background(), &jobs.IngestJob{Source: jobs.SourceGmail})
	if err != nil {
		t.Fatalf("HandleJob() error = %v", err)
	}
	if n != 0 {
		t.Errorf("HandleJob() = %d, want 0", n)
	}
	if diff := cmp.Diff([]string{"m1", "m2"}, src.fetched); diff != "" {
		t.Errorf("fetched mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleJob_Errors(t *testing.T) {
	a := newTestApp(t)
	a.Sources[jobs.SourceGCS] = &fakeSource{listErr: errors.New("bucket not found")}

	tests := []struct {
		name string
		job  jobs.Job
	}{
		{name: "unconfigured source", job: &jobs.IngestJob{Source: jobs.SourceGmail}},
		{name: "list failure", job: &jobs.IngestJob{Source: jobs.SourceGCS}},
		{name: "unexpected job type", job: otherJob{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.HandleJob(context.Background(), tt.job); err == nil {
				t.Error("HandleJob() expected error")
			}
		})
	}
}

func TestSourceNamesSorted(t *testing.T) {
	a := &App{Sources: map[string]pipeline.Source{
		jobs.SourceGmail: &fakeSource{},
		jobs.SourceGCS:   &fakeSource{},
	}}

	if diff := cmp.Diff([]string{"gcs", "gmail"}, a.SourceNames()); diff != "" {
		t.Errorf("SourceNames() mismatch (-want +got):\n%s", diff)
	}
	if _, err := a.Source("dropbox"); err == nil {
		t.Error("Source() for unknown name expected error")
	}
}
