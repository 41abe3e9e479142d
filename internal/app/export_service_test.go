package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
	"github.com/tessera-live/tessera/internal/storage/object"
)

type fakeExportRepo struct {
	exports map[string]*domain.Export
	queue   []string
}

func newFakeExportRepo() *fakeExportRepo {
	return &fakeExportRepo{exports: make(map[string]*domain.Export)}
}

func (f *fakeExportRepo) Create(_ context.Context, e domain.Export) error {
	cp := e
	f.exports[e.ID] = &cp
	f.queue = append(f.queue, e.ID)
	return nil
}

func (f *fakeExportRepo) Get(_ context.Context, organizerID, id string) (domain.Export, error) {
	e, ok := f.exports[id]
	if !ok || e.OrganizerID != organizerID {
		return domain.Export{}, domain.ErrExportNotFound
	}
	return *e, nil
}

func (f *fakeExportRepo) ClaimNext(_ context.Context) (*domain.Export, error) {
	for len(f.queue) > 0 {
		id := f.queue[0]
		f.queue = f.queue[1:]
		e := f.exports[id]
		if e.Status != domain.ExportStatusWaiting {
			continue
		}
		e.Status = domain.ExportStatusRunning
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeExportRepo) MarkDone(_ context.Context, id, objectKey string, completedAt time.Time) error {
	e, ok := f.exports[id]
	if !ok {
		return domain.ErrExportNotFound
	}
	e.Status = domain.ExportStatusDone
	e.ObjectKey = objectKey
	e.CompletedAt = &completedAt
	return nil
}

func (f *fakeExportRepo) MarkFailed(_ context.Context, id, message string) error {
	e, ok := f.exports[id]
	if !ok {
		return domain.ErrExportNotFound
	}
	e.Status = domain.ExportStatusFailed
	e.Error = message
	return nil
}

type fakeExportData struct {
	vouchers [][]string
	checkins [][]string
	err      error
}

func (f *fakeExportData) VoucherRows(_ context.Context, _ string) ([][]string, error) {
	return f.vouchers, f.err
}

func (f *fakeExportData) CheckinRows(_ context.Context, _ string) ([][]string, error) {
	return f.checkins, f.err
}

func TestExportService_Lifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	repo := newFakeExportRepo()
	data := &fakeExportData{vouchers: [][]string{{"SUMMER", "10", "2", "percent", "25.00"}}}
	store := object.NewMemory()
	svc := NewExportService(repo, data, store, clock.NewFixed(now), nil)

	e, err := svc.Create(context.Background(), "org-1", "ev-1", CreateExportInput{Provider: ProviderVoucherList})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Status != domain.ExportStatusWaiting {
		t.Fatalf("status = %q, want waiting", e.Status)
	}

	// Before the worker ran, downloads conflict.
	if _, err := svc.Download(context.Background(), "org-1", e.ID); !errors.Is(err, domain.ErrExportStillRunning) {
		t.Fatalf("expected ErrExportStillRunning, got %v", err)
	}

	processed, err := svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !processed {
		t.Fatalf("expected a job to be processed")
	}

	res, err := svc.Download(context.Background(), "org-1", e.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer res.Content.Close()
	content, err := io.ReadAll(res.Content)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	got := string(content)
	if !strings.HasPrefix(got, "code,max_usages,redeemed,price_mode,value\n") {
		t.Fatalf("missing header, got %q", got)
	}
	if !strings.Contains(got, "SUMMER,10,2,percent,25.00") {
		t.Fatalf("missing data row, got %q", got)
	}

	// The queue is empty now.
	processed, err = svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process empty: %v", err)
	}
	if processed {
		t.Fatalf("expected empty queue")
	}
}

func TestExportService_Create_UnknownProvider(t *testing.T) {
	t.Parallel()

	svc := NewExportService(newFakeExportRepo(), &fakeExportData{}, object.NewMemory(),
		clock.NewFixed(time.Now()), nil)
	_, err := svc.Create(context.Background(), "org-1", "ev-1", CreateExportInput{Provider: "orderlist"})
	if !errors.Is(err, domain.ErrUnknownExportFormat) {
		t.Fatalf("expected ErrUnknownExportFormat, got %v", err)
	}
}

func TestExportService_FailedJob(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	repo := newFakeExportRepo()
	data := &fakeExportData{err: errors.New("boom")}
	svc := NewExportService(repo, data, object.NewMemory(), clock.NewFixed(now), nil)

	e, err := svc.Create(context.Background(), "org-1", "ev-1", CreateExportInput{Provider: ProviderCheckinList})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	_, err = svc.Download(context.Background(), "org-1", e.ID)
	if !errors.Is(err, domain.ErrExportFailed) {
		t.Fatalf("expected ErrExportFailed, got %v", err)
	}
	if repo.exports[e.ID].Error != "boom" {
		t.Fatalf("stored error = %q", repo.exports[e.ID].Error)
	}
}

func TestExportService_ExpiredArtifact(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	clk := clock.NewStepped(start)
	repo := newFakeExportRepo()
	svc := NewExportService(repo, &fakeExportData{}, object.NewMemory(), clk, nil)

	e, err := svc.Create(context.Background(), "org-1", "ev-1", CreateExportInput{Provider: ProviderVoucherList})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := svc.Download(context.Background(), "org-1", e.ID); err != nil {
		t.Fatalf("fresh download: %v", err)
	}

	clk.Advance(25 * time.Hour)
	_, err = svc.Download(context.Background(), "org-1", e.ID)
	if !errors.Is(err, domain.ErrExportNotFound) {
		t.Fatalf("expected ErrExportNotFound after ttl, got %v", err)
	}
}

func TestExportService_DownloadHidesForeignOrganizer(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	repo := newFakeExportRepo()
	svc := NewExportService(repo, &fakeExportData{}, object.NewMemory(), clock.NewFixed(now), nil)

	e, err := svc.Create(context.Background(), "org-1", "ev-1", CreateExportInput{Provider: ProviderVoucherList})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Download(context.Background(), "org-other", e.ID); !errors.Is(err, domain.ErrExportNotFound) {
		t.Fatalf("expected ErrExportNotFound, got %v", err)
	}
}
