package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
	"github.com/tessera-live/tessera/internal/storage/object"
)

type ExportRepository interface {
	Create(ctx context.Context, e domain.Export) error
	Get(ctx context.Context, organizerID, id string) (domain.Export, error)
	// ClaimNext atomically moves the oldest waiting export to running and
	// returns it, or a nil export when the queue is empty.
	ClaimNext(ctx context.Context) (*domain.Export, error)
	MarkDone(ctx context.Context, id, objectKey string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
}

// ExportData supplies the rows rendered into export files.
type ExportData interface {
	VoucherRows(ctx context.Context, eventID string) ([][]string, error)
	CheckinRows(ctx context.Context, eventID string) ([][]string, error)
}

type ExportService struct {
	repo   ExportRepository
	data   ExportData
	store  object.Storage
	clock  clock.Clock
	logger *slog.Logger

	ttl time.Duration
}

const (
	ProviderVoucherList = "voucherlist"
	ProviderCheckinList = "checkinlist"

	defaultExportTTL = 24 * time.Hour
)

func NewExportService(repo ExportRepository, data ExportData, store object.Storage, clk clock.Clock, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		repo:   repo,
		data:   data,
		store:  store,
		clock:  clk,
		logger: logger,
		ttl:    defaultExportTTL,
	}
}

type CreateExportInput struct {
	Provider string
}

// Create enqueues an export job. The caller polls Download until the job
// settles.
func (s *ExportService) Create(ctx context.Context, organizerID, eventID string, in CreateExportInput) (domain.Export, error) {
	switch in.Provider {
	case ProviderVoucherList, ProviderCheckinList:
	default:
		return domain.Export{}, domain.ErrUnknownExportFormat
	}
	e := domain.Export{
		ID:          newID(),
		OrganizerID: organizerID,
		EventID:     eventID,
		Provider:    in.Provider,
		Status:      domain.ExportStatusWaiting,
		FileName:    fmt.Sprintf("%s-%s.csv", in.Provider, s.clock.Now().Format("20060102-150405")),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return domain.Export{}, err
	}
	return e, nil
}

func (s *ExportService) Get(ctx context.Context, organizerID, id string) (domain.Export, error) {
	return s.repo.Get(ctx, organizerID, id)
}

// DownloadResult is the settled outcome of an export job.
type DownloadResult struct {
	Export  domain.Export
	Content io.ReadCloser
}

// Download implements the polling contract: ErrExportStillRunning while the
// job is queued or running (HTTP 409), ErrExportFailed once it failed
// permanently (410), ErrExportNotFound for unknown or expired jobs (404),
// and the artifact stream on success.
func (s *ExportService) Download(ctx context.Context, organizerID, id string) (DownloadResult, error) {
	e, err := s.repo.Get(ctx, organizerID, id)
	if err != nil {
		return DownloadResult{}, err
	}
	switch e.Status {
	case domain.ExportStatusWaiting, domain.ExportStatusRunning:
		return DownloadResult{Export: e}, domain.ErrExportStillRunning
	case domain.ExportStatusFailed:
		return DownloadResult{Export: e}, domain.ErrExportFailed
	}
	if e.Expired(s.clock.Now(), s.ttl) {
		return DownloadResult{}, domain.ErrExportNotFound
	}
	rc, _, err := s.store.Get(ctx, e.ObjectKey)
	if err != nil {
		return DownloadResult{}, domain.ErrExportNotFound
	}
	return DownloadResult{Export: e, Content: rc}, nil
}

// RunWorkers processes the export queue with n goroutines until the context
// is canceled.
func (s *ExportService) RunWorkers(ctx context.Context, n int, interval time.Duration) {
	if n < 1 {
		n = 1
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for i := 0; i < n; i++ {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.drain(ctx)
				}
			}
		}()
	}
}

// drain processes jobs until the queue is empty.
func (s *ExportService) drain(ctx context.Context) {
	for {
		processed, err := s.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("export worker", "error", err)
			}
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext claims and renders one job. It reports whether a job was
// available.
func (s *ExportService) ProcessNext(ctx context.Context) (bool, error) {
	e, err := s.repo.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}

	content, err := s.render(ctx, *e)
	if err != nil {
		s.logger.Warn("export failed", "export", e.ID, "provider", e.Provider, "error", err)
		if ferr := s.repo.MarkFailed(ctx, e.ID, err.Error()); ferr != nil {
			return true, ferr
		}
		return true, nil
	}

	key := fmt.Sprintf("exports/%s/%s/%s", e.OrganizerID, e.ID, e.FileName)
	if _, err := s.store.Put(ctx, key, bytes.NewReader(content), object.PutOptions{
		Size:        int64(len(content)),
		ContentType: "text/csv",
	}); err != nil {
		if ferr := s.repo.MarkFailed(ctx, e.ID, "could not store artifact"); ferr != nil {
			return true, ferr
		}
		return true, nil
	}
	if err := s.repo.MarkDone(ctx, e.ID, key, s.clock.Now()); err != nil {
		return true, err
	}
	return true, nil
}

func (s *ExportService) render(ctx context.Context, e domain.Export) ([]byte, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	switch e.Provider {
	case ProviderVoucherList:
		header = []string{"code", "max_usages", "redeemed", "price_mode", "value"}
		rows, err = s.data.VoucherRows(ctx, e.EventID)
	case ProviderCheckinList:
		header = []string{"secret", "attendee_name", "type", "datetime"}
		rows, err = s.data.CheckinRows(ctx, e.EventID)
	default:
		return nil, domain.ErrUnknownExportFormat
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
