package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"complaint-analytics-service/internal/aging"
	"complaint-analytics-service/internal/ingest"
	"complaint-analytics-service/internal/model"
	"complaint-analytics-service/internal/repository"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrRangeTooLarge    = errors.New("date range too large for daily columns")
	ErrNoValidData      = errors.New("no valid rows found in upload")
)

// BucketsNone disables bucket columns for a report.
const BucketsNone = "none"

type Options struct {
	Segment        string
	RefundKeywords []string
	DefaultBuckets string
	MaxDailyDays   int
	TTL            time.Duration
}

type ReportService struct {
	datasets *repository.DatasetRepository
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

func NewReportService(datasets *repository.DatasetRepository, opts Options, log zerolog.Logger) *ReportService {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &ReportService{
		datasets: datasets,
		opts:     opts,
		log:      log.With().Str("component", "report_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ReportRequest is a caller-built report. Buckets is a preset name, a
// "label:start:end" list, BucketsNone, or empty for the configured default.
type ReportRequest struct {
	GroupKeys   []string           `json:"group_keys"`
	Buckets     string             `json:"buckets"`
	Daily       bool               `json:"daily"`
	EntityField string             `json:"entity_field"`
	TotalLabel  string             `json:"total_label"`
	Sort        string             `json:"sort"`
	Filter      model.ReportFilter `json:"-"`
}

// Upload ingests the files, drops the rows outside the configured segment and
// stores the rest as a new dataset owned by the principal.
func (s *ReportService) Upload(ctx context.Context, principal model.Principal, name string, sources []ingest.Source) (model.Dataset, error) {
	if !canUse(principal) {
		return model.Dataset{}, ErrPermissionDenied
	}
	if len(sources) == 0 {
		return model.Dataset{}, fmt.Errorf("%w: no files uploaded", ErrInvalidRequest)
	}

	reader := ingest.NewReader(ingest.Options{
		Segment:        s.opts.Segment,
		RefundKeywords: s.opts.RefundKeywords,
	}, s.log)
	result := reader.ReadAll(sources)
	if result.Info.RowsKept == 0 {
		return model.Dataset{}, noValidData(result.Info)
	}

	now := s.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = sources[0].Name
	}
	info := result.Info

	dataset, err := s.datasets.CreateDataset(ctx, model.Dataset{
		OwnerID:   principal.UserID,
		Name:      name,
		Segment:   s.opts.Segment,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.TTL),
		Ingest:    &info,
	}, result.Table)
	if err != nil {
		return model.Dataset{}, err
	}

	s.log.Info().
		Str("dataset_id", dataset.ID.String()).
		Str("owner_id", principal.UserID.String()).
		Int64("rows", dataset.RowCount).
		Msg("dataset stored")
	return dataset, nil
}

func (s *ReportService) ListDatasets(ctx context.Context, principal model.Principal) ([]model.Dataset, error) {
	if !canUse(principal) {
		return nil, ErrPermissionDenied
	}
	var owner *uuid.UUID
	if !principal.IsAdmin() {
		owner = &principal.UserID
	}
	return s.datasets.ListDatasets(ctx, owner)
}

func (s *ReportService) GetDataset(ctx context.Context, principal model.Principal, id uuid.UUID) (model.Dataset, error) {
	return s.loadDataset(ctx, principal, id)
}

func (s *ReportService) DeleteDataset(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if _, err := s.loadDataset(ctx, principal, id); err != nil {
		return err
	}
	if err := s.datasets.DeleteDataset(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// GenerateReport runs the aging engine over the dataset with the caller's
// grouping, buckets and filters.
func (s *ReportService) GenerateReport(ctx context.Context, principal model.Principal, datasetID uuid.UUID, req ReportRequest) (*aging.Report, error) {
	dataset, err := s.loadDataset(ctx, principal, datasetID)
	if err != nil {
		return nil, err
	}

	filter := req.Filter.WithDefaults(dataset.Available)
	if req.Daily && filter.Range.Days() > s.opts.MaxDailyDays && s.opts.MaxDailyDays > 0 {
		return nil, fmt.Errorf("%w: %d days requested, at most %d allowed", ErrRangeTooLarge, filter.Range.Days(), s.opts.MaxDailyDays)
	}

	buckets, err := s.resolveBuckets(req.Buckets)
	if err != nil {
		return nil, err
	}

	table, err := s.datasets.LoadEvents(ctx, dataset, filter)
	if err != nil {
		return nil, err
	}

	report, err := aging.Generate(aging.Request{
		Table:        table,
		GroupKeys:    req.GroupKeys,
		Anchor:       filter.Anchor,
		Buckets:      buckets,
		Range:        filter.Range,
		IncludeDaily: req.Daily,
		EntityField:  req.EntityField,
		TotalLabel:   req.TotalLabel,
	})
	if err != nil {
		return nil, err
	}

	if err := sortReport(report, req.Sort); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ReportService) resolveBuckets(raw string) ([]aging.Bucket, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, BucketsNone) {
		return nil, nil
	}
	if raw == "" {
		raw = s.opts.DefaultBuckets
	}
	return aging.ResolveBuckets(raw)
}

func sortReport(report *aging.Report, order string) error {
	switch strings.TrimSpace(order) {
	case "", "keys":
		return nil
	case "total":
		report.SortByTotal()
		return nil
	default:
		if !report.SortByBucket(order) {
			return fmt.Errorf("%w: cannot sort by %q", ErrInvalidRequest, order)
		}
		return nil
	}
}

// loadDataset resolves a dataset the principal may read. Datasets past their
// expiry are treated as gone even before the purge job removes them.
func (s *ReportService) loadDataset(ctx context.Context, principal model.Principal, id uuid.UUID) (model.Dataset, error) {
	if !canUse(principal) {
		return model.Dataset{}, ErrPermissionDenied
	}
	dataset, err := s.datasets.GetDataset(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Dataset{}, ErrNotFound
		}
		return model.Dataset{}, err
	}
	if !dataset.ExpiresAt.IsZero() && dataset.ExpiresAt.Before(s.now()) {
		return model.Dataset{}, ErrNotFound
	}
	if !principal.CanAccess(dataset.OwnerID) {
		return model.Dataset{}, ErrPermissionDenied
	}
	return dataset, nil
}

// PurgeExpired removes datasets past their TTL.
func (s *ReportService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.datasets.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("datasets", n).Msg("expired datasets purged")
	}
	return n, nil
}

// PurgeAll clears every dataset. Called once at startup.
func (s *ReportService) PurgeAll(ctx context.Context) (int64, error) {
	return s.datasets.PurgeAll(ctx)
}

func canUse(principal model.Principal) bool {
	if principal.UserID == uuid.Nil {
		return false
	}
	return principal.Role == model.RoleAnalyst || principal.Role == model.RoleAdmin
}

func noValidData(info model.IngestInfo) error {
	msg := fmt.Sprintf("%d rows read, %d outside segment, %d with unreadable dates", info.RowsRead, info.DroppedBySegment, info.DroppedByDate)
	for _, fe := range info.FileErrors {
		msg += fmt.Sprintf("; %s: %s", fe.File, fe.Error)
	}
	return fmt.Errorf("%w: %s", ErrNoValidData, msg)
}
