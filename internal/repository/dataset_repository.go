package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"complaint-analytics-service/internal/model"
)

const insertBatchSize = 500

var ErrNotFound = errors.New("record not found")

type DatasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// CreateDataset stores the dataset row and all of its events in one
// transaction. RowCount and Available are derived from the table.
func (r *DatasetRepository) CreateDataset(ctx context.Context, dataset model.Dataset, table model.EventTable) (model.Dataset, error) {
	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}

	rec := datasetRecord{
		ID:        dataset.ID,
		OwnerID:   dataset.OwnerID,
		Name:      dataset.Name,
		Segment:   dataset.Segment,
		Columns:   strings.Join(table.Columns, ","),
		RowCount:  int64(len(table.Events)),
		CreatedAt: dataset.CreatedAt.UTC(),
		ExpiresAt: dataset.ExpiresAt.UTC(),
	}
	for i, event := range table.Events {
		day := model.DateOnly(event.Date)
		if i == 0 || day.Before(rec.MinDate) {
			rec.MinDate = day
		}
		if i == 0 || day.After(rec.MaxDate) {
			rec.MaxDate = day
		}
	}

	events := make([]eventRecord, 0, len(table.Events))
	for _, event := range table.Events {
		events = append(events, toEventRecord(dataset.ID, event))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		return tx.CreateInBatches(&events, insertBatchSize).Error
	})
	if err != nil {
		return model.Dataset{}, err
	}

	stored := toDataset(rec)
	stored.Ingest = dataset.Ingest
	return stored, nil
}

func (r *DatasetRepository) GetDataset(ctx context.Context, id uuid.UUID) (model.Dataset, error) {
	var rec datasetRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Dataset{}, ErrNotFound
	}
	if err != nil {
		return model.Dataset{}, err
	}
	return toDataset(rec), nil
}

// ListDatasets returns datasets newest first. A nil owner lists every dataset.
func (r *DatasetRepository) ListDatasets(ctx context.Context, owner *uuid.UUID) ([]model.Dataset, error) {
	var recs []datasetRecord
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if owner != nil {
		query = query.Where("owner_id = ?", *owner)
	}
	if err := query.Find(&recs).Error; err != nil {
		return nil, err
	}
	return lo.Map(recs, func(rec datasetRecord, _ int) model.Dataset { return toDataset(rec) }), nil
}

func (r *DatasetRepository) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_id = ?", id).Delete(&eventRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&datasetRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LoadEvents rebuilds the event table of a dataset with the categorical
// filters applied. The date range is left to the caller because buckets look
// outside of it.
func (r *DatasetRepository) LoadEvents(ctx context.Context, dataset model.Dataset, filter model.ReportFilter) (model.EventTable, error) {
	var recs []eventRecord
	query := r.db.WithContext(ctx).
		Where("dataset_id = ?", dataset.ID).
		Order("event_date, id")
	query = applyFilter(query, filter)
	if err := query.Find(&recs).Error; err != nil {
		return model.EventTable{}, err
	}

	columns := lo.SliceToMap(dataset.Columns, func(c string) (string, struct{}) { return c, struct{}{} })
	table := model.EventTable{
		Columns: append([]string(nil), dataset.Columns...),
		Events:  make([]model.Event, 0, len(recs)),
	}
	for i := range recs {
		table.Events = append(table.Events, toEvent(&recs[i], columns))
	}
	return table, nil
}

// MemberEvents lists one member's complaints inside the range, oldest first.
func (r *DatasetRepository) MemberEvents(ctx context.Context, datasetID uuid.UUID, member string, rng model.DateRange) ([]model.MemberEvent, error) {
	var recs []eventRecord
	err := r.db.WithContext(ctx).
		Where("dataset_id = ? AND member = ?", datasetID, member).
		Order("event_date, id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	events := make([]model.MemberEvent, 0, len(recs))
	for _, rec := range recs {
		day := model.DateOnly(rec.EventDate)
		if !rng.Contains(day) {
			continue
		}
		events = append(events, model.MemberEvent{
			Date:     day,
			TicketID: rec.TicketID,
			Category: rec.Category,
			Hub:      rec.Hub,
			IsRefund: rec.IsRefund,
		})
	}
	return events, nil
}

// DailyCounts returns the number of filtered events per day in the range.
// Days without events are omitted.
func (r *DatasetRepository) DailyCounts(ctx context.Context, datasetID uuid.UUID, filter model.ReportFilter) ([]model.SeriesPoint, error) {
	type row struct {
		EventDate time.Time
		Count     int64
	}
	var rows []row

	query := r.db.WithContext(ctx).
		Model(&eventRecord{}).
		Select("event_date, COUNT(*) AS count").
		Where("dataset_id = ? AND event_date BETWEEN ? AND ?", datasetID, filter.Range.From, filter.Range.To).
		Group("event_date").
		Order("event_date")
	query = applyFilter(query, filter)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	return lo.Map(rows, func(r row, _ int) model.SeriesPoint {
		return model.SeriesPoint{Bucket: model.DateOnly(r.EventDate), Count: r.Count}
	}), nil
}

// CategoryCounts returns filtered event counts per category in the range,
// largest first.
func (r *DatasetRepository) CategoryCounts(ctx context.Context, datasetID uuid.UUID, filter model.ReportFilter, limit int) ([]model.CategoryCount, error) {
	type row struct {
		Category string
		Count    int64
	}
	var rows []row

	query := r.db.WithContext(ctx).
		Model(&eventRecord{}).
		Select("category, COUNT(*) AS count").
		Where("dataset_id = ? AND event_date BETWEEN ? AND ?", datasetID, filter.Range.From, filter.Range.To).
		Group("category").
		Order("count DESC, category")
	query = applyFilter(query, filter)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	return lo.Map(rows, func(r row, _ int) model.CategoryCount {
		return model.CategoryCount{Category: r.Category, Count: r.Count}
	}), nil
}

// PurgeExpired deletes every dataset whose expiry is before now.
func (r *DatasetRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.purge(ctx, r.db.WithContext(ctx).Model(&datasetRecord{}).Where("expires_at < ?", now.UTC()))
}

// PurgeAll drops every stored dataset.
func (r *DatasetRepository) PurgeAll(ctx context.Context) (int64, error) {
	return r.purge(ctx, r.db.WithContext(ctx).Model(&datasetRecord{}))
}

func (r *DatasetRepository) purge(ctx context.Context, selection *gorm.DB) (int64, error) {
	var ids []uuid.UUID
	if err := selection.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_id IN ?", ids).Delete(&eventRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&datasetRecord{}).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func applyFilter(query *gorm.DB, filter model.ReportFilter) *gorm.DB {
	if len(filter.Cities) > 0 {
		query = query.Where("LOWER(city) IN ?", lowerAll(filter.Cities))
	}
	if len(filter.Hubs) > 0 {
		query = query.Where("LOWER(hub) IN ?", lowerAll(filter.Hubs))
	}
	if len(filter.Categories) > 0 {
		query = query.Where("LOWER(category) IN ?", lowerAll(filter.Categories))
	}
	if filter.VIP != nil {
		query = query.Where("vip = ?", *filter.VIP)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		query = query.Where(`(LOWER(member) LIKE ? ESCAPE '\' OR LOWER(ticket_id) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return query
}

func lowerAll(values []string) []string {
	return lo.Map(values, func(v string, _ int) string { return strings.ToLower(strings.TrimSpace(v)) })
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
