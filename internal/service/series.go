package service

import (
	"context"

	"github.com/google/uuid"

	"complaint-analytics-service/internal/model"
)

const topCategoryLimit = 10

// Series returns chart data for the filtered range: one point per day (zero
// filled) and the most frequent categories with their share of the total.
func (s *ReportService) Series(ctx context.Context, principal model.Principal, datasetID uuid.UUID, filter model.ReportFilter) (*model.ComplaintSeries, error) {
	dataset, err := s.loadDataset(ctx, principal, datasetID)
	if err != nil {
		return nil, err
	}
	filter = filter.WithDefaults(dataset.Available)
	if days := filter.Range.Days(); s.opts.MaxDailyDays > 0 && days > s.opts.MaxDailyDays {
		return nil, ErrRangeTooLarge
	}

	points, err := s.datasets.DailyCounts(ctx, dataset.ID, filter)
	if err != nil {
		return nil, err
	}
	categories, err := s.datasets.CategoryCounts(ctx, dataset.ID, filter, topCategoryLimit)
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int64, len(points))
	series := &model.ComplaintSeries{
		Range:      filter.Range,
		Daily:      make([]model.SeriesPoint, 0, filter.Range.Days()),
		Categories: categories,
	}
	for _, p := range points {
		counts[model.DayNumber(p.Bucket)] = p.Count
		series.Total += p.Count
	}
	for i := 0; i < filter.Range.Days(); i++ {
		day := filter.Range.From.AddDate(0, 0, i)
		series.Daily = append(series.Daily, model.SeriesPoint{Bucket: day, Count: counts[model.DayNumber(day)]})
	}
	for i := range series.Categories {
		if series.Total > 0 {
			series.Categories[i].Share = float64(series.Categories[i].Count) / float64(series.Total)
		}
	}
	return series, nil
}
