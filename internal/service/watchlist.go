package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"complaint-analytics-service/internal/aging"
	"complaint-analytics-service/internal/model"
)

const (
	ColumnTotalComplaints  = "Total_Complaints"
	ColumnRefundIncidents  = "Refund_Incidents"
	ColumnUniqueCategories = "Unique_Categories"
	ColumnRefundRatio      = "Refund_Ratio %"
)

var watchlistKeys = []string{model.FieldMember, model.FieldIsVIP, model.FieldHub, model.FieldCity}

var hundred = decimal.NewFromInt(100)

type WatchlistRow struct {
	Keys             []string        `json:"keys"`
	TotalComplaints  int64           `json:"total_complaints"`
	RefundIncidents  int64           `json:"refund_incidents"`
	UniqueCategories int             `json:"unique_categories"`
	RefundRatio      decimal.Decimal `json:"refund_ratio"`
	RefundWindows    []int64         `json:"refund_windows"`
}

// Watchlist ranks customers by refund incidents to surface refund misuse.
type Watchlist struct {
	GroupKeys    []string        `json:"group_keys"`
	WindowLabels []string        `json:"window_labels"`
	Anchor       string          `json:"anchor"`
	Range        model.DateRange `json:"range"`
	Rows         []WatchlistRow  `json:"rows"`
}

func (w *Watchlist) Header() []string {
	header := append([]string(nil), w.GroupKeys...)
	header = append(header, ColumnTotalComplaints, ColumnRefundIncidents, ColumnUniqueCategories, ColumnRefundRatio)
	return append(header, w.WindowLabels...)
}

func (w *Watchlist) KeyColumns() int {
	return len(w.GroupKeys)
}

func (w *Watchlist) Records() [][]string {
	records := make([][]string, 0, len(w.Rows))
	for _, row := range w.Rows {
		record := append([]string(nil), row.Keys...)
		record = append(record,
			strconv.FormatInt(row.TotalComplaints, 10),
			strconv.FormatInt(row.RefundIncidents, 10),
			strconv.Itoa(row.UniqueCategories),
			row.RefundRatio.StringFixed(1),
		)
		for _, v := range row.RefundWindows {
			record = append(record, strconv.FormatInt(v, 10))
		}
		records = append(records, record)
	}
	return records
}

// CustomerWatchlist builds the per-customer refund table. Refund windows only
// count refund incidents inside the selected range, anchored at its end.
func (s *ReportService) CustomerWatchlist(ctx context.Context, principal model.Principal, datasetID uuid.UUID, filter model.ReportFilter) (*Watchlist, error) {
	dataset, err := s.loadDataset(ctx, principal, datasetID)
	if err != nil {
		return nil, err
	}
	filter = filter.WithDefaults(dataset.Available)

	table, err := s.datasets.LoadEvents(ctx, dataset, filter)
	if err != nil {
		return nil, err
	}
	if !table.HasColumn(model.FieldMember) {
		return nil, fmt.Errorf("%w: dataset has no %s column", ErrInvalidRequest, model.FieldMember)
	}

	windows, _ := aging.Preset(aging.PresetRefund)

	isRefund := func(e model.Event) bool { return e.Value(model.FieldIsRefund) == "1" }

	summary, err := aging.Generate(aging.Request{
		Table:       table,
		GroupKeys:   watchlistKeys,
		Anchor:      filter.Range.To,
		Buckets:     windows,
		Range:       filter.Range,
		EntityField: model.FieldCategory,
		TotalLabel:  ColumnTotalComplaints,
		BucketFilter: func(e model.Event) bool {
			return isRefund(e) && filter.Range.Contains(e.Date)
		},
	})
	if err != nil {
		return nil, err
	}

	refunds, err := aging.Generate(aging.Request{
		Table:      model.EventTable{Columns: table.Columns, Events: lo.Filter(table.Events, func(e model.Event, _ int) bool { return isRefund(e) })},
		GroupKeys:  watchlistKeys,
		Range:      filter.Range,
		TotalLabel: ColumnRefundIncidents,
	})
	if err != nil {
		return nil, err
	}
	refundTotals := make(map[string]int64, len(refunds.Rows))
	for _, row := range refunds.Rows {
		refundTotals[row.Key()] = row.Total
	}

	watchlist := &Watchlist{
		GroupKeys:    summary.GroupKeys,
		WindowLabels: summary.BucketLabels,
		Anchor:       summary.Range.To.Format(model.DateLayout),
		Range:        summary.Range,
		Rows:         make([]WatchlistRow, 0, len(summary.Rows)),
	}
	for _, row := range summary.Rows {
		incidents := refundTotals[row.Key()]
		watchlist.Rows = append(watchlist.Rows, WatchlistRow{
			Keys:             row.Keys,
			TotalComplaints:  row.Total,
			RefundIncidents:  incidents,
			UniqueCategories: len(row.EntityIDs),
			RefundRatio:      refundRatio(incidents, row.Total),
			RefundWindows:    row.Buckets,
		})
	}

	sort.SliceStable(watchlist.Rows, func(i, j int) bool {
		a, b := watchlist.Rows[i], watchlist.Rows[j]
		if a.RefundIncidents != b.RefundIncidents {
			return a.RefundIncidents > b.RefundIncidents
		}
		return a.TotalComplaints > b.TotalComplaints
	})

	return watchlist, nil
}

func refundRatio(refunds, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(refunds).Mul(hundred).Div(decimal.NewFromInt(total)).Round(1)
}
