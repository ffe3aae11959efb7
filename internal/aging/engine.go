package aging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"complaint-analytics-service/internal/model"
)

const DefaultTotalLabel = "range_total"

const keySeparator = "\x1f"

// Request describes one report. Table, GroupKeys, Anchor, Buckets, Range and
// IncludeDaily are the core inputs; the remaining fields are optional.
type Request struct {
	Table        model.EventTable
	GroupKeys    []string
	Anchor       time.Time
	Buckets      []Bucket
	Range        model.DateRange
	IncludeDaily bool

	// EntityField collects the distinct values of a row-level identifier per
	// group into one trailing column.
	EntityField string
	// TotalLabel names the range total column.
	TotalLabel string
	// BucketFilter restricts which events count toward bucket columns.
	BucketFilter func(model.Event) bool
}

// GenerateReport aggregates events into one row per group with a range total,
// one column per bucket and, optionally, one column per day of the range.
func GenerateReport(table model.EventTable, groupKeys []string, anchor time.Time, buckets []Bucket, rangeStart, rangeEnd time.Time, includeDaily bool) (*Report, error) {
	return Generate(Request{
		Table:        table,
		GroupKeys:    groupKeys,
		Anchor:       anchor,
		Buckets:      buckets,
		Range:        model.DateRange{From: rangeStart, To: rangeEnd},
		IncludeDaily: includeDaily,
	})
}

type groupAcc struct {
	keys     []string
	total    int64
	buckets  []int64
	daily    []int64
	entities map[string]struct{}
}

// Generate runs a single pass over the events. Each event is placed in its day
// column and every bucket whose window contains it by day arithmetic against
// the anchor; buckets see the whole population, not only the selected range.
func Generate(req Request) (*Report, error) {
	keys, err := resolveGroupKeys(req.Table, req.GroupKeys)
	if err != nil {
		return nil, err
	}

	totalLabel := strings.TrimSpace(req.TotalLabel)
	if totalLabel == "" {
		totalLabel = DefaultTotalLabel
	}
	entityField := ""
	if req.EntityField != "" && req.Table.HasColumn(req.EntityField) {
		entityField = req.EntityField
	}

	from := model.DateOnly(req.Range.From)
	to := model.DateOnly(req.Range.To)
	anchor := model.DateOnly(req.Anchor)
	fromDay := model.DayNumber(from)
	toDay := model.DayNumber(to)
	anchorDay := model.DayNumber(anchor)

	report := &Report{
		GroupKeys:    keys,
		TotalLabel:   totalLabel,
		BucketLabels: lo.Map(req.Buckets, func(b Bucket, _ int) string { return b.Label }),
		EntityField:  entityField,
		Anchor:       anchor,
		Range:        model.DateRange{From: from, To: to},
		Rows:         []Row{},
	}

	dayCount := 0
	if req.IncludeDaily && toDay >= fromDay {
		dayCount = toDay - fromDay + 1
		report.Days = make([]time.Time, dayCount)
		report.DayLabels = make([]string, dayCount)
		layout := dayLabelLayout(from, to)
		for i := 0; i < dayCount; i++ {
			day := from.AddDate(0, 0, i)
			report.Days[i] = day
			report.DayLabels[i] = day.Format(layout)
		}
	}
	if err := validateLabels(report.Header()); err != nil {
		return nil, err
	}

	groups := make(map[string]*groupAcc)
	values := make([]string, len(keys))

	for _, event := range req.Table.Events {
		if event.Date.IsZero() {
			continue
		}
		day := model.DayNumber(event.Date)
		inRange := day >= fromDay && day <= toDay
		offset := anchorDay - day

		countBuckets := req.BucketFilter == nil || req.BucketFilter(event)
		inBucket := false
		if countBuckets {
			for _, b := range req.Buckets {
				if b.contains(offset) {
					inBucket = true
					break
				}
			}
		}
		if !inRange && !inBucket {
			continue
		}

		for i, key := range keys {
			values[i] = event.Value(key)
		}
		id := strings.Join(values, keySeparator)
		acc, ok := groups[id]
		if !ok {
			acc = &groupAcc{
				keys:    append([]string(nil), values...),
				buckets: make([]int64, len(req.Buckets)),
			}
			groups[id] = acc
		}

		if inRange {
			acc.total++
			if dayCount > 0 {
				if acc.daily == nil {
					acc.daily = make([]int64, dayCount)
				}
				acc.daily[day-fromDay]++
			}
			if entityField != "" {
				if acc.entities == nil {
					acc.entities = make(map[string]struct{})
				}
				acc.entities[event.Value(entityField)] = struct{}{}
			}
		}
		if inBucket {
			for i, b := range req.Buckets {
				if b.contains(offset) {
					acc.buckets[i]++
				}
			}
		}
	}

	for _, acc := range groups {
		// Groups seen only through a bucket window outside the range are not
		// part of the row universe.
		if acc.total == 0 {
			continue
		}
		row := Row{
			Keys:    acc.keys,
			Total:   acc.total,
			Buckets: acc.buckets,
			Daily:   acc.daily,
		}
		if row.Daily == nil {
			row.Daily = make([]int64, dayCount)
		}
		if entityField != "" {
			row.EntityIDs = lo.Keys(acc.entities)
			sort.Strings(row.EntityIDs)
		}
		report.Rows = append(report.Rows, row)
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return lessKeys(report.Rows[i].Keys, report.Rows[j].Keys)
	})

	return report, nil
}

// resolveGroupKeys drops keys the upload did not populate. Partially filled
// uploads still get a report on the keys that exist.
func resolveGroupKeys(table model.EventTable, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: at least one group key is required", ErrInvalidConfiguration)
	}
	// A table without a schema carries no rows, so the requested keys shape an empty report.
	schemaless := len(table.Columns) == 0 && len(table.Events) == 0
	keys := lo.Uniq(lo.Filter(requested, func(key string, _ int) bool {
		return key != "" && (schemaless || table.HasColumn(key))
	}))
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: none of the group keys %v exist in the data", ErrInvalidConfiguration, requested)
	}
	return keys, nil
}

// validateLabels rejects blank bucket labels and any header collision between
// group keys, the total, bucket labels, day labels and the entity column.
func validateLabels(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for _, label := range header {
		label = strings.TrimSpace(label)
		if label == "" {
			return fmt.Errorf("%w: column label is empty", ErrInvalidConfiguration)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidConfiguration, label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

func dayLabelLayout(from, to time.Time) string {
	if from.Year() == to.Year() {
		return "02-Jan"
	}
	return "02-Jan-06"
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// KeyOf encodes group key values the same way the engine does.
func KeyOf(values []string) string {
	return strings.Join(values, keySeparator)
}
