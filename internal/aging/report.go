package aging

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"complaint-analytics-service/internal/model"
)

// Row is one group of the report. Buckets and Daily are parallel to the
// report's BucketLabels and DayLabels and are always fully populated.
type Row struct {
	Keys      []string `json:"keys"`
	Total     int64    `json:"total"`
	Buckets   []int64  `json:"buckets"`
	Daily     []int64  `json:"daily,omitempty"`
	EntityIDs []string `json:"entity_ids,omitempty"`
}

// Key returns the encoded group identity of the row.
func (r Row) Key() string {
	return KeyOf(r.Keys)
}

// Report is an immutable snapshot; it is recomputed on every call.
type Report struct {
	GroupKeys    []string        `json:"group_keys"`
	TotalLabel   string          `json:"total_label"`
	BucketLabels []string        `json:"bucket_labels"`
	DayLabels    []string        `json:"day_labels,omitempty"`
	Days         []time.Time     `json:"-"`
	EntityField  string          `json:"entity_field,omitempty"`
	Anchor       time.Time       `json:"anchor"`
	Range        model.DateRange `json:"range"`
	Rows         []Row           `json:"rows"`
}

// Header lists the columns in order: group keys, total, buckets, days and
// finally the entity column when requested.
func (r *Report) Header() []string {
	header := make([]string, 0, len(r.GroupKeys)+1+len(r.BucketLabels)+len(r.DayLabels)+1)
	header = append(header, r.GroupKeys...)
	header = append(header, r.TotalLabel)
	header = append(header, r.BucketLabels...)
	header = append(header, r.DayLabels...)
	if r.EntityField != "" {
		header = append(header, r.EntityField)
	}
	return header
}

func (r *Report) Records() [][]string {
	records := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make([]string, 0, len(r.GroupKeys)+1+len(row.Buckets)+len(row.Daily)+1)
		record = append(record, row.Keys...)
		record = append(record, strconv.FormatInt(row.Total, 10))
		for _, v := range row.Buckets {
			record = append(record, strconv.FormatInt(v, 10))
		}
		for _, v := range row.Daily {
			record = append(record, strconv.FormatInt(v, 10))
		}
		if r.EntityField != "" {
			record = append(record, strings.Join(row.EntityIDs, ", "))
		}
		records = append(records, record)
	}
	return records
}

func (r *Report) KeyColumns() int {
	return len(r.GroupKeys)
}

// BucketIndex returns the column position of a bucket label.
func (r *Report) BucketIndex(label string) int {
	for i, l := range r.BucketLabels {
		if l == label {
			return i
		}
	}
	return -1
}

// SortByTotal orders rows by descending total, ties by group key.
func (r *Report) SortByTotal() {
	sort.SliceStable(r.Rows, func(i, j int) bool {
		if r.Rows[i].Total != r.Rows[j].Total {
			return r.Rows[i].Total > r.Rows[j].Total
		}
		return lessKeys(r.Rows[i].Keys, r.Rows[j].Keys)
	})
}

// SortByBucket orders rows by descending count in one bucket column, then by
// total.
func (r *Report) SortByBucket(label string) bool {
	idx := r.BucketIndex(label)
	if idx < 0 {
		return false
	}
	sort.SliceStable(r.Rows, func(i, j int) bool {
		if r.Rows[i].Buckets[idx] != r.Rows[j].Buckets[idx] {
			return r.Rows[i].Buckets[idx] > r.Rows[j].Buckets[idx]
		}
		if r.Rows[i].Total != r.Rows[j].Total {
			return r.Rows[i].Total > r.Rows[j].Total
		}
		return lessKeys(r.Rows[i].Keys, r.Rows[j].Keys)
	})
	return true
}
