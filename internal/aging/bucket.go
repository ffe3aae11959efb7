package aging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfiguration is returned for caller mistakes that make a report
// impossible to compute. It is never returned for empty data.
var ErrInvalidConfiguration = errors.New("invalid report configuration")

const (
	PresetAging      = "aging"
	PresetCumulative = "cumulative"
	PresetRefund     = "refund"
)

// Bucket is a named window of day offsets back from the anchor date. An event
// falls in the bucket when its date lies in
// [anchor-EndOffset, anchor-StartOffset], both ends inclusive.
type Bucket struct {
	Label       string `json:"label"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Window returns the inclusive calendar bounds of the bucket for anchor.
func (b Bucket) Window(anchor time.Time) (from, to time.Time) {
	return anchor.AddDate(0, 0, -b.EndOffset), anchor.AddDate(0, 0, -b.StartOffset)
}

func (b Bucket) contains(offset int) bool {
	return offset >= b.StartOffset && offset <= b.EndOffset
}

// Mutually exclusive age bands and overlapping "last N days" windows are both
// legitimate reporting modes; neither is the default in the engine itself.
var presets = map[string][]Bucket{
	PresetAging: {
		{Label: "0-5 Days", StartOffset: 0, EndOffset: 5},
		{Label: "5-10 Days", StartOffset: 6, EndOffset: 10},
		{Label: "10-15 Days", StartOffset: 11, EndOffset: 15},
		{Label: "15-30 Days", StartOffset: 16, EndOffset: 30},
	},
	PresetCumulative: {
		{Label: "1D", StartOffset: 0, EndOffset: 0},
		{Label: "2D", StartOffset: 0, EndOffset: 1},
		{Label: "3D", StartOffset: 0, EndOffset: 2},
		{Label: "7D", StartOffset: 0, EndOffset: 6},
		{Label: "30D", StartOffset: 0, EndOffset: 29},
	},
	PresetRefund: {
		{Label: "Refund_1D", StartOffset: 0, EndOffset: 0},
		{Label: "Refund_7D", StartOffset: 0, EndOffset: 6},
		{Label: "Refund_30D", StartOffset: 0, EndOffset: 29},
	},
}

// Preset returns a copy of a named bucket set.
func Preset(name string) ([]Bucket, bool) {
	buckets, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return append([]Bucket(nil), buckets...), true
}

// ParseBuckets reads a comma separated list of label:start:end triples, e.g.
// "0-5 Days:0:5,5-10 Days:6:10".
func ParseBuckets(raw string) ([]Bucket, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	buckets := make([]Bucket, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: bucket %q must be label:start:end", ErrInvalidConfiguration, part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %q start offset: %v", ErrInvalidConfiguration, part, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %q end offset: %v", ErrInvalidConfiguration, part, err)
		}
		buckets = append(buckets, Bucket{Label: strings.TrimSpace(fields[0]), StartOffset: start, EndOffset: end})
	}
	return buckets, nil
}

// ResolveBuckets accepts either a preset name or a bucket list for
// ParseBuckets. An empty value resolves to no buckets.
func ResolveBuckets(raw string) ([]Bucket, error) {
	if buckets, ok := Preset(raw); ok {
		return buckets, nil
	}
	if strings.TrimSpace(raw) != "" && !strings.Contains(raw, ":") {
		return nil, fmt.Errorf("%w: unknown bucket preset %q", ErrInvalidConfiguration, raw)
	}
	return ParseBuckets(raw)
}
