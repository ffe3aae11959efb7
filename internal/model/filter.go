package model

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Days is the number of calendar days in the inclusive range, zero when To is
// before From.
func (r DateRange) Days() int {
	if r.From.IsZero() || r.To.IsZero() {
		return 0
	}
	n := DayNumber(r.To) - DayNumber(r.From) + 1
	if n < 0 {
		return 0
	}
	return n
}

func (r DateRange) Contains(day time.Time) bool {
	n := DayNumber(day)
	return n >= DayNumber(r.From) && n <= DayNumber(r.To)
}

// ReportFilter carries every user-selected narrowing of the event population.
// It is built once per request and never mutated afterwards.
type ReportFilter struct {
	Range      DateRange
	Anchor     time.Time
	Cities     []string
	Hubs       []string
	Categories []string
	VIP        *bool
	Search     string
}

// WithDefaults fills an unset range from the dataset bounds and an unset
// anchor from the range end.
func (f ReportFilter) WithDefaults(bounds DateRange) ReportFilter {
	if f.Range.From.IsZero() {
		f.Range.From = bounds.From
	}
	if f.Range.To.IsZero() {
		f.Range.To = bounds.To
	}
	f.Range.From = DateOnly(f.Range.From)
	f.Range.To = DateOnly(f.Range.To)
	if f.Anchor.IsZero() {
		f.Anchor = f.Range.To
	}
	f.Anchor = DateOnly(f.Anchor)
	return f
}

// Matches applies the categorical filters (everything except the date range).
func (f ReportFilter) Matches(e Event) bool {
	if len(f.Cities) > 0 && !containsFold(f.Cities, e.Value(FieldCity)) {
		return false
	}
	if len(f.Hubs) > 0 && !containsFold(f.Hubs, e.Value(FieldHub)) {
		return false
	}
	if len(f.Categories) > 0 && !containsFold(f.Categories, e.Value(FieldCategory)) {
		return false
	}
	if f.VIP != nil && ParseFlag(e.Value(FieldIsVIP)) != *f.VIP {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		member := strings.ToLower(e.Value(FieldMember))
		ticket := strings.ToLower(e.Value(FieldTicketID))
		if !strings.Contains(member, q) && !strings.Contains(ticket, q) {
			return false
		}
	}
	return true
}

// ParseFlag reads the loose yes/no spellings found in exports.
func ParseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "vip":
		return true
	default:
		return false
	}
}

func containsFold(values []string, candidate string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), candidate) {
			return true
		}
	}
	return false
}
