package model

import (
	"time"
)

// Canonical field names produced by ingestion. Reports group by these.
const (
	FieldLob        = "Lob"
	FieldTicketID   = "Ticket_ID"
	FieldMember     = "Member"
	FieldAgentID    = "Agent_ID"
	FieldAgentName  = "Agent_Name"
	FieldHub        = "Hub"
	FieldCity       = "City"
	FieldCategory   = "Category"
	FieldCategoryL1 = "Category_L1"
	FieldCategoryL2 = "Category_L2"
	FieldIsVIP      = "Is_VIP"
	FieldIsRefund   = "Is_Refund"
)

// UnknownValue fills categorical fields that an upload left empty.
const UnknownValue = "Unknown"

// Event is one complaint row. Date is a calendar date at UTC midnight.
type Event struct {
	Date   time.Time
	Fields map[string]string
}

func (e Event) Value(field string) string {
	return e.Fields[field]
}

// EventTable is a flat, already-cleaned event population. Columns lists the
// categorical fields the upload populated.
type EventTable struct {
	Columns []string
	Events  []Event
}

func (t EventTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// DateOnly truncates to the calendar date in UTC.
func DateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	y, m, d := value.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayNumber returns the number of days since the Unix epoch for a calendar date.
func DayNumber(value time.Time) int {
	y, m, d := value.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
