package model

import (
	"time"

	"github.com/google/uuid"
)

type Dataset struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   uuid.UUID   `json:"owner_id"`
	Name      string      `json:"name"`
	Segment   string      `json:"segment"`
	Columns   []string    `json:"columns"`
	RowCount  int64       `json:"row_count"`
	Available DateRange   `json:"available"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	Ingest    *IngestInfo `json:"ingest,omitempty"`
}

type IngestInfo struct {
	Files            int         `json:"files"`
	RowsRead         int         `json:"rows_read"`
	RowsKept         int         `json:"rows_kept"`
	DroppedBySegment int         `json:"dropped_by_segment"`
	DroppedByDate    int         `json:"dropped_by_date"`
	FileErrors       []FileError `json:"file_errors,omitempty"`
}

type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type SeriesPoint struct {
	Bucket time.Time `json:"bucket"`
	Count  int64     `json:"count"`
}

type CategoryCount struct {
	Category string  `json:"category"`
	Count    int64   `json:"count"`
	Share    float64 `json:"share"`
}

type ComplaintSeries struct {
	Range      DateRange       `json:"range"`
	Total      int64           `json:"total"`
	Daily      []SeriesPoint   `json:"daily"`
	Categories []CategoryCount `json:"categories"`
}

type MemberEvent struct {
	Date     time.Time `json:"date"`
	TicketID string    `json:"ticket_id"`
	Category string    `json:"category"`
	Hub      string    `json:"hub"`
	IsRefund bool      `json:"is_refund"`
}

type MemberDrilldown struct {
	Member string        `json:"member"`
	Range  DateRange     `json:"range"`
	Events []MemberEvent `json:"events"`
}
