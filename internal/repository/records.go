package repository

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"complaint-analytics-service/internal/model"
)

type datasetRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"type:uuid;index"`
	Name      string
	Segment   string
	Columns   string
	RowCount  int64
	MinDate   time.Time
	MaxDate   time.Time
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (datasetRecord) TableName() string { return "datasets" }

type eventRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	DatasetID  uuid.UUID `gorm:"type:uuid;not null"`
	EventDate  time.Time `gorm:"type:date;not null"`
	TicketID   string
	Member     string
	AgentID    string
	AgentName  string
	Hub        string
	City       string
	Category   string
	CategoryL1 string
	CategoryL2 string
	IsVIP      string `gorm:"column:is_vip"`
	VIP        bool   `gorm:"column:vip"`
	IsRefund   bool
}

func (eventRecord) TableName() string { return "complaint_events" }

// AutoMigrate creates or updates the dataset tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&datasetRecord{}, &eventRecord{})
}

// eventFields binds each canonical field to its column on eventRecord.
var eventFields = []struct {
	field string
	ptr   func(*eventRecord) *string
}{
	{model.FieldTicketID, func(r *eventRecord) *string { return &r.TicketID }},
	{model.FieldMember, func(r *eventRecord) *string { return &r.Member }},
	{model.FieldAgentID, func(r *eventRecord) *string { return &r.AgentID }},
	{model.FieldAgentName, func(r *eventRecord) *string { return &r.AgentName }},
	{model.FieldHub, func(r *eventRecord) *string { return &r.Hub }},
	{model.FieldCity, func(r *eventRecord) *string { return &r.City }},
	{model.FieldCategory, func(r *eventRecord) *string { return &r.Category }},
	{model.FieldCategoryL1, func(r *eventRecord) *string { return &r.CategoryL1 }},
	{model.FieldCategoryL2, func(r *eventRecord) *string { return &r.CategoryL2 }},
	{model.FieldIsVIP, func(r *eventRecord) *string { return &r.IsVIP }},
}

func toEventRecord(datasetID uuid.UUID, event model.Event) eventRecord {
	rec := eventRecord{DatasetID: datasetID, EventDate: model.DateOnly(event.Date)}
	for _, f := range eventFields {
		*f.ptr(&rec) = event.Value(f.field)
	}
	rec.VIP = model.ParseFlag(rec.IsVIP)
	rec.IsRefund = event.Value(model.FieldIsRefund) == "1"
	return rec
}

func toEvent(rec *eventRecord, columns map[string]struct{}) model.Event {
	fields := make(map[string]string, len(columns))
	for _, f := range eventFields {
		if _, ok := columns[f.field]; ok {
			fields[f.field] = *f.ptr(rec)
		}
	}
	if _, ok := columns[model.FieldIsRefund]; ok {
		fields[model.FieldIsRefund] = "0"
		if rec.IsRefund {
			fields[model.FieldIsRefund] = "1"
		}
	}
	return model.Event{Date: model.DateOnly(rec.EventDate), Fields: fields}
}

func toDataset(rec datasetRecord) model.Dataset {
	var columns []string
	if rec.Columns != "" {
		columns = strings.Split(rec.Columns, ",")
	}
	return model.Dataset{
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Name:      rec.Name,
		Segment:   rec.Segment,
		Columns:   columns,
		RowCount:  rec.RowCount,
		Available: model.DateRange{From: model.DateOnly(rec.MinDate), To: model.DateOnly(rec.MaxDate)},
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
}
