package ingest

import (
	"strings"

	"complaint-analytics-service/internal/model"
)

// FieldAlias maps one canonical field to the header spellings seen in exports,
// in order of preference.
type FieldAlias struct {
	Field   string
	Aliases []string
}

// FieldDate is the canonical name of the raw complaint timestamp column.
const FieldDate = "Date"

var DefaultSchema = []FieldAlias{
	{Field: model.FieldLob, Aliases: []string{"Lob", "Line of Business"}},
	{Field: FieldDate, Aliases: []string{"Date", "Complaint Created Date & Time", "Created Date", "Created At"}},
	{Field: model.FieldTicketID, Aliases: []string{"Ticket ID", "Complaint ID", "Ticket No", "Ticket Number"}},
	{Field: model.FieldMember, Aliases: []string{"Member Id", "Customer ID", "Member"}},
	{Field: model.FieldAgentID, Aliases: []string{"Agent ID", "Agent Emp ID", "Employee ID", "Emp ID"}},
	{Field: model.FieldAgentName, Aliases: []string{"Agent Name", "Created By", "Agent"}},
	{Field: model.FieldHub, Aliases: []string{"Hub", "Hub Name"}},
	{Field: model.FieldCity, Aliases: []string{"City", "City Name"}},
	{Field: model.FieldCategory, Aliases: []string{"Level 4", "Agent Disposition Levels 4", "Category"}},
	{Field: model.FieldCategoryL1, Aliases: []string{"Level 1", "Agent Disposition Levels 1", "Category L1"}},
	{Field: model.FieldCategoryL2, Aliases: []string{"Level 2", "Agent Disposition Levels 2", "Category L2"}},
	{Field: model.FieldIsVIP, Aliases: []string{"Is VIP Customer", "VIP", "Is VIP"}},
}

// resolve returns the column index of every canonical field found in headers.
func resolve(schema []FieldAlias, headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	resolved := make(map[string]int, len(schema))
	for _, entry := range schema {
		for _, alias := range entry.Aliases {
			if idx, ok := index[normalizeHeader(alias)]; ok {
				resolved[entry.Field] = idx
				break
			}
		}
	}
	return resolved
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
