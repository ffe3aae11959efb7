package service

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"complaint-analytics-service/internal/aging"
	"complaint-analytics-service/internal/model"
)

// View is a named grouping used by the dashboard tabs.
type View struct {
	Name        string   `json:"name"`
	GroupKeys   []string `json:"group_keys"`
	EntityField string   `json:"entity_field,omitempty"`
}

var views = map[string]View{
	"agents": {
		Name:      "agents",
		GroupKeys: []string{model.FieldAgentID, model.FieldAgentName, model.FieldHub, model.FieldCity},
	},
	"customers": {
		Name:      "customers",
		GroupKeys: []string{model.FieldMember, model.FieldIsVIP, model.FieldHub, model.FieldCity},
	},
	"categories": {
		Name:      "categories",
		GroupKeys: []string{model.FieldCategoryL1, model.FieldCategoryL2},
	},
	"hubs": {
		Name:      "hubs",
		GroupKeys: []string{model.FieldCity, model.FieldHub},
	},
	"overview": {
		Name:        "overview",
		GroupKeys:   []string{model.FieldAgentID, model.FieldAgentName},
		EntityField: model.FieldTicketID,
	},
}

func LookupView(name string) (View, bool) {
	v, ok := views[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

func Views() []View {
	out := make([]View, 0, len(views))
	for _, v := range views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ViewReport generates the report of a named view. Group keys and the entity
// column come from the view; everything else from the request.
func (s *ReportService) ViewReport(ctx context.Context, principal model.Principal, datasetID uuid.UUID, name string, req ReportRequest) (*aging.Report, error) {
	view, ok := LookupView(name)
	if !ok {
		return nil, ErrNotFound
	}
	req.GroupKeys = view.GroupKeys
	req.EntityField = view.EntityField
	return s.GenerateReport(ctx, principal, datasetID, req)
}
