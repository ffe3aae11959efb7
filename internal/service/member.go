package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"complaint-analytics-service/internal/model"
)

func (s *ReportService) MemberDrilldown(ctx context.Context, principal model.Principal, datasetID uuid.UUID, member string, filter model.ReportFilter) (*model.MemberDrilldown, error) {
	member = strings.TrimSpace(member)
	if member == "" {
		return nil, fmt.Errorf("%w: member is required", ErrInvalidRequest)
	}
	dataset, err := s.loadDataset(ctx, principal, datasetID)
	if err != nil {
		return nil, err
	}
	filter = filter.WithDefaults(dataset.Available)

	events, err := s.datasets.MemberEvents(ctx, dataset.ID, member, filter.Range)
	if err != nil {
		return nil, err
	}
	return &model.MemberDrilldown{Member: member, Range: filter.Range, Events: events}, nil
}
