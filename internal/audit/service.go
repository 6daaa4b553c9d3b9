package audit

import (
	"context"
	"fmt"

	"github.com/steward-admin/steward/internal/shared"
)

// RepositoryPort provides access to the timeline window query.
type RepositoryPort interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error)
}

// Result bundles one timeline page with its paging metadata.
type Result struct {
	Rows   []TimelineRow     `json:"rows"`
	Paging shared.Pagination `json:"paging"`
}

// Service coordinates audit trail reads.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of audit entries, newest first. One extra row is
// fetched to derive HasNext without a count query.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	paging := shared.NewPagination(filters.Page, filters.PageSize, false)
	offset := (paging.Page - 1) * paging.PageSize

	rows, err := s.repo.TimelineWindow(ctx, filters, paging.PageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > paging.PageSize
	if hasNext {
		rows = rows[:paging.PageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{
		Rows:   rows,
		Paging: shared.NewPagination(paging.Page, paging.PageSize, hasNext),
	}, nil
}
