package audit

import (
	"context"
	"testing"
	"time"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastLimit  int
	lastOffset int
	lastFilter TimelineFilters
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.lastFilter = filters
	s.lastLimit = limit
	s.lastOffset = offset
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func mockRow(ts, actor, action, entity, entityID string) TimelineRow {
	tval, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: tval, Actor: actor, Action: action, Entity: entity, EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			mockRow("2026-03-10T10:00:00Z", "7", "user.deleted", "user", "1"),
			mockRow("2026-03-09T09:00:00Z", "7", "user.deleted", "user", "2"),
			mockRow("2026-03-08T08:00:00Z", "system", "user.deleted", "user", "3"),
		},
	}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext {
		t.Fatal("expected hasNext true")
	}
	if result.Paging.NextPage != 2 {
		t.Fatalf("expected next page 2, got %d", result.Paging.NextPage)
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineDefaultsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if result.Paging.Page != 1 || result.Paging.PageSize != 20 {
		t.Fatalf("unexpected paging defaults: %+v", result.Paging)
	}
	if repo.lastLimit != 21 {
		t.Fatalf("expected limit 21, got %d", repo.lastLimit)
	}
	if result.Rows == nil {
		t.Fatal("rows must not be nil for empty page")
	}
}

func TestServiceTimelineSecondPageOffset(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastOffset != 20 {
		t.Fatalf("expected offset 20, got %d", repo.lastOffset)
	}
	if result.Paging.PrevPage != 2 {
		t.Fatalf("expected prev page 2, got %d", result.Paging.PrevPage)
	}
	if result.Paging.HasNext {
		t.Fatal("expected hasNext false for short page")
	}
}
