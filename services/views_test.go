package services

import (
	"reflect"
	"testing"
	"time"

	"civicsync/models"
)

func sampleIssues() []models.Issue {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []models.Issue{
		{ID: "1", Title: "Pothole on Main Street", Category: "Roads", Status: models.Pending,
			Location: models.Location{Address: "123 Main St"}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "2", Title: "Broken Street Light", Description: "dark at night", Category: "Lighting",
			Status: models.InProgress, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "3", Title: "Crack", Category: "Roads", Status: models.Resolved,
			Location: models.Location{Address: "789 Broadway"}, CreatedAt: base.Add(1 * time.Hour)},
	}
}

func ids(issues []models.Issue) []string {
	out := []string{}
	for _, i := range issues {
		out = append(out, i.ID)
	}
	return out
}

func TestFilterByCategoryIgnoresAllStatus(t *testing.T) {
	issues := sampleIssues()
	for _, status := range []string{"", FilterAll} {
		got := Filter{Status: status, Category: "Roads"}.Apply(issues)
		if !reflect.DeepEqual(ids(got), []string{"1", "3"}) {
			t.Fatalf("status %q: expected [1 3], got %v", status, ids(got))
		}
	}
}

func TestFilterCombinations(t *testing.T) {
	issues := sampleIssues()
	cases := []struct {
		filter Filter
		want   []string
	}{
		{Filter{}, []string{"1", "2", "3"}},
		{Filter{Status: "pending"}, []string{"1"}},
		{Filter{Status: "resolved", Category: "Roads"}, []string{"3"}},
		{Filter{Status: "resolved", Category: "Lighting"}, []string{}},
		{Filter{Search: "STREET"}, []string{"1", "2"}},
		{Filter{Search: "night"}, []string{"2"}},
		{Filter{Search: "broadway"}, []string{"3"}},
		{Filter{Category: FilterAll, Search: "main"}, []string{"1"}},
	}
	for _, tc := range cases {
		if got := ids(tc.filter.Apply(issues)); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%+v: expected %v, got %v", tc.filter, tc.want, got)
		}
	}
}

func TestCounts(t *testing.T) {
	issues := sampleIssues()
	counts := CountByStatus(issues)
	if counts != (StatusCounts{Total: 3, Pending: 1, InProgress: 1, Resolved: 1}) {
		t.Fatalf("unexpected counts %+v", counts)
	}

	byCategory := CountByCategory(issues)
	want := []CategoryCount{
		{Name: "Roads", Count: 2, Percent: 66.7},
		{Name: "Lighting", Count: 1, Percent: 33.3},
	}
	if !reflect.DeepEqual(byCategory, want) {
		t.Fatalf("expected %+v, got %+v", want, byCategory)
	}
	if got := CountByCategory(nil); len(got) != 0 {
		t.Fatalf("expected no categories for empty input")
	}
	if percent(1, 0) != 0 {
		t.Fatalf("percent of empty total must be 0")
	}
}

func TestRecentSortsNewestFirstWithoutMutatingInput(t *testing.T) {
	issues := sampleIssues()
	got := Recent(issues, 2)
	if !reflect.DeepEqual(ids(got), []string{"2", "1"}) {
		t.Fatalf("expected [2 1], got %v", ids(got))
	}
	if !reflect.DeepEqual(ids(issues), []string{"1", "2", "3"}) {
		t.Fatalf("input reordered: %v", ids(issues))
	}
	if len(Recent(issues, 10)) != 3 {
		t.Fatalf("expected all issues when n exceeds length")
	}
}

func TestGroupByStatus(t *testing.T) {
	groups := GroupByStatus(sampleIssues())
	if len(groups[models.Pending]) != 1 || len(groups[models.InProgress]) != 1 || len(groups[models.Resolved]) != 1 {
		t.Fatalf("unexpected groups %+v", groups)
	}
	empty := GroupByStatus(nil)
	if empty[models.Pending] == nil {
		t.Fatalf("expected empty buckets to be non-nil")
	}
}

func TestWorkflow(t *testing.T) {
	allowed := map[[2]models.IssueStatus]bool{
		{models.Pending, models.InProgress}:  true,
		{models.InProgress, models.Resolved}: true,
		{models.Resolved, models.InProgress}: true,
	}
	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			if got := CanTransition(from, to); got != allowed[[2]models.IssueStatus{from, to}] {
				t.Fatalf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
	if got := AllowedTransitions(models.Pending); !reflect.DeepEqual(got, []models.IssueStatus{models.InProgress}) {
		t.Fatalf("unexpected allowed transitions %v", got)
	}
}
