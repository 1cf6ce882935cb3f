package services

import (
	"math"
	"slices"
	"strings"

	"civicsync/models"
)

// FilterAll matches any status or category.
const FilterAll = "all"

// Filter narrows an issue listing. Empty fields and "all" match everything.
type Filter struct {
	Status   string
	Category string
	Search   string
}

// Apply returns the issues matching every criterion, keeping input order.
func (f Filter) Apply(issues []models.Issue) []models.Issue {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := []models.Issue{}
	for _, issue := range issues {
		if f.Status != "" && f.Status != FilterAll && string(issue.Status) != f.Status {
			continue
		}
		if f.Category != "" && f.Category != FilterAll && issue.Category != f.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(issue.Title), search) &&
			!strings.Contains(strings.ToLower(issue.Description), search) &&
			!strings.Contains(strings.ToLower(issue.Location.Address), search) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inprogress"`
	Resolved   int `json:"resolved"`
}

func CountByStatus(issues []models.Issue) StatusCounts {
	counts := StatusCounts{Total: len(issues)}
	for _, issue := range issues {
		switch issue.Status {
		case models.Pending:
			counts.Pending++
		case models.InProgress:
			counts.InProgress++
		case models.Resolved:
			counts.Resolved++
		}
	}
	return counts
}

type CategoryCount struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Categories returns the distinct categories in order of first appearance.
func Categories(issues []models.Issue) []string {
	out := []string{}
	for _, issue := range issues {
		if !slices.Contains(out, issue.Category) {
			out = append(out, issue.Category)
		}
	}
	return out
}

// CountByCategory counts issues per category, with each share of the total
// rounded to one decimal place.
func CountByCategory(issues []models.Issue) []CategoryCount {
	out := []CategoryCount{}
	for _, name := range Categories(issues) {
		n := 0
		for _, issue := range issues {
			if issue.Category == name {
				n++
			}
		}
		out = append(out, CategoryCount{Name: name, Count: n, Percent: percent(n, len(issues))})
	}
	return out
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// Recent returns up to n issues, newest first.
func Recent(issues []models.Issue, n int) []models.Issue {
	sorted := slices.Clone(issues)
	slices.SortStableFunc(sorted, func(a, b models.Issue) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// GroupByStatus buckets issues by status, each bucket in input order.
func GroupByStatus(issues []models.Issue) map[models.IssueStatus][]models.Issue {
	out := map[models.IssueStatus][]models.Issue{}
	for _, s := range models.Statuses {
		out[s] = []models.Issue{}
	}
	for _, issue := range issues {
		out[issue.Status] = append(out[issue.Status], issue)
	}
	return out
}
