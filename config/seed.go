package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicsync/models"
	"civicsync/repository"
)

// DemoPassword is shared by every demo account.
const DemoPassword = "password123"

func strPtr(s string) *string { return &s }

func DemoUsers(now time.Time) []models.User {
	return []models.User{
		{ID: "1", Name: "Admin User", Email: "admin@example.com", Role: models.RoleAdmin, CreatedAt: now, UpdatedAt: now},
		{ID: "2", Name: "Citizen User", Email: "citizen@example.com", Role: models.RoleCitizen, CreatedAt: now, UpdatedAt: now},
		{ID: "3", Name: "Jane Smith", Email: "jane@example.com", Role: models.RoleCitizen, CreatedAt: now, UpdatedAt: now},
	}
}

// DemoIssues are dated relative to now.
func DemoIssues(now time.Time) []models.Issue {
	ago := func(hours int) time.Time { return now.Add(-time.Duration(hours) * time.Hour) }
	return []models.Issue{
		{
			ID:            "1",
			Title:         "Pothole on Main Street",
			Description:   "Large pothole causing traffic delays and potential vehicle damage",
			ImageURL:      strPtr("https://images.unsplash.com/photo-1592227810269-08454cb127a0?q=80&w=2159&auto=format&fit=crop"),
			Location:      models.Location{Lat: 40.7128, Lng: -74.0060, Address: "123 Main St, New York, NY"},
			Status:        models.Pending,
			CreatedByID:   "2",
			CreatedByName: "Citizen User",
			CreatedAt:     ago(24),
			UpdatedAt:     ago(24),
			Upvotes:       []string{"1", "3", "4"},
			Comments: []models.Comment{
				{ID: "1", Text: "This is getting worse by the day!", UserID: "1", UserName: "Admin User", CreatedAt: ago(12)},
			},
			Category: "Roads",
		},
		{
			ID:             "2",
			Title:          "Broken Street Light",
			Description:    "Street light not working, creating safety concerns at night",
			ImageURL:       strPtr("https://images.unsplash.com/photo-1589574770951-a5a58404f344?q=80&w=2070&auto=format&fit=crop"),
			Location:       models.Location{Lat: 40.7142, Lng: -74.0119, Address: "456 Park Ave, New York, NY"},
			Status:         models.InProgress,
			CreatedByID:    "2",
			CreatedByName:  "Citizen User",
			CreatedAt:      ago(72),
			UpdatedAt:      ago(24),
			AssignedToID:   strPtr("1"),
			AssignedToName: strPtr("Admin User"),
			Upvotes:        []string{"1", "3"},
			Comments:       []models.Comment{},
			Category:       "Lighting",
		},
		{
			ID:             "3",
			Title:          "Overflowing Garbage Bin",
			Description:    "Garbage bin has not been collected for days causing sanitation issues",
			ImageURL:       strPtr("https://images.unsplash.com/photo-1530587191325-3db32d826c18?q=80&w=1974&auto=format&fit=crop"),
			Location:       models.Location{Lat: 40.7112, Lng: -74.0024, Address: "789 Broadway, New York, NY"},
			Status:         models.Resolved,
			CreatedByID:    "3",
			CreatedByName:  "Jane Smith",
			CreatedAt:      ago(168),
			UpdatedAt:      ago(24),
			AssignedToID:   strPtr("1"),
			AssignedToName: strPtr("Admin User"),
			Upvotes:        []string{"2", "4"},
			Comments: []models.Comment{
				{ID: "2", Text: "This has been resolved", UserID: "1", UserName: "Admin User", CreatedAt: ago(24)},
			},
			Category: "Sanitation",
		},
	}
}

// SeedDemo loads the demo accounts and issues. Records that already exist
// are left alone, so it is safe to run on every start.
func SeedDemo(ctx context.Context, issues repository.IssueRepository, users repository.UserRegistry, now time.Time) error {
	for _, u := range DemoUsers(now) {
		u.Password = DemoPassword
		if err := u.HashPassword(); err != nil {
			return fmt.Errorf("hash demo password: %w", err)
		}
		if err := users.Insert(ctx, u); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	for _, issue := range DemoIssues(now) {
		if err := issues.Insert(ctx, issue); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("seed issue %s: %w", issue.ID, err)
		}
	}
	return nil
}
