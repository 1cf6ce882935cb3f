package models

import (
	"slices"
	"time"
)

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "pending"
	InProgress IssueStatus = "inprogress"
	Resolved   IssueStatus = "resolved"
)

// Statuses lists every status in lifecycle order.
var Statuses = []IssueStatus{Pending, InProgress, Resolved}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (IssueStatus, bool) {
	switch IssueStatus(s) {
	case Pending, InProgress, Resolved:
		return IssueStatus(s), true
	}
	return "", false
}

// DefaultCategory is used when a report is filed without a category.
const DefaultCategory = "Other"

// SuggestedCategories is the category set offered when reporting. Category is
// free text, so issues are not restricted to it.
var SuggestedCategories = []string{
	"Roads",
	"Lighting",
	"Sanitation",
	"Water Supply",
	"Electricity",
	"Public Spaces",
	"Noise",
	DefaultCategory,
}

// Location is where an issue was reported.
type Location struct {
	Lat     float64 `bson:"lat" json:"lat"`
	Lng     float64 `bson:"lng" json:"lng"`
	Address string  `bson:"address" json:"address"`
}

// Comment is append-only; it is never edited once attached to an issue.
type Comment struct {
	ID         string    `bson:"id" json:"id"`
	Text       string    `bson:"text" json:"text"`
	UserID     string    `bson:"userId" json:"userId"`
	UserName   string    `bson:"userName" json:"userName"`
	UserAvatar *string   `bson:"userAvatar,omitempty" json:"userAvatar,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// Issue represents a civic issue reported by a user
type Issue struct {
	ID             string      `bson:"_id" json:"id"`
	Title          string      `bson:"title" json:"title"`
	Description    string      `bson:"description" json:"description"`
	ImageURL       *string     `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Location       Location    `bson:"location" json:"location"`
	Status         IssueStatus `bson:"status" json:"status"`
	CreatedByID    string      `bson:"createdById" json:"createdById"`
	CreatedByName  string      `bson:"createdByName" json:"createdByName"`
	CreatedAt      time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time   `bson:"updatedAt" json:"updatedAt"`
	AssignedToID   *string     `bson:"assignedToId,omitempty" json:"assignedToId,omitempty"`
	AssignedToName *string     `bson:"assignedToName,omitempty" json:"assignedToName,omitempty"`
	Upvotes        []string    `bson:"upvotes" json:"upvotes"`
	Comments       []Comment   `bson:"comments" json:"comments"`
	Category       string      `bson:"category" json:"category"`
	Version        int64       `bson:"version" json:"-"`
}

// Clone returns a deep copy so the caller can mutate it without touching
// a shared snapshot.
func (i Issue) Clone() Issue {
	out := i
	out.ImageURL = clonePtr(i.ImageURL)
	out.AssignedToID = clonePtr(i.AssignedToID)
	out.AssignedToName = clonePtr(i.AssignedToName)
	out.Upvotes = append(make([]string, 0, len(i.Upvotes)), i.Upvotes...)
	out.Comments = make([]Comment, len(i.Comments))
	for n, c := range i.Comments {
		c.UserAvatar = clonePtr(c.UserAvatar)
		out.Comments[n] = c
	}
	return out
}

// HasUpvote reports whether userID has upvoted the issue.
func (i Issue) HasUpvote(userID string) bool {
	return slices.Contains(i.Upvotes, userID)
}

// ToggleUpvote adds userID to the upvote set or removes it if present.
// It reports whether the user has upvoted after the toggle.
func (i *Issue) ToggleUpvote(userID string) bool {
	if idx := slices.Index(i.Upvotes, userID); idx >= 0 {
		i.Upvotes = slices.Delete(i.Upvotes, idx, idx+1)
		return false
	}
	i.Upvotes = append(i.Upvotes, userID)
	return true
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
