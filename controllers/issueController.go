package controllers

import (
	"context"
	"net/http"
	"strings"

	"civicsync/apperr"
	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/repository"
	"civicsync/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const recentIssues = 5

type IssueController struct {
	store *services.IssueStore
	users repository.UserRegistry
	log   *zap.Logger
}

func NewIssueController(store *services.IssueStore, users repository.UserRegistry, log *zap.Logger) *IssueController {
	return &IssueController{store: store, users: users, log: log}
}

// storeFor binds the issue store to the identity carried by the request's
// token. Requests without claims get an anonymous session.
func (ic *IssueController) storeFor(c *gin.Context) (*services.IssueStore, string) {
	session := services.NewSessionStore(ic.users)
	var userID string
	if claims, ok := middlewares.ClaimsFrom(c); ok {
		session.Restore(claims.User())
		userID = claims.UserID
	}
	return ic.store.WithIdentity(session), userID
}

// issueView is an issue as rendered for a particular viewer.
type issueView struct {
	models.Issue
	Votes              int                  `json:"votes"`
	UserHasVoted       bool                 `json:"userHasVoted"`
	AllowedTransitions []models.IssueStatus `json:"allowedTransitions"`
}

func (ic *IssueController) view(issue models.Issue, viewerID string) issueView {
	return issueView{
		Issue:              issue,
		Votes:              len(issue.Upvotes),
		UserHasVoted:       issue.HasUpvote(viewerID),
		AllowedTransitions: services.AllowedTransitions(issue.Status),
	}
}

func (ic *IssueController) views(issues []models.Issue, viewerID string) []issueView {
	out := make([]issueView, 0, len(issues))
	for _, issue := range issues {
		out = append(out, ic.view(issue, viewerID))
	}
	return out
}

// ListIssues lists every issue, optionally narrowed by status, category and
// a free-text search.
func (ic *IssueController) ListIssues(c *gin.Context) {
	filter := services.Filter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	if filter.Status != "" && filter.Status != services.FilterAll {
		if _, ok := models.ParseStatus(filter.Status); !ok {
			fail(c, http.StatusBadRequest, "Invalid status")
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issues, err := store.ListAll(ctx)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	matched := filter.Apply(issues)
	respond(c, http.StatusOK, gin.H{
		"issues": ic.views(matched, viewerID),
		"total":  len(matched),
	})
}

// ListMine returns the caller's own reports, also bucketed by status.
func (ic *IssueController) ListMine(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issues, err := store.ListMine(ctx)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}

	byStatus := map[models.IssueStatus][]issueView{}
	for status, group := range services.GroupByStatus(issues) {
		byStatus[status] = ic.views(group, viewerID)
	}
	respond(c, http.StatusOK, gin.H{
		"issues":   ic.views(issues, viewerID),
		"byStatus": byStatus,
		"counts":   services.CountByStatus(issues),
	})
}

// GetStats returns the dashboard summary.
func (ic *IssueController) GetStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issues, err := store.ListAll(ctx)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"counts":     services.CountByStatus(issues),
		"byCategory": services.CountByCategory(issues),
		"recent":     ic.views(services.Recent(issues, recentIssues), viewerID),
	})
}

// GetCategories returns the suggested categories plus any others in use.
func (ic *IssueController) GetCategories(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, _ := ic.storeFor(c)
	issues, err := store.ListAll(ctx)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"suggested": models.SuggestedCategories,
		"used":      services.Categories(issues),
	})
}

func (ic *IssueController) GetIssue(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issue, err := store.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusOK, ic.view(issue, viewerID))
}

type locationInput struct {
	Lat     float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng     float64 `json:"lng" binding:"gte=-180,lte=180"`
	Address string  `json:"address" binding:"max=200"`
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	var input struct {
		Title       string         `json:"title" binding:"required,max=200"`
		Description string         `json:"description" binding:"max=1000"`
		Category    string         `json:"category" binding:"max=50"`
		ImageURL    *string        `json:"imageUrl,omitempty" binding:"omitempty,url"`
		Location    *locationInput `json:"location,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	draft := services.IssueDraft{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		ImageURL:    input.ImageURL,
	}
	if input.Location != nil {
		draft.Location = &models.Location{
			Lat:     input.Location.Lat,
			Lng:     input.Location.Lng,
			Address: strings.TrimSpace(input.Location.Address),
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issue, err := store.Create(ctx, draft)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusCreated, ic.view(issue, viewerID))
}

// UpdateStatus is admin only; see routes.
func (ic *IssueController) UpdateStatus(c *gin.Context) {
	var input struct {
		Status string `json:"status" binding:"required,oneof=pending inprogress resolved"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issue, err := store.SetStatus(ctx, c.Param("id"), models.IssueStatus(input.Status))
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusOK, ic.view(issue, viewerID))
}

// AssignIssue records the assignee. When no name is given it is looked up
// from the user registry.
func (ic *IssueController) AssignIssue(c *gin.Context) {
	var input struct {
		AssigneeID   string `json:"assigneeId" binding:"required"`
		AssigneeName string `json:"assigneeName" binding:"max=50"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	name := strings.TrimSpace(input.AssigneeName)
	if name == "" {
		assignee, err := ic.users.FindByID(ctx, input.AssigneeID)
		if err != nil {
			respondError(c, ic.log, apperr.Validation("Unknown assignee %s", input.AssigneeID))
			return
		}
		name = assignee.Name
	}

	store, viewerID := ic.storeFor(c)
	issue, err := store.Assign(ctx, c.Param("id"), input.AssigneeID, name)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusOK, ic.view(issue, viewerID))
}

func (ic *IssueController) AddComment(c *gin.Context) {
	var input struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issue, err := store.AddComment(ctx, c.Param("id"), input.Text)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusCreated, ic.view(issue, viewerID))
}

// ToggleUpvote toggles the caller's vote (vote if not voted, unvote if
// already voted).
func (ic *IssueController) ToggleUpvote(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	store, viewerID := ic.storeFor(c)
	issue, err := store.ToggleUpvote(ctx, c.Param("id"), viewerID)
	if err != nil {
		respondError(c, ic.log, err)
		return
	}
	respond(c, http.StatusOK, ic.view(issue, viewerID))
}
