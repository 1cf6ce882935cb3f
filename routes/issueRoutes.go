package routes

import (
	"civicsync/controllers"
	"civicsync/middlewares"
	"civicsync/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes. limiter may be nil when no Redis is
// configured.
func IssueRoutes(r *gin.Engine, ic *controllers.IssueController, requireAuth, limiter gin.HandlerFunc) {
	issues := r.Group("/api/issues", requireAuth)
	{
		issues.GET("", ic.ListIssues)
		issues.GET("/mine", ic.ListMine)
		issues.GET("/stats", ic.GetStats)
		issues.GET("/categories", ic.GetCategories)
		issues.GET("/:id", ic.GetIssue)

		create := []gin.HandlerFunc{ic.CreateIssue}
		if limiter != nil {
			create = append([]gin.HandlerFunc{limiter}, create...)
		}
		issues.POST("", create...)

		issues.POST("/:id/comments", ic.AddComment)
		issues.POST("/:id/upvote", ic.ToggleUpvote)

		admin := issues.Group("", middlewares.RequireRole(models.RoleAdmin))
		admin.PATCH("/:id/status", ic.UpdateStatus)
		admin.PATCH("/:id/assign", ic.AssignIssue)
	}
}
