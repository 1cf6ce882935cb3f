package middlewares

import (
	"net/http"

	"civicsync/apperr"

	"github.com/gin-gonic/gin"
)

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuthentication, apperr.KindAuthenticationRequired:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes the failure envelope for a classified error.
// Authentication failures carry a login redirect back to the requested path,
// permission failures a redirect to /unauthorized.
func AbortWithError(c *gin.Context, err error) {
	kind, _ := apperr.KindOf(err)
	body := gin.H{"ok": false, "error": apperr.MessageOf(err, "Something went wrong")}
	switch kind {
	case apperr.KindAuthentication, apperr.KindAuthenticationRequired:
		body["redirect"] = LoginRedirect(c.Request.URL.Path)
	case apperr.KindForbidden:
		body["redirect"] = "/unauthorized"
	}
	c.AbortWithStatusJSON(StatusFor(kind), body)
}
