package controllers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"civicsync/apperr"
	"civicsync/middlewares"
	"civicsync/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// UseJSONFieldNames makes binding errors name fields by their json tag.
func UseJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"ok": false, "error": msg})
}

func badRequest(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fail(c, http.StatusBadRequest, services.ValidationMessage(err))
		return
	}
	fail(c, http.StatusBadRequest, "Invalid request body")
}

// respondError maps store errors onto HTTP statuses. Anything unclassified is
// logged and reported as a 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			fail(c, http.StatusGatewayTimeout, "Request timed out")
			return
		}
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Something went wrong")
		return
	}

	if middlewares.StatusFor(kind) == http.StatusInternalServerError {
		log.Error("unmapped error kind", zap.String("kind", string(kind)), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Something went wrong")
		return
	}
	middlewares.AbortWithError(c, err)
}
