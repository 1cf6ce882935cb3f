package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicsync/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// roundTrip waits out the configured latency, standing in for the network
// hop of a remote backend. It returns early when ctx is done.
func roundTrip(ctx context.Context, latency time.Duration) error {
	if latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resultOf is the metrics label for an operation outcome.
func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := apperr.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}

// ValidationMessage turns validator errors into a short message naming the
// first offending field.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return field + " is invalid"
}
