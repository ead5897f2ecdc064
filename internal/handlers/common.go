// Package handlers wires the HTTP surface: optimization jobs and analysis,
// security scanning, templates, LLM access, analytics, and health.
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "digital.vasic.promptforge/internal/errors"
	"digital.vasic.promptforge/internal/middleware"
)

// validationFromBind converts a gin binding failure into a domain validation
// error, naming the first offending field when the validator reports one.
func validationFromBind(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return apperrors.NewValidation(
			"field '"+first.Field()+"' failed validation on '"+first.Tag()+"'",
			first.Field(),
		)
	}
	return apperrors.NewValidation("invalid request body: "+err.Error(), "")
}

// renderBindError maps gin binding failures into the validation envelope.
func renderBindError(c *gin.Context, err error) {
	middleware.RenderError(c, validationFromBind(err))
}

// intQuery parses an integer query parameter with a default.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
