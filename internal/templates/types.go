// Package templates manages reusable prompt templates: a persisted catalog
// with categories, ratings, usage tracking, and {name} variable rendering.
package templates

import (
	"fmt"
	"regexp"
	"time"

	apperrors "digital.vasic.promptforge/internal/errors"
)

// Category classifies a template by task.
type Category string

const (
	CategorySummarization     Category = "summarization"
	CategoryTranslation       Category = "translation"
	CategoryQuestionAnswering Category = "question_answering"
	CategoryTextGeneration    Category = "text_generation"
	CategoryCodeGeneration    Category = "code_generation"
	CategoryAnalysis          Category = "analysis"
	CategoryClassification    Category = "classification"
	CategoryExtraction        Category = "extraction"
	CategoryCreativeWriting   Category = "creative_writing"
	CategoryConversation      Category = "conversation"
	CategoryCustom            Category = "custom"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{
		CategorySummarization,
		CategoryTranslation,
		CategoryQuestionAnswering,
		CategoryTextGeneration,
		CategoryCodeGeneration,
		CategoryAnalysis,
		CategoryClassification,
		CategoryExtraction,
		CategoryCreativeWriting,
		CategoryConversation,
		CategoryCustom,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Template is the persisted template row.
type Template struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    Category               `json:"category"`
	Template    string                 `json:"template"`
	Variables   []string               `json:"variables"`
	Tags        []string               `json:"tags"`
	Version     string                 `json:"version"`
	Author      string                 `json:"author"`
	IsPublic    bool                   `json:"is_public"`
	UsageCount  int                    `json:"usage_count"`
	Rating      float64                `json:"rating"`
	RatingCount int                    `json:"rating_count"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// CreateRequest is a template creation payload.
type CreateRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description" binding:"required"`
	Category    Category               `json:"category" binding:"required"`
	Template    string                 `json:"template" binding:"required"`
	Variables   []string               `json:"variables,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Author      string                 `json:"author,omitempty"`
	IsPublic    *bool                  `json:"is_public,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateRequest is a partial template update. Nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	Category    *Category              `json:"category,omitempty"`
	Template    *string                `json:"template,omitempty"`
	Variables   []string               `json:"variables,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	IsPublic    *bool                  `json:"is_public,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SearchRequest filters and pages the catalog.
type SearchRequest struct {
	Query     string   `json:"query,omitempty" form:"query"`
	Category  Category `json:"category,omitempty" form:"category"`
	Tags      []string `json:"tags,omitempty" form:"tags"`
	Author    string   `json:"author,omitempty" form:"author"`
	IsPublic  *bool    `json:"is_public,omitempty" form:"is_public"`
	MinRating float64  `json:"min_rating,omitempty" form:"min_rating"`
	SortBy    string   `json:"sort_by,omitempty" form:"sort_by"`
	SortOrder string   `json:"sort_order,omitempty" form:"sort_order"`
	Limit     int      `json:"limit,omitempty" form:"limit"`
	Offset    int      `json:"offset,omitempty" form:"offset"`
}

// sortColumns whitelists sortable fields.
var sortColumns = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"name":        true,
	"rating":      true,
	"usage_count": true,
}

// Normalize applies defaults and rejects unknown sort fields.
func (r *SearchRequest) Normalize() error {
	if r.SortBy == "" {
		r.SortBy = "created_at"
	}
	if !sortColumns[r.SortBy] {
		return apperrors.NewValidation("unknown sort field", "sort_by")
	}
	if r.SortOrder == "" {
		r.SortOrder = "desc"
	}
	if r.SortOrder != "asc" && r.SortOrder != "desc" {
		return apperrors.NewValidation("sort_order must be asc or desc", "sort_order")
	}
	if r.Limit <= 0 {
		r.Limit = 20
	}
	if r.Limit > 100 {
		r.Limit = 100
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ExtractVariables lists the distinct {name} placeholders in order of first
// appearance.
func ExtractVariables(body string) []string {
	seen := map[string]bool{}
	variables := []string{}
	for _, match := range placeholderRe.FindAllStringSubmatch(body, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			variables = append(variables, name)
		}
	}
	return variables
}

// Render substitutes {name} placeholders. Any placeholder without a value is
// a validation error naming the missing variable.
func Render(body string, variables map[string]interface{}) (string, error) {
	var missing string
	rendered := placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := variables[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return fmt.Sprint(value)
	})
	if missing != "" {
		return "", apperrors.NewValidation("missing template variable: "+missing, "variables")
	}
	return rendered, nil
}
