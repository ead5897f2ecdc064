package templates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "digital.vasic.promptforge/internal/errors"
	"digital.vasic.promptforge/internal/security"
)

// BuiltinAuthor marks seeded catalog rows.
const BuiltinAuthor = "PromptForge"

// Store persists templates.
type Store interface {
	Create(ctx context.Context, t *Template) error
	Get(ctx context.Context, id string) (*Template, error)
	GetByNameAndAuthor(ctx context.Context, name, author string) (*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, req *SearchRequest) ([]*Template, error)
	IncrementUsage(ctx context.Context, id string) error
}

// Service owns the template catalog.
type Service struct {
	store    Store
	detector *security.Detector
	strict   bool
	log      *logrus.Logger
}

// NewService wires the catalog service. Template bodies are screened with
// the injection detector on create and update.
func NewService(store Store, detector *security.Detector, strict bool, log *logrus.Logger) *Service {
	return &Service{store: store, detector: detector, strict: strict, log: log}
}

// EnsureBuiltins inserts any missing builtin template. Existing rows keep
// their usage counters and ratings.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	for _, builtin := range Builtin() {
		existing, err := s.store.GetByNameAndAuthor(ctx, builtin.Name, BuiltinAuthor)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		now := time.Now().UTC()
		builtin.ID = uuid.NewString()
		builtin.Author = BuiltinAuthor
		builtin.Version = "1.0.0"
		builtin.IsPublic = true
		builtin.CreatedAt = now
		builtin.UpdatedAt = now

		t := builtin
		if err := s.store.Create(ctx, &t); err != nil {
			return err
		}
		s.log.WithField("name", t.Name).Debug("Seeded builtin template")
	}
	return nil
}

// Create validates and persists a new template.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Template, error) {
	if !req.Category.Valid() {
		return nil, apperrors.NewValidation("unknown template category", "category")
	}
	if err := s.detector.Validate(req.Template, s.strict); err != nil {
		return nil, err
	}

	variables := req.Variables
	if len(variables) == 0 {
		variables = ExtractVariables(req.Template)
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	now := time.Now().UTC()
	t := &Template{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Template:    req.Template,
		Variables:   variables,
		Tags:        req.Tags,
		Version:     "1.0.0",
		Author:      req.Author,
		IsPublic:    isPublic,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"template_id": t.ID,
		"name":        t.Name,
	}).Info("Template created")
	return t, nil
}

// Get returns one template by id.
func (s *Service) Get(ctx context.Context, id string) (*Template, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperrors.NewTemplateNotFound(id)
	}
	return t, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest) (*Template, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Template != nil {
		if err := s.detector.Validate(*req.Template, s.strict); err != nil {
			return nil, err
		}
		t.Template = *req.Template
		if req.Variables == nil {
			t.Variables = ExtractVariables(*req.Template)
		}
	}
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return nil, apperrors.NewValidation("unknown template category", "category")
		}
		t.Category = *req.Category
	}
	if req.Variables != nil {
		t.Variables = req.Variables
	}
	if req.Tags != nil {
		t.Tags = req.Tags
	}
	if req.IsPublic != nil {
		t.IsPublic = *req.IsPublic
	}
	if req.Metadata != nil {
		t.Metadata = req.Metadata
	}
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}

	s.log.WithField("template_id", id).Info("Template updated")
	return t, nil
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NewTemplateNotFound(id)
	}
	s.log.WithField("template_id", id).Info("Template deleted")
	return nil
}

// Search filters the catalog.
func (s *Service) Search(ctx context.Context, req *SearchRequest) ([]*Template, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	return s.store.Search(ctx, req)
}

// Render substitutes variables into a template body and counts the use.
func (s *Service) Render(ctx context.Context, id string, variables map[string]interface{}) (string, *Template, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}

	rendered, err := Render(t.Template, variables)
	if err != nil {
		return "", nil, err
	}

	if err := s.store.IncrementUsage(ctx, id); err != nil {
		s.log.WithError(err).WithField("template_id", id).Warn("Failed to increment usage count")
	} else {
		t.UsageCount++
	}

	s.log.WithFields(logrus.Fields{
		"template_id":     id,
		"variables_count": len(variables),
	}).Info("Template rendered")
	return rendered, t, nil
}

// Rate records a rating between 1 and 5 and returns the updated running
// average.
func (s *Service) Rate(ctx context.Context, id string, rating float64) (*Template, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidation("rating must be between 1.0 and 5.0", "rating")
	}

	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	total := t.Rating*float64(t.RatingCount) + rating
	t.RatingCount++
	t.Rating = total / float64(t.RatingCount)
	t.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"template_id": id,
		"rating":      rating,
	}).Info("Template rated")
	return t, nil
}
