package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/templates"
)

// TemplateRepository persists prompt templates. It implements
// templates.Store.
type TemplateRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewTemplateRepository creates the repository.
func NewTemplateRepository(pool *pgxpool.Pool, log *logrus.Logger) *TemplateRepository {
	return &TemplateRepository{pool: pool, log: log}
}

const templateColumns = `id, name, description, category, template, variables, tags,
	version, author, is_public, usage_count, rating, rating_count, metadata,
	created_at, updated_at`

// Create inserts a new template row.
func (r *TemplateRepository) Create(ctx context.Context, t *templates.Template) error {
	query := `
		INSERT INTO prompt_templates (
			id, name, description, category, template, variables, tags,
			version, author, is_public, usage_count, rating, rating_count,
			metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	variablesJSON, tagsJSON, metadataJSON, err := marshalTemplateFields(t)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		t.ID, t.Name, t.Description, t.Category, t.Template, variablesJSON, tagsJSON,
		t.Version, t.Author, t.IsPublic, t.UsageCount, t.Rating, t.RatingCount,
		metadataJSON, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"template_id": t.ID,
		"name":        t.Name,
	}).Debug("Created template")
	return nil
}

// Get returns a template by id, or nil when absent.
func (r *TemplateRepository) Get(ctx context.Context, id string) (*templates.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM prompt_templates WHERE id = $1`

	t, err := r.scanTemplate(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// GetByNameAndAuthor returns a template by its name and author pair, or nil
// when absent.
func (r *TemplateRepository) GetByNameAndAuthor(ctx context.Context, name, author string) (*templates.Template, error) {
	query := `SELECT ` + templateColumns + `
		FROM prompt_templates
		WHERE name = $1 AND author = $2`

	t, err := r.scanTemplate(r.pool.QueryRow(ctx, query, name, author))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template by name: %w", err)
	}
	return t, nil
}

// Update writes back every mutable column.
func (r *TemplateRepository) Update(ctx context.Context, t *templates.Template) error {
	query := `
		UPDATE prompt_templates
		SET name = $2, description = $3, category = $4, template = $5,
			variables = $6, tags = $7, version = $8, author = $9, is_public = $10,
			usage_count = $11, rating = $12, rating_count = $13, metadata = $14,
			updated_at = $15
		WHERE id = $1
	`

	variablesJSON, tagsJSON, metadataJSON, err := marshalTemplateFields(t)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		t.ID, t.Name, t.Description, t.Category, t.Template,
		variablesJSON, tagsJSON, t.Version, t.Author, t.IsPublic,
		t.UsageCount, t.Rating, t.RatingCount, metadataJSON,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return nil
}

// Delete removes a template, reporting whether a row existed.
func (r *TemplateRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete template: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Search filters the catalog with the request's criteria and returns a page
// ordered by the whitelisted sort column.
func (r *TemplateRepository) Search(ctx context.Context, req *templates.SearchRequest) ([]*templates.Template, error) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if req.Query != "" {
		p := arg("%" + req.Query + "%")
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE %s OR description ILIKE %s OR template ILIKE %s)", p, p, p))
	}
	if req.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = %s", arg(req.Category)))
	}
	if len(req.Tags) > 0 {
		tagsJSON, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal search tags: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf("tags @> %s", arg(tagsJSON)))
	}
	if req.Author != "" {
		conditions = append(conditions, fmt.Sprintf("author = %s", arg(req.Author)))
	}
	if req.IsPublic != nil {
		conditions = append(conditions, fmt.Sprintf("is_public = %s", arg(*req.IsPublic)))
	}
	if req.MinRating > 0 {
		conditions = append(conditions, fmt.Sprintf("rating >= %s", arg(req.MinRating)))
	}

	query := `SELECT ` + templateColumns + ` FROM prompt_templates`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	// SortBy and SortOrder are whitelisted by SearchRequest.Normalize.
	query += fmt.Sprintf(" ORDER BY %s %s", req.SortBy, strings.ToUpper(req.SortOrder))
	query += fmt.Sprintf(" LIMIT %s OFFSET %s", arg(req.Limit), arg(req.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search templates: %w", err)
	}
	defer rows.Close()

	results := []*templates.Template{}
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// IncrementUsage bumps the usage counter.
func (r *TemplateRepository) IncrementUsage(ctx context.Context, id string) error {
	query := `
		UPDATE prompt_templates
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment template usage: %w", err)
	}
	return nil
}

func marshalTemplateFields(t *templates.Template) (variables, tags, metadata []byte, err error) {
	if variables, err = json.Marshal(t.Variables); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal template variables: %w", err)
	}
	if tags, err = json.Marshal(t.Tags); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal template tags: %w", err)
	}
	meta := t.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	if metadata, err = json.Marshal(meta); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal template metadata: %w", err)
	}
	return variables, tags, metadata, nil
}

func (r *TemplateRepository) scanTemplate(row rowScanner) (*templates.Template, error) {
	t := &templates.Template{}
	var variablesJSON, tagsJSON, metadataJSON []byte

	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Category, &t.Template, &variablesJSON, &tagsJSON,
		&t.Version, &t.Author, &t.IsPublic, &t.UsageCount, &t.Rating, &t.RatingCount, &metadataJSON,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(variablesJSON) > 0 {
		if err := json.Unmarshal(variablesJSON, &t.Variables); err != nil {
			r.log.WithError(err).Warn("Failed to unmarshal template variables")
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &t.Tags); err != nil {
			r.log.WithError(err).Warn("Failed to unmarshal template tags")
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			r.log.WithError(err).Warn("Failed to unmarshal template metadata")
		}
	}
	return t, nil
}
