// Package analytics aggregates catalog and optimization activity into
// dashboard and per-period statistics.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	apperrors "digital.vasic.promptforge/internal/errors"
)

// Service reads aggregate statistics straight from PostgreSQL.
type Service struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewService creates the analytics service.
func NewService(pool *pgxpool.Pool, log *logrus.Logger) *Service {
	return &Service{pool: pool, log: log}
}

// TemplateSummary is a compact template row for rankings.
type TemplateSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	UsageCount int     `json:"usage_count"`
	Rating     float64 `json:"rating"`
}

// RecentJob is a compact job row for the dashboard.
type RecentJob struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	CostReduction *float64   `json:"cost_reduction_percent,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Dashboard is the combined overview payload.
type Dashboard struct {
	Templates struct {
		Total            int               `json:"total"`
		Public           int               `json:"public"`
		Private          int               `json:"private"`
		MostPopular      []TemplateSummary `json:"most_popular"`
		CategoryCounts   map[string]int    `json:"category_counts"`
	} `json:"templates"`
	Optimization struct {
		Total          int         `json:"total"`
		Completed      int         `json:"completed"`
		SuccessRate    float64     `json:"success_rate_percent"`
		AvgCostSavings float64     `json:"avg_cost_savings_percent"`
		RecentJobs     []RecentJob `json:"recent_jobs"`
	} `json:"optimization"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CategoryStats describes one category's slice of the catalog.
type CategoryStats struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	AvgRating  float64 `json:"avg_rating"`
	TotalUsage int     `json:"total_usage"`
}

// TemplateStats is the per-period template report.
type TemplateStats struct {
	PeriodDays      int               `json:"period_days"`
	CreatedInPeriod int               `json:"created_in_period"`
	MostUsed        []TemplateSummary `json:"most_used"`
	TopRated        []TemplateSummary `json:"top_rated"`
	Categories      []CategoryStats   `json:"categories"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// OptimizationStats is the per-period job report.
type OptimizationStats struct {
	PeriodDays         int            `json:"period_days"`
	Total              int            `json:"total"`
	StatusDistribution map[string]int `json:"status_distribution"`
	AvgCostSavings     float64        `json:"avg_cost_savings_percent"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// ValidateDays bounds the period parameter.
func ValidateDays(days int) error {
	if days < 1 || days > 365 {
		return apperrors.NewValidation("days must be between 1 and 365", "days")
	}
	return nil
}

// Dashboard assembles the combined overview.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{GeneratedAt: time.Now().UTC()}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_public),
			COUNT(*) FILTER (WHERE NOT is_public)
		FROM prompt_templates
	`).Scan(&d.Templates.Total, &d.Templates.Public, &d.Templates.Private)
	if err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}

	d.Templates.MostPopular, err = s.templateRanking(ctx, `
		SELECT id, name, category, usage_count, rating
		FROM prompt_templates
		WHERE usage_count > 0
		ORDER BY usage_count DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, err
	}

	d.Templates.CategoryCounts = map[string]int{}
	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*) FROM prompt_templates GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		d.Templates.CategoryCounts[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avgSavings *float64
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			AVG((cost_original - cost_optimized) / NULLIF(cost_original, 0))
				FILTER (WHERE status = 'completed' AND cost_original IS NOT NULL AND cost_optimized IS NOT NULL)
		FROM optimization_jobs
	`).Scan(&d.Optimization.Total, &d.Optimization.Completed, &avgSavings)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate jobs: %w", err)
	}
	if d.Optimization.Total > 0 {
		d.Optimization.SuccessRate = roundPercent(float64(d.Optimization.Completed) / float64(d.Optimization.Total) * 100)
	}
	if avgSavings != nil {
		d.Optimization.AvgCostSavings = roundPercent(*avgSavings * 100)
	}

	d.Optimization.RecentJobs, err = s.recentJobs(ctx, 5)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// TemplateStats reports catalog activity for the trailing period.
func (s *Service) TemplateStats(ctx context.Context, days int) (*TemplateStats, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	stats := &TemplateStats{PeriodDays: days, GeneratedAt: time.Now().UTC()}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM prompt_templates WHERE created_at >= $1
	`, cutoff).Scan(&stats.CreatedInPeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to count new templates: %w", err)
	}

	stats.MostUsed, err = s.templateRanking(ctx, `
		SELECT id, name, category, usage_count, rating
		FROM prompt_templates
		WHERE usage_count > 0
		ORDER BY usage_count DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}

	stats.TopRated, err = s.templateRanking(ctx, `
		SELECT id, name, category, usage_count, rating
		FROM prompt_templates
		WHERE rating_count > 0
		ORDER BY rating DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*), COALESCE(AVG(rating) FILTER (WHERE rating_count > 0), 0), COALESCE(SUM(usage_count), 0)
		FROM prompt_templates
		GROUP BY category
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer rows.Close()

	stats.Categories = []CategoryStats{}
	for rows.Next() {
		var c CategoryStats
		if err := rows.Scan(&c.Category, &c.Count, &c.AvgRating, &c.TotalUsage); err != nil {
			return nil, fmt.Errorf("failed to scan category stats: %w", err)
		}
		c.AvgRating = math.Round(c.AvgRating*100) / 100
		stats.Categories = append(stats.Categories, c)
	}
	return stats, rows.Err()
}

// OptimizationStats reports job activity for the trailing period.
func (s *Service) OptimizationStats(ctx context.Context, days int) (*OptimizationStats, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	stats := &OptimizationStats{
		PeriodDays:         days,
		StatusDistribution: map[string]int{},
		GeneratedAt:        time.Now().UTC(),
	}

	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM optimization_jobs
		WHERE created_at >= $1
		GROUP BY status
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate job statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.StatusDistribution[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avgSavings *float64
	err = s.pool.QueryRow(ctx, `
		SELECT AVG((cost_original - cost_optimized) / NULLIF(cost_original, 0))
		FROM optimization_jobs
		WHERE status = 'completed' AND created_at >= $1
			AND cost_original IS NOT NULL AND cost_optimized IS NOT NULL
	`, cutoff).Scan(&avgSavings)
	if err != nil {
		return nil, fmt.Errorf("failed to average cost savings: %w", err)
	}
	if avgSavings != nil {
		stats.AvgCostSavings = roundPercent(*avgSavings * 100)
	}
	return stats, nil
}

func (s *Service) templateRanking(ctx context.Context, query string) ([]TemplateSummary, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to rank templates: %w", err)
	}
	defer rows.Close()

	ranking := []TemplateSummary{}
	for rows.Next() {
		var t TemplateSummary
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.UsageCount, &t.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan template ranking: %w", err)
		}
		ranking = append(ranking, t)
	}
	return ranking, rows.Err()
}

func (s *Service) recentJobs(ctx context.Context, limit int) ([]RecentJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, cost_original, cost_optimized, created_at, completed_at
		FROM optimization_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	defer rows.Close()

	jobs := []RecentJob{}
	for rows.Next() {
		var j RecentJob
		var costOriginal, costOptimized *float64
		if err := rows.Scan(&j.ID, &j.Status, &costOriginal, &costOptimized, &j.CreatedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent job: %w", err)
		}
		if costOriginal != nil && costOptimized != nil && *costOriginal > 0 {
			reduction := roundPercent((*costOriginal - *costOptimized) / *costOriginal * 100)
			j.CostReduction = &reduction
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}
