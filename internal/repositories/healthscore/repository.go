// Package healthscore reads the per-entity, per-cycle dimension scores
// produced by the external scoring component. Sage never writes these rows
// beyond ingesting what the scorer publishes.
package healthscore

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const table = "health_scores"

var columns = []string{
	"id", "tenant_id", "entity_id", "entity_kind", "cycle_id",
	"dimension", "score", "scored_at",
}

// Repository handles health score rows
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new health score repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Ingest stores one score row from the scoring component.
func (r *Repository) Ingest(ctx context.Context, score *models.HealthScore) error {
	ctx, span := tracing.StartSpan(ctx, "healthscore.Repository.Ingest")
	defer span.End()

	if score.ID == "" {
		score.ID = uuid.New().String()
	}
	if score.ScoredAt.IsZero() {
		score.ScoredAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		score.ID, score.TenantID, score.EntityID, score.EntityKind,
		score.CycleID, score.Dimension, score.Score, score.ScoredAt,
	)
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to ingest health score")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to ingest health score")
	}

	return nil
}

// Latest retrieves the newest score per dimension for one entity.
func (r *Repository) Latest(ctx context.Context, tenantID, entityID string) ([]models.HealthScore, error) {
	ctx, span := tracing.StartSpan(ctx, "healthscore.Repository.Latest")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("DISTINCT ON (dimension) " + columnsList())
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_id", entityID),
	)
	sb.OrderBy("dimension", "scored_at DESC")

	query, args := sb.Build()
	var scores []models.HealthScore
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get latest health scores")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get latest health scores")
	}

	return scores, nil
}

// History retrieves every score row for one entity since a cutoff, oldest
// first, for trajectory fitting.
func (r *Repository) History(ctx context.Context, tenantID, entityID string, since time.Time) ([]models.HealthScore, error) {
	ctx, span := tracing.StartSpan(ctx, "healthscore.Repository.History")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_id", entityID),
		sb.GreaterEqualThan("scored_at", since),
	)
	sb.OrderBy("scored_at ASC")

	query, args := sb.Build()
	var scores []models.HealthScore
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get health score history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get health score history")
	}

	return scores, nil
}

// HistoryByTenant loads every entity's score history since a cutoff in one
// query, grouped by entity. Batch profile synthesis uses this to avoid one
// query per entity.
func (r *Repository) HistoryByTenant(ctx context.Context, tenantID string, since time.Time) (map[string][]models.HealthScore, error) {
	ctx, span := tracing.StartSpan(ctx, "healthscore.Repository.HistoryByTenant")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.GreaterEqualThan("scored_at", since),
	)
	sb.OrderBy("entity_id", "scored_at ASC")

	query, args := sb.Build()
	var scores []models.HealthScore
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get tenant health score history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tenant health score history")
	}

	grouped := make(map[string][]models.HealthScore)
	for _, s := range scores {
		grouped[s.EntityID] = append(grouped[s.EntityID], s)
	}
	return grouped, nil
}

func columnsList() string {
	return strings.Join(columns, ", ")
}
