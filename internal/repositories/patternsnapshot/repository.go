// Package patternsnapshot persists per-cycle pattern detection snapshots
// from the external pattern detector.
package patternsnapshot

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const table = "pattern_snapshots"

var columns = []string{
	"id", "tenant_id", "pattern_key", "cycle_id",
	"entity_count", "evidence_strength", "present",
	"observed_at", "created_at",
}

// Repository handles pattern snapshot persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new pattern snapshot repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Record writes one snapshot for a (pattern key, cycle). A repeated write
// for the same pair is a detector replay and is ignored.
func (r *Repository) Record(ctx context.Context, snapshot *models.PatternSnapshot) error {
	ctx, span := tracing.StartSpan(ctx, "patternsnapshot.Repository.Record")
	defer span.End()

	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		snapshot.ID, snapshot.TenantID, snapshot.PatternKey, snapshot.CycleID,
		snapshot.EntityCount, snapshot.EvidenceStrength, snapshot.Present,
		snapshot.ObservedAt, snapshot.CreatedAt,
	)
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"pattern_key": snapshot.PatternKey,
			"cycle_id":    snapshot.CycleID,
		}).Error("Failed to record pattern snapshot")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record pattern snapshot")
	}

	return nil
}

// History retrieves the most recent snapshots for one pattern key, newest
// first.
func (r *Repository) History(ctx context.Context, tenantID, patternKey string, limit int) ([]models.PatternSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "patternsnapshot.Repository.History")
	defer span.End()

	if limit < 1 || limit > 50 {
		limit = 6
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("pattern_key", patternKey),
	)
	sb.OrderBy("observed_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var snapshots []models.PatternSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get pattern history")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pattern history")
	}

	return snapshots, nil
}

// Histories retrieves recent snapshots for every pattern key of a tenant,
// grouped by key. Batch profile synthesis loads this once per portfolio.
func (r *Repository) Histories(ctx context.Context, tenantID string, perKeyLimit int) (map[string][]models.PatternSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "patternsnapshot.Repository.Histories")
	defer span.End()

	if perKeyLimit < 1 || perKeyLimit > 50 {
		perKeyLimit = 6
	}

	// Window over keys rather than one query per key.
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"id", "tenant_id", "pattern_key", "cycle_id",
		"entity_count", "evidence_strength", "present",
		"observed_at", "created_at",
	)
	sb.From(sb.BuilderAs(rankedSnapshots(tenantID), "ranked"))
	sb.Where(sb.LessEqualThan("rank", perKeyLimit))
	sb.OrderBy("pattern_key", "observed_at DESC")

	query, args := sb.Build()
	var snapshots []models.PatternSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get pattern histories")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pattern histories")
	}

	grouped := make(map[string][]models.PatternSnapshot)
	for _, s := range snapshots {
		grouped[s.PatternKey] = append(grouped[s.PatternKey], s)
	}
	return grouped, nil
}

func rankedSnapshots(tenantID string) *sqlbuilder.SelectBuilder {
	inner := sqlbuilder.PostgreSQL.NewSelectBuilder()
	inner.Select(
		"id", "tenant_id", "pattern_key", "cycle_id",
		"entity_count", "evidence_strength", "present",
		"observed_at", "created_at",
		"ROW_NUMBER() OVER (PARTITION BY pattern_key ORDER BY observed_at DESC) AS rank",
	)
	inner.From(table)
	inner.Where(inner.Equal("tenant_id", tenantID))
	return inner
}
