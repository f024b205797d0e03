// Package signallifecycle persists signal lifecycle rows. One row per signal
// key per lifecycle generation; cleared rows are retained forever.
package signallifecycle

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const table = "signal_lifecycles"

var columns = []string{
	"id", "tenant_id", "signal_type", "entity_id", "entity_kind",
	"first_detected_at", "last_detected_at",
	"initial_severity", "current_severity", "peak_severity",
	"detection_count", "consecutive_cycles", "last_cycle_id",
	"persistence", "seasonal_active", "escalations",
	"cleared_at", "resolution", "created_at", "updated_at",
}

// Repository handles signal lifecycle persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new signal lifecycle repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetActive retrieves the open lifecycle for a signal key. Returns nil when
// none exists; a missing row is a normal state, not an error.
func (r *Repository) GetActive(ctx context.Context, tenantID string, key models.SignalKey) (*models.SignalLifecycle, error) {
	ctx, span := tracing.StartSpan(ctx, "signallifecycle.Repository.GetActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("signal_type", key.SignalType),
		sb.Equal("entity_id", key.EntityID),
		sb.IsNull("cleared_at"),
	)

	query, args := sb.Build()
	var lifecycle models.SignalLifecycle
	if err := r.db.GetContext(ctx, &lifecycle, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get active lifecycle")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get active lifecycle")
	}

	return &lifecycle, nil
}

// Save upserts a lifecycle row keyed by id.
func (r *Repository) Save(ctx context.Context, lc *models.SignalLifecycle) error {
	ctx, span := tracing.StartSpan(ctx, "signallifecycle.Repository.Save")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		lc.ID, lc.TenantID, lc.SignalType, lc.EntityID, lc.EntityKind,
		lc.FirstDetectedAt, lc.LastDetectedAt,
		lc.InitialSeverity, lc.CurrentSeverity, lc.PeakSeverity,
		lc.DetectionCount, lc.ConsecutiveCycles, lc.LastCycleID,
		lc.Persistence, lc.SeasonalActive, lc.Escalations,
		lc.ClearedAt, lc.Resolution, lc.CreatedAt, lc.UpdatedAt,
	)

	ub := ib.OnConflict("id")
	ub.Set(
		ub.Assign("last_detected_at", database.Excluded("last_detected_at")),
		ub.Assign("current_severity", database.Excluded("current_severity")),
		ub.Assign("peak_severity", database.Excluded("peak_severity")),
		ub.Assign("detection_count", database.Excluded("detection_count")),
		ub.Assign("consecutive_cycles", database.Excluded("consecutive_cycles")),
		ub.Assign("last_cycle_id", database.Excluded("last_cycle_id")),
		ub.Assign("persistence", database.Excluded("persistence")),
		ub.Assign("seasonal_active", database.Excluded("seasonal_active")),
		ub.Assign("escalations", database.Excluded("escalations")),
		ub.Assign("cleared_at", database.Excluded("cleared_at")),
		ub.Assign("resolution", database.Excluded("resolution")),
		ub.Assign("updated_at", time.Now().UTC()),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"id":          lc.ID,
			"signal_type": lc.SignalType,
			"entity_id":   lc.EntityID,
		}).Error("Failed to save lifecycle")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save lifecycle")
	}

	return nil
}

// ListActiveByEntity retrieves all open lifecycles for one entity, most
// severe first.
func (r *Repository) ListActiveByEntity(ctx context.Context, tenantID, entityID string) ([]models.SignalLifecycle, error) {
	ctx, span := tracing.StartSpan(ctx, "signallifecycle.Repository.ListActiveByEntity")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_id", entityID),
		sb.IsNull("cleared_at"),
	)
	sb.OrderBy("current_severity DESC", "first_detected_at ASC")

	query, args := sb.Build()
	var lifecycles []models.SignalLifecycle
	if err := r.db.SelectContext(ctx, &lifecycles, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list active lifecycles")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list active lifecycles")
	}

	return lifecycles, nil
}

// ListByCycle retrieves every lifecycle that was open as of a given cycle,
// for prior-cycle trend comparison.
func (r *Repository) ListByCycle(ctx context.Context, tenantID, entityID, cycleID string) ([]models.SignalLifecycle, error) {
	ctx, span := tracing.StartSpan(ctx, "signallifecycle.Repository.ListByCycle")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_id", entityID),
		sb.Equal("last_cycle_id", cycleID),
	)

	query, args := sb.Build()
	var lifecycles []models.SignalLifecycle
	if err := r.db.SelectContext(ctx, &lifecycles, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list lifecycles by cycle")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list lifecycles by cycle")
	}

	return lifecycles, nil
}

// ListActiveByTenant loads every open lifecycle for a tenant in one query,
// grouped by entity with the most severe first. Batch profile synthesis uses
// this to avoid one query per entity.
func (r *Repository) ListActiveByTenant(ctx context.Context, tenantID string) (map[string][]models.SignalLifecycle, error) {
	ctx, span := tracing.StartSpan(ctx, "signallifecycle.Repository.ListActiveByTenant")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("cleared_at"),
	)
	sb.OrderBy("entity_id", "current_severity DESC", "first_detected_at ASC")

	query, args := sb.Build()
	var lifecycles []models.SignalLifecycle
	if err := r.db.SelectContext(ctx, &lifecycles, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tenant active lifecycles")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tenant active lifecycles")
	}

	grouped := make(map[string][]models.SignalLifecycle)
	for _, lc := range lifecycles {
		grouped[lc.EntityID] = append(grouped[lc.EntityID], lc)
	}
	return grouped, nil
}

// ListByCycleForTenant loads every lifecycle last seen in a given cycle for a
// tenant in one query, grouped by entity.
func (r *Repository) ListByCycleForTenant(ctx context.Context, tenantID, cycleID string) (map[string][]models.SignalLifecycle, error) {
	ctx, span := tracing.StartSpan(ctx, "signallifecycle.Repository.ListByCycleForTenant")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("last_cycle_id", cycleID),
	)
	sb.OrderBy("entity_id")

	query, args := sb.Build()
	var lifecycles []models.SignalLifecycle
	if err := r.db.SelectContext(ctx, &lifecycles, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tenant lifecycles by cycle")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tenant lifecycles by cycle")
	}

	grouped := make(map[string][]models.SignalLifecycle)
	for _, lc := range lifecycles {
		grouped[lc.EntityID] = append(grouped[lc.EntityID], lc)
	}
	return grouped, nil
}

// List retrieves lifecycles for a tenant with optional filters, paged.
func (r *Repository) List(ctx context.Context, tenantID string, persistence *models.PersistenceState, entityID *string, page, pageSize int) ([]models.SignalLifecycle, int, error) {
	ctx, span := tracing.StartSpan(ctx, "signallifecycle.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From(table)
	countSb.Where(countSb.Equal("tenant_id", tenantID))
	if persistence != nil {
		countSb.Where(countSb.Equal("persistence", *persistence))
	}
	if entityID != nil {
		countSb.Where(countSb.Equal("entity_id", *entityID))
	}

	query, args := countSb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count lifecycles")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count lifecycles")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("tenant_id", tenantID))
	if persistence != nil {
		sb.Where(sb.Equal("persistence", *persistence))
	}
	if entityID != nil {
		sb.Where(sb.Equal("entity_id", *entityID))
	}
	sb.OrderBy("last_detected_at DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args = sb.Build()
	var lifecycles []models.SignalLifecycle
	if err := r.db.SelectContext(ctx, &lifecycles, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list lifecycles")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list lifecycles")
	}

	return lifecycles, total, nil
}
