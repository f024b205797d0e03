// Package calibrationlog is the append-only calibration history. Rows are
// never updated or deleted; rollbacks append new records.
package calibrationlog

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const table = "calibration_adjustments"

var columns = []string{
	"id", "tenant_id", "run_id", "signal_type",
	"previous_value", "proposed_value", "capped_value", "final_value",
	"direction", "reason", "tier", "applied", "skipped",
	"evidence", "backup_version", "rolled_back", "created_at",
}

// Repository handles calibration adjustment records
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new calibration log repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append writes one adjustment record.
func (r *Repository) Append(ctx context.Context, a *models.CalibrationAdjustment) error {
	ctx, span := tracing.StartSpan(ctx, "calibrationlog.Repository.Append")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		a.ID, a.TenantID, a.RunID, a.SignalType,
		a.PreviousValue, a.ProposedValue, a.CappedValue, a.FinalValue,
		a.Direction, a.Reason, a.Tier, a.Applied, a.Skipped,
		a.Evidence, a.BackupVersion, a.RolledBack, a.CreatedAt,
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"run_id":      a.RunID,
			"signal_type": a.SignalType,
		}).Error("Failed to append calibration adjustment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append calibration adjustment")
	}

	return nil
}

// RecentApplied retrieves the latest applied, non-rolled-back adjustments
// for one signal type, newest first. Cooldown and oscillation checks read
// this.
func (r *Repository) RecentApplied(ctx context.Context, tenantID, signalType string, limit int) ([]models.CalibrationAdjustment, error) {
	ctx, span := tracing.StartSpan(ctx, "calibrationlog.Repository.RecentApplied")
	defer span.End()

	if limit < 1 || limit > 20 {
		limit = 2
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("signal_type", signalType),
		sb.Equal("applied", true),
		sb.Equal("rolled_back", false),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var adjustments []models.CalibrationAdjustment
	if err := r.db.SelectContext(ctx, &adjustments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list recent applied adjustments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list recent applied adjustments")
	}

	return adjustments, nil
}

// ListByRun retrieves every record for one calibration run.
func (r *Repository) ListByRun(ctx context.Context, tenantID, runID string) ([]models.CalibrationAdjustment, error) {
	ctx, span := tracing.StartSpan(ctx, "calibrationlog.Repository.ListByRun")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("run_id", runID),
	)
	sb.OrderBy("signal_type")

	query, args := sb.Build()
	var adjustments []models.CalibrationAdjustment
	if err := r.db.SelectContext(ctx, &adjustments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list adjustments by run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list adjustments by run")
	}

	return adjustments, nil
}

// List retrieves a tenant's adjustment history, newest first, paged.
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.CalibrationAdjustment, int, error) {
	ctx, span := tracing.StartSpan(ctx, "calibrationlog.Repository.List")
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

	query, args := countSb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count adjustments")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count adjustments")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args = sb.Build()
	var adjustments []models.CalibrationAdjustment
	if err := r.db.SelectContext(ctx, &adjustments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list adjustments")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list adjustments")
	}

	return adjustments, total, nil
}
