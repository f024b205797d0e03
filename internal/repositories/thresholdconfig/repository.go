// Package thresholdconfig stores the versioned threshold configuration the
// external signal evaluator reads. Versions are immutable; the current
// pointer moves by writing a new version inside a transaction, never by
// editing a row in place.
package thresholdconfig

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const table = "threshold_configs"

var columns = []string{
	"id", "tenant_id", "version", "document", "is_current", "backup_of", "created_at",
}

// Repository handles threshold configuration versions
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new threshold config repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetCurrent retrieves the version the evaluator is reading.
func (r *Repository) GetCurrent(ctx context.Context, tenantID string) (*models.ThresholdConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "thresholdconfig.Repository.GetCurrent")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_current", true),
	)

	query, args := sb.Build()
	var config models.ThresholdConfig
	if err := r.db.GetContext(ctx, &config, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "no current threshold configuration")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get current threshold config")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get current threshold config")
	}

	return &config, nil
}

// GetVersion retrieves one specific version.
func (r *Repository) GetVersion(ctx context.Context, tenantID string, version int) (*models.ThresholdConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "thresholdconfig.Repository.GetVersion")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("version", version),
	)

	query, args := sb.Build()
	var config models.ThresholdConfig
	if err := r.db.GetContext(ctx, &config, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "threshold configuration version not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get threshold config version")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get threshold config version")
	}

	return &config, nil
}

// WriteBackup snapshots a version into a new non-current row tagged with the
// version it was taken from.
func (r *Repository) WriteBackup(ctx context.Context, source models.ThresholdConfig) (*models.ThresholdConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "thresholdconfig.Repository.WriteBackup")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	version, err := r.nextVersion(ctx, tx, source.TenantID)
	if err != nil {
		return nil, err
	}

	backup := models.ThresholdConfig{
		ID:        uuid.New().String(),
		TenantID:  source.TenantID,
		Version:   version,
		Document:  source.Document,
		IsCurrent: false,
		BackupOf:  &source.Version,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.insert(ctx, tx, backup); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": backup.TenantID,
		"version":   backup.Version,
		"backup_of": source.Version,
	}).Info("Wrote threshold config backup")

	return &backup, nil
}

// WriteNewVersion inserts a new document version and moves the current
// pointer to it, in one transaction. Readers see either the old version or
// the new one, never a half-written state.
func (r *Repository) WriteNewVersion(ctx context.Context, tenantID string, doc models.ThresholdDocument) (*models.ThresholdConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "thresholdconfig.Repository.WriteNewVersion")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	version, err := r.nextVersion(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(ub.Assign("is_current", false))
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("is_current", true),
	)
	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to retire current threshold config")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to retire current threshold config")
	}

	config := models.ThresholdConfig{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Version:   version,
		Document:  database.JSONB[models.ThresholdDocument]{Data: doc},
		IsCurrent: true,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.insert(ctx, tx, config); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"version":   version,
	}).Info("Wrote new threshold config version")

	return &config, nil
}

// GetLatestBackup retrieves the most recent backup row, or nil when no
// backup has ever been written.
func (r *Repository) GetLatestBackup(ctx context.Context, tenantID string) (*models.ThresholdConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "thresholdconfig.Repository.GetLatestBackup")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNotNull("backup_of"),
	)
	sb.OrderBy("version DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var config models.ThresholdConfig
	if err := r.db.GetContext(ctx, &config, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get latest threshold config backup")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get latest threshold config backup")
	}

	return &config, nil
}

func (r *Repository) nextVersion(ctx context.Context, tx database.Tx, tenantID string) (int, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COALESCE(MAX(version), 0) + 1")
	sb.From(table)
	sb.Where(sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	var version int
	if err := tx.GetContext(ctx, &version, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to compute next threshold config version")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to compute next threshold config version")
	}
	return version, nil
}

func (r *Repository) insert(ctx context.Context, tx database.Tx, config models.ThresholdConfig) error {
	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		config.ID, config.TenantID, config.Version, config.Document,
		config.IsCurrent, config.BackupOf, config.CreatedAt,
	)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert threshold config")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert threshold config")
	}
	return nil
}
