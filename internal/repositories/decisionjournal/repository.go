// Package decisionjournal stores human response history: what was done (or
// not done) about each signal fire. Effectiveness scoring reads this.
package decisionjournal

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

const table = "signal_responses"

var columns = []string{
	"id", "tenant_id", "signal_type", "entity_id", "fired_at",
	"acted", "dismissed", "responded_at", "outcome_improved", "seasonal_active",
}

// Repository handles signal response rows
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new decision journal repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Record stores one response row from the external decision journal feed.
func (r *Repository) Record(ctx context.Context, response *models.SignalResponse) error {
	ctx, span := tracing.StartSpan(ctx, "decisionjournal.Repository.Record")
	defer span.End()

	if response.ID == "" {
		response.ID = uuid.New().String()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(
		response.ID, response.TenantID, response.SignalType, response.EntityID,
		response.FiredAt, response.Acted, response.Dismissed,
		response.RespondedAt, response.OutcomeImproved, response.SeasonalActive,
	)

	ub := ib.OnConflict("id")
	ub.Set(
		ub.Assign("acted", database.Excluded("acted")),
		ub.Assign("dismissed", database.Excluded("dismissed")),
		ub.Assign("responded_at", database.Excluded("responded_at")),
		ub.Assign("outcome_improved", database.Excluded("outcome_improved")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"signal_type": response.SignalType,
			"entity_id":   response.EntityID,
		}).Error("Failed to record signal response")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record signal response")
	}

	return nil
}

// ListBySignalType retrieves the responses for one signal type within a
// window, oldest first.
func (r *Repository) ListBySignalType(ctx context.Context, tenantID, signalType string, from, to time.Time) ([]models.SignalResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "decisionjournal.Repository.ListBySignalType")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("signal_type", signalType),
		sb.GreaterEqualThan("fired_at", from),
		sb.LessThan("fired_at", to),
	)
	sb.OrderBy("fired_at ASC")

	query, args := sb.Build()
	var responses []models.SignalResponse
	if err := r.db.SelectContext(ctx, &responses, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list signal responses")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list signal responses")
	}

	return responses, nil
}

// SignalTypes returns the distinct signal types with responses in a window,
// so a calibration run knows what to score.
func (r *Repository) SignalTypes(ctx context.Context, tenantID string, from, to time.Time) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "decisionjournal.Repository.SignalTypes")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("DISTINCT signal_type")
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.GreaterEqualThan("fired_at", from),
		sb.LessThan("fired_at", to),
	)
	sb.OrderBy("signal_type")

	query, args := sb.Build()
	var types []string
	if err := r.db.SelectContext(ctx, &types, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list signal types")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list signal types")
	}

	return types, nil
}
