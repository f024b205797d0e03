// Package profile exposes the entity intelligence read model.
package profile

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	sagecontext "github.com/Ramsey-B/sage/pkg/context"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/profile"
)

// Register registers profile routes
func Register(g *echo.Group) {
	g.GET("/:entityId", GetProfile)
	g.POST("/batch", BatchProfiles)
}

// GetProfile synthesizes one entity's profile on demand
func GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := sagecontext.GetTenantID(ctx)

	entityID := c.Param("entityId")
	if entityID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "entityId is required")
	}

	ctx, loader, err := ectoinject.GetContext[*profile.Loader](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, synth, err := ectoinject.GetContext[*profile.Synthesizer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	opts := profile.LoadOptions{PriorCycleID: c.QueryParam("prior_cycle_id")}
	now := time.Now().UTC()

	inputs, err := loader.Load(ctx, tenantID, entityID, opts, now)
	if err != nil {
		return err
	}

	start := time.Now()
	result := synth.Synthesize(inputs)
	metrics.ProfileSynthesisDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())

	return c.JSON(http.StatusOK, result)
}

// BatchRequest is the request body for batch synthesis
type BatchRequest struct {
	EntityIDs    []string `json:"entity_ids" validate:"required,min=1"`
	PriorCycleID string   `json:"prior_cycle_id,omitempty"`
}

// BatchProfiles synthesizes profiles for a set of entities, pre-loading the
// shared inputs once
func BatchProfiles(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := sagecontext.GetTenantID(ctx)

	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.EntityIDs) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "entity_ids is required")
	}

	ctx, loader, err := ectoinject.GetContext[*profile.Loader](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, synth, err := ectoinject.GetContext[*profile.Synthesizer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	opts := profile.LoadOptions{PriorCycleID: req.PriorCycleID}
	now := time.Now().UTC()

	inputs, err := loader.LoadPortfolio(ctx, tenantID, req.EntityIDs, opts, now)
	if err != nil {
		return err
	}

	start := time.Now()
	profiles := synth.SynthesizeBatch(inputs)
	metrics.ProfileSynthesisDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())
	metrics.ProfileBatchSize.Observe(float64(len(profiles)))

	return c.JSON(http.StatusOK, profiles)
}
