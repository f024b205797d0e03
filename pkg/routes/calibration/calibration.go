// Package calibration exposes the dry-run/apply/rollback command surface.
// Apply defaults to dry-run; a live run requires an explicit override.
package calibration

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/calibrationlog"
	"github.com/Ramsey-B/sage/pkg/calibration"
	sagecontext "github.com/Ramsey-B/sage/pkg/context"
)

// Register registers calibration routes
func Register(g *echo.Group) {
	g.POST("/run", RunCalibration)
	g.POST("/rollback", RollbackCalibration)
	g.GET("/history", ListHistory)
}

// RunRequest is the request body for a calibration run
type RunRequest struct {
	// DryRun defaults to true; a live run must send dry_run=false explicitly.
	DryRun *bool `json:"dry_run,omitempty"`
}

// RunCalibration executes a calibration pass and returns its report
func RunCalibration(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := sagecontext.GetTenantID(ctx)

	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	ctx, runner, err := ectoinject.GetContext[*calibration.Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	report, err := runner.Run(ctx, tenantID, dryRun, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}

// RollbackCalibration restores the most recent threshold backup
func RollbackCalibration(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := sagecontext.GetTenantID(ctx)

	ctx, runner, err := ectoinject.GetContext[*calibration.Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	report, err := runner.Rollback(ctx, tenantID, time.Now().UTC())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}

// ListHistory lists the tenant's adjustment history
func ListHistory(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := sagecontext.GetTenantID(ctx)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	ctx, repo, err := ectoinject.GetContext[*calibrationlog.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	adjustments, total, err := repo.List(ctx, tenantID, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"items":       adjustments,
		"total_count": total,
	})
}
