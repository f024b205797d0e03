// Package lifecycle exposes signal lifecycle state to the API layer.
package lifecycle

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/internal/repositories/signallifecycle"
	sagecontext "github.com/Ramsey-B/sage/pkg/context"
	"github.com/Ramsey-B/sage/pkg/models"
)

// Register registers lifecycle routes
func Register(g *echo.Group) {
	g.GET("", ListLifecycles)
	g.GET("/entity/:entityId", ListActiveByEntity)
}

// ListLifecycles lists a tenant's lifecycles with optional filters
func ListLifecycles(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := sagecontext.GetTenantID(ctx)

	var persistence *models.PersistenceState
	if label := c.QueryParam("persistence"); label != "" {
		state, err := models.ParsePersistenceState(label)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		persistence = &state
	}

	var entityID *string
	if id := c.QueryParam("entity_id"); id != "" {
		entityID = &id
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	ctx, repo, err := ectoinject.GetContext[*signallifecycle.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, total, err := repo.List(ctx, tenantID, persistence, entityID, page, pageSize)
	if err != nil {
		return err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return c.JSON(http.StatusOK, models.SignalLifecycleListResponse{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// ListActiveByEntity lists the open lifecycles for one entity
func ListActiveByEntity(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := sagecontext.GetTenantID(ctx)

	entityID := c.Param("entityId")
	if entityID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "entityId is required")
	}

	ctx, repo, err := ectoinject.GetContext[*signallifecycle.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	lifecycles, err := repo.ListActiveByEntity(ctx, tenantID, entityID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, lifecycles)
}
