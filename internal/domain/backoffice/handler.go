package backoffice

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hmis/hmis/internal/platform/auth"
)

type Handler struct {
	state    *ClientState
	registry *ServiceRegistry
}

func NewHandler(state *ClientState, registry *ServiceRegistry) *Handler {
	return &Handler{state: state, registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	services := api.Group("/services", auth.RequireRole("admin"))
	services.GET("/status", h.ServiceStatus)
	services.POST("/control", h.ServiceControl)

	state := api.Group("/client-state")
	state.GET("/version", h.CheckVersion)
	state.POST("/clear-cache", h.ClearCache)
	state.GET("/module-usage/:role", h.ModuleUsage)
	state.POST("/module-usage/:role/:moduleId", h.RecordModuleUse)
	state.GET("/:key", h.GetKey)
	state.PUT("/:key", h.SetKey)
}

func (h *Handler) ServiceStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Status())
}

func (h *Handler) ServiceControl(c echo.Context) error {
	var body struct {
		Name   string `json:"name"`
		Action string `json:"action"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	svc, err := h.registry.Control(body.Name, body.Action, actor)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) CheckVersion(c echo.Context) error {
	changed, err := h.state.CheckVersion(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":          AppVersion,
		"refresh_required": changed,
	})
}

func (h *Handler) ClearCache(c echo.Context) error {
	if err := h.state.ClearCache(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ModuleUsage(c echo.Context) error {
	usage, err := h.state.ModuleUsageFor(c.Request().Context(), c.Param("role"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, usage)
}

func (h *Handler) RecordModuleUse(c echo.Context) error {
	usage, err := h.state.RecordModuleUse(c.Request().Context(), c.Param("role"), c.Param("moduleId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, usage)
}

func (h *Handler) GetKey(c echo.Context) error {
	val, found, err := h.state.Get(c.Request().Context(), c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "key not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"key": c.Param("key"), "value": val})
}

func (h *Handler) SetKey(c echo.Context) error {
	var body struct {
		Value string `json:"value"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.state.Set(c.Request().Context(), c.Param("key"), body.Value); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
