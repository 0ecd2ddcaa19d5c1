package pharmacy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hmis/hmis/internal/platform/auth"
	"github.com/hmis/hmis/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – pharmacy staff plus clinicians and front office
	readGroup := api.Group("/pharmacy", auth.RequireRole("admin", "pharmacy", "doctor", "nurse", "front_office"))
	readGroup.GET("/inventory", h.ListInventory)
	readGroup.GET("/inventory/:id", h.GetInventoryItem)
	readGroup.GET("/inventory/availability", h.CheckAvailability)
	readGroup.GET("/prices", h.ListPrices)
	readGroup.GET("/movements", h.ListMovements)
	readGroup.GET("/prescriptions", h.ListPrescriptions)
	readGroup.GET("/prescriptions/:id", h.GetPrescription)
	readGroup.GET("/transfers", h.ListTransfers)
	readGroup.GET("/transfers/:id", h.GetTransfer)
	readGroup.GET("/stock-takes", h.ListStockTakes)
	readGroup.GET("/stock-takes/:id", h.GetStockTake)
	readGroup.GET("/reports/reorder", h.ReorderReport)
	readGroup.GET("/reports/expiry", h.ExpiryReport)
	readGroup.GET("/reports/expiry/export", h.ExportExpiryCSV)
	readGroup.GET("/reports/movement-summary", h.MovementSummary)
	readGroup.GET("/reports/returns", h.ReturnsReport)

	// Write endpoints – pharmacy staff only
	writeGroup := api.Group("/pharmacy", auth.RequireRole("admin", "pharmacy"))
	writeGroup.POST("/inventory", h.AddInventoryItem)
	writeGroup.PUT("/inventory/:id", h.UpdateInventoryItem)
	writeGroup.PUT("/inventory/:id/price", h.UpdatePrice)
	writeGroup.POST("/movements", h.RecordMovement)
	writeGroup.POST("/prescriptions/walk-in", h.CreateWalkIn)
	writeGroup.POST("/prescriptions/:id/lines/:lineId/dispense", h.DispenseLine)
	writeGroup.POST("/prescriptions/:id/lines/:lineId/out-of-stock", h.MarkLineOutOfStock)
	writeGroup.POST("/prescriptions/:id/complete", h.CompletePrescription)
	writeGroup.POST("/prescriptions/:id/dispense", h.DispenseDrugs)
	writeGroup.POST("/prescriptions/:id/cancel", h.CancelPrescription)
	writeGroup.POST("/prescriptions/:id/confirm", h.ConfirmPrescription)
	writeGroup.POST("/prescriptions/:id/reverse-confirmation", h.ReverseConfirmation)
	writeGroup.PUT("/prescriptions/:id/status", h.UpdatePrescriptionStatus)
	writeGroup.POST("/transfers", h.CreateTransfer)
	writeGroup.POST("/transfers/:id/complete", h.CompleteTransfer)
	writeGroup.POST("/transfers/:id/cancel", h.CancelTransfer)
	writeGroup.POST("/stock-takes", h.CreateStockTake)
	writeGroup.POST("/stock-takes/:id/start", h.StartStockTake)
	writeGroup.PUT("/stock-takes/:id/counts/:medicationId", h.RecordCount)
	writeGroup.POST("/stock-takes/:id/complete", h.CompleteStockTake)
	writeGroup.POST("/returns", h.CreateReturn)
}

// -- Inventory --

func (h *Handler) AddInventoryItem(c echo.Context) error {
	var item InventoryItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddItem(c.Request().Context(), &item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetInventoryItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListInventory(c echo.Context) error {
	ctx := c.Request().Context()
	if category := c.QueryParam("category"); category != "" {
		items, err := h.svc.ListItemsByCategory(ctx, category)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, items)
	}
	items, err := h.svc.ListItems(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateInventoryItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var upd InventoryUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.UpdateItem(c.Request().Context(), id, upd)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) UpdatePrice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		UnitPrice float64 `json:"unit_price"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.UpdatePrice(c.Request().Context(), id, body.UnitPrice)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	qty, err := strconv.Atoi(c.QueryParam("quantity"))
	if err != nil || qty <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be a positive integer")
	}
	avail, err := h.svc.CheckAvailability(c.Request().Context(), name, qty)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, avail)
}

func (h *Handler) ListPrices(c echo.Context) error {
	prices, err := h.svc.ListPrices(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prices)
}

// -- Movements --

func (h *Handler) RecordMovement(c echo.Context) error {
	var m StockMovement
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if m.PerformedBy == "" {
		m.PerformedBy = auth.UserIDFromContext(c.Request().Context())
	}
	if err := h.svc.RecordMovement(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMovements(c echo.Context) error {
	ctx := c.Request().Context()
	if raw := c.QueryParam("medication_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid medication_id")
		}
		movements, err := h.svc.MovementsFor(ctx, id)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, movements)
	}
	movements, err := h.svc.ListMovements(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p := pagination.FromContext(c)
	start, end := p.Slice(len(movements))
	return c.JSON(http.StatusOK, pagination.NewResponse(movements[start:end], len(movements), p.Limit, p.Offset))
}

// -- Prescriptions --

func (h *Handler) ListPrescriptions(c echo.Context) error {
	ctx := c.Request().Context()
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		list, err := h.svc.ListPrescriptionsByPatient(ctx, patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, list)
	}
	if status := c.QueryParam("status"); status != "" {
		list, err := h.svc.ListPrescriptionsByStatus(ctx, status)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, list)
	}
	list, err := h.svc.ListPrescriptions(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateWalkIn(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateWalkIn(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) DispenseLine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid line id")
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	performedBy := auth.UserIDFromContext(c.Request().Context())
	p, err := h.svc.DispenseLine(c.Request().Context(), id, lineID, body.Quantity, performedBy)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) MarkLineOutOfStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid line id")
	}
	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.MarkLineOutOfStock(c.Request().Context(), id, lineID, body.Note)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CompletePrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	dispensedBy := auth.UserIDFromContext(c.Request().Context())
	p, err := h.svc.CompletePrescription(c.Request().Context(), id, dispensedBy)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DispenseDrugs(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		PatientType string `json:"patient_type"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	dispensedBy := auth.UserIDFromContext(c.Request().Context())
	p, err := h.svc.DispenseDrugs(c.Request().Context(), id, body.PatientType, dispensedBy)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CancelPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CancelPrescription(c.Request().Context(), id, body.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ConfirmPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.ConfirmPrescription(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ReverseConfirmation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.ReverseConfirmation(c.Request().Context(), id, body.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePrescriptionStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePrescriptionStatus(c.Request().Context(), id, body.Status, body.Note)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

// -- Transfers --

func (h *Handler) CreateTransfer(c echo.Context) error {
	var t Transfer
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if t.RequestedBy == "" {
		t.RequestedBy = auth.UserIDFromContext(c.Request().Context())
	}
	if err := h.svc.CreateTransfer(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTransfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTransfer(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transfer not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTransfers(c echo.Context) error {
	list, err := h.svc.ListTransfers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) CompleteTransfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	completedBy := auth.UserIDFromContext(c.Request().Context())
	t, err := h.svc.CompleteTransfer(c.Request().Context(), id, completedBy)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CancelTransfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.CancelTransfer(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

// -- Stock takes --

func (h *Handler) CreateStockTake(c echo.Context) error {
	var st StockTake
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if st.ConductedBy == "" {
		st.ConductedBy = auth.UserIDFromContext(c.Request().Context())
	}
	if err := h.svc.CreateStockTake(c.Request().Context(), &st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetStockTake(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.GetStockTake(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "stock take not found")
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListStockTakes(c echo.Context) error {
	list, err := h.svc.ListStockTakes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) StartStockTake(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.StartStockTake(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) RecordCount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	medID, err := uuid.Parse(c.Param("medicationId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}
	var body struct {
		ActualQuantity int    `json:"actual_quantity"`
		Notes          string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := h.svc.RecordCount(c.Request().Context(), id, medID, body.ActualQuantity, body.Notes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) CompleteStockTake(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, err := h.svc.CompleteStockTake(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

// -- Returns --

func (h *Handler) CreateReturn(c echo.Context) error {
	var body struct {
		MedicationID uuid.UUID `json:"medication_id"`
		Quantity     int       `json:"quantity"`
		Reason       string    `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	returnedBy := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.CreateReturn(c.Request().Context(), body.MedicationID, body.Quantity, body.Reason, returnedBy); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

// -- Reports --

func (h *Handler) ReorderReport(c echo.Context) error {
	items, err := h.svc.ReorderReport(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ExpiryReport(c echo.Context) error {
	months, _ := strconv.Atoi(c.QueryParam("months"))
	report, err := h.svc.ExpiryReport(c.Request().Context(), months)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ExportExpiryCSV(c echo.Context) error {
	months, _ := strconv.Atoi(c.QueryParam("months"))
	csv, err := h.svc.ExportExpiryCSV(c.Request().Context(), months)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="expiry-report.csv"`)
	return c.Blob(http.StatusOK, "text/csv", []byte(csv))
}

func (h *Handler) MovementSummary(c echo.Context) error {
	start, err := time.Parse("2006-01-02", c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be YYYY-MM-DD")
	}
	// Make the end date inclusive of its whole day.
	end = end.Add(24*time.Hour - time.Nanosecond)
	rows, err := h.svc.MovementSummary(c.Request().Context(), start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) ReturnsReport(c echo.Context) error {
	start, err := time.Parse("2006-01-02", c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be YYYY-MM-DD")
	}
	// Make the end date inclusive of its whole day.
	end = end.Add(24*time.Hour - time.Nanosecond)
	rows, err := h.svc.ReturnsReport(c.Request().Context(), start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rows)
}
