package admissions

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hmis/hmis/internal/platform/auth"
)

// envelope is the response shape the admission screens consume.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Success: false, Message: message})
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("/admissions", auth.RequireRole("admin", "doctor", "nurse", "front_office"))
	readGroup.GET("/branches", h.Branches)
	readGroup.GET("/wards/statistics", h.WardStatistics)
	readGroup.GET("/wards/statistics/:branchId", h.WardStatistics)
	readGroup.GET("/beds/occupancy", h.BedOccupancy)
	readGroup.GET("/beds/occupancy/:branchId", h.BedOccupancy)
	readGroup.GET("/active", h.ActiveAdmissions)
	readGroup.GET("/active/:branchId", h.ActiveAdmissions)
	readGroup.GET("/maternity", h.MaternityAdmissions)
	readGroup.GET("/maternity/:branchId", h.MaternityAdmissions)
	readGroup.GET("/metadata", h.Metadata)
	readGroup.GET("/patients/search", h.SearchPatients)

	writeGroup := api.Group("/admissions", auth.RequireRole("admin", "doctor", "nurse"))
	writeGroup.POST("/admit", h.Admit)
	writeGroup.POST("/patients", h.RegisterPatient)
	writeGroup.POST("/patients/transfer", h.TransferPatient)
	writeGroup.POST("/:id/discharge", h.Discharge)
}

// branchParam reads the optional :branchId path segment; 0 means all.
func branchParam(c echo.Context) (int, error) {
	raw := c.Param("branchId")
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) Branches(c echo.Context) error {
	branches, err := h.svc.Branches(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, branches)
}

func (h *Handler) WardStatistics(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid branch id")
	}
	stats, err := h.svc.WardStatistics(c.Request().Context(), branchID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, stats)
}

func (h *Handler) BedOccupancy(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid branch id")
	}
	beds, err := h.svc.BedOccupancy(c.Request().Context(), branchID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, beds)
}

func (h *Handler) ActiveAdmissions(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid branch id")
	}
	list, err := h.svc.ActiveAdmissions(c.Request().Context(), branchID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, list)
}

func (h *Handler) MaternityAdmissions(c echo.Context) error {
	branchID, err := branchParam(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid branch id")
	}
	list, err := h.svc.MaternityAdmissions(c.Request().Context(), branchID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, list)
}

func (h *Handler) Metadata(c echo.Context) error {
	meta, err := h.svc.Metadata(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return ok(c, meta)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	patients, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return ok(c, patients)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterPatient(c.Request().Context(), &p); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return created(c, p)
}

func (h *Handler) Admit(c echo.Context) error {
	var a Admission
	if err := c.Bind(&a); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Admit(c.Request().Context(), &a); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return created(c, a)
}

func (h *Handler) TransferPatient(c echo.Context) error {
	var body struct {
		AdmissionID uuid.UUID `json:"admission_id"`
		ToWardID    int       `json:"to_ward_id"`
		ToBedID     int       `json:"to_bed_id"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.TransferPatient(c.Request().Context(), body.AdmissionID, body.ToWardID, body.ToBedID)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return ok(c, a)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Discharge(c.Request().Context(), id, body.Notes)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	return ok(c, a)
}
