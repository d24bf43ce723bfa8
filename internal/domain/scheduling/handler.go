package scheduling

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/platform/apperr"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the scheduling endpoints on role-guarded groups.
func (h *Handler) RegisterRoutes(patient, doctor, admin *echo.Group) {
	doctor.GET("/appointments", h.ListDoctorAppointments)
	doctor.GET("/appointments/feedback", h.ListDoctorFeedback)
	doctor.PUT("/appointments/:id/status", h.ChangeStatus)
	doctor.GET("/slots", h.ListDoctorSlots)
	doctor.POST("/create-slots", h.CreateSlots)
	doctor.PUT("/slots/:id/status", h.SetSlotStatus)
	doctor.DELETE("/slots/:id", h.DeleteSlot)

	patient.GET("/search-doctors", h.SearchDoctors)
	patient.GET("/doctor/:doctorId/slots", h.ListAvailableSlots)
	patient.POST("/book-appointment/:slotId", h.Book)
	patient.GET("/appointments", h.ListPatientAppointments)
	patient.PUT("/appointments/:id/cancel", h.Cancel)
	patient.PUT("/appointments/:id/reschedule", h.Reschedule)
	patient.POST("/appointments/:id/feedback", h.SubmitFeedback)

	admin.GET("/appointments", h.ListAllAppointments)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func doctorViews(list []*Appointment) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		out = append(out, a.DoctorView())
	}
	return out
}

func patientViews(list []*Appointment) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		out = append(out, a.PatientView())
	}
	return out
}

// -- Doctor Handlers --

func (h *Handler) ListDoctorAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	status := Status(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	list, err := h.svc.DoctorAppointments(ctx, auth.NumericUserID(ctx), c.QueryParam("date"), status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, doctorViews(list))
}

func (h *Handler) ListDoctorFeedback(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := h.svc.DoctorFeedback(ctx, auth.NumericUserID(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var form validate.StatusChangeForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	a, err := h.svc.ChangeStatus(ctx, auth.NumericUserID(ctx), id, form)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a.DoctorView())
}

func (h *Handler) ListDoctorSlots(c echo.Context) error {
	ctx := c.Request().Context()
	slots, err := h.svc.DoctorSlots(ctx, auth.NumericUserID(ctx), c.QueryParam("date"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) CreateSlots(c echo.Context) error {
	var form validate.CreateSlotsForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	created, err := h.svc.CreateSlots(ctx, auth.NumericUserID(ctx), form)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.String(http.StatusCreated, fmt.Sprintf("%d slots created successfully", len(created)))
}

func (h *Handler) SetSlotStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var form validate.SlotStatusForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	sl, err := h.svc.SetSlotStatus(ctx, auth.NumericUserID(ctx), id, SlotStatus(form.Status))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteSlot(ctx, auth.NumericUserID(ctx), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.String(http.StatusOK, "Slot deleted successfully")
}

// -- Patient Handlers --

func (h *Handler) SearchDoctors(c echo.Context) error {
	list, err := h.svc.SearchDoctors(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ListAvailableSlots(c echo.Context) error {
	doctorID, err := parseID(c, "doctorId")
	if err != nil {
		return err
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) Book(c echo.Context) error {
	slotID, err := parseID(c, "slotId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.svc.Book(ctx, auth.NumericUserID(ctx), slotID, c.QueryParam("reason"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a.PatientView())
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := h.svc.PatientAppointments(ctx, auth.NumericUserID(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, patientViews(list))
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.svc.Cancel(ctx, auth.NumericUserID(ctx), id, c.QueryParam("reason"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a.PatientView())
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	newSlotID, err := strconv.ParseInt(c.QueryParam("newSlotId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "newSlotId is required")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Reschedule(ctx, auth.NumericUserID(ctx), id, newSlotID, c.QueryParam("reason"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a.PatientView())
}

func (h *Handler) SubmitFeedback(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	rating, err := strconv.Atoi(c.QueryParam("rating"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be a number")
	}
	ctx := c.Request().Context()
	if err := h.svc.SubmitFeedback(ctx, auth.NumericUserID(ctx), id, c.QueryParam("feedback"), rating); err != nil {
		return apperr.HTTP(err)
	}
	return c.String(http.StatusOK, "Feedback submitted successfully")
}

// -- Admin Handlers --

func (h *Handler) ListAllAppointments(c echo.Context) error {
	list, err := h.svc.AllAppointments(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, doctorViews(list))
}
