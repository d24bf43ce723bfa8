package clinical

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/platform/apperr"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/blobstore"
	"github.com/medvault/medvault/internal/platform/validate"
)

type Handler struct {
	svc   *Service
	blobs blobstore.BlobStore
}

func NewHandler(svc *Service, blobs blobstore.BlobStore) *Handler {
	return &Handler{svc: svc, blobs: blobs}
}

func (h *Handler) RegisterRoutes(patient, doctor *echo.Group) {
	patient.POST("/medical-records/upload", h.UploadRecord)
	patient.GET("/medical-records", h.ListRecords)
	patient.GET("/medical-records/:id/view", h.ViewRecord)
	patient.DELETE("/medical-records/:id", h.DeleteRecord)
	patient.GET("/records/pending-access", h.ListPendingAccess)
	patient.POST("/records/access/:id/approve", h.decideRecordAccess(true))
	patient.POST("/records/access/:id/reject", h.decideRecordAccess(false))

	patient.GET("/history", h.ListHistory)
	patient.POST("/history", h.AddHistory)
	patient.PUT("/history/:id", h.UpdateHistory)
	patient.DELETE("/history/:id", h.DeleteHistory)
	patient.GET("/history/requests", h.ListHistoryRequests)
	patient.POST("/history/requests/:id/approve", h.decideHistoryAccess(true))
	patient.POST("/history/requests/:id/reject", h.decideHistoryAccess(false))

	patient.POST("/emergency", h.RaiseEmergency)
	patient.GET("/emergencies", h.ListPatientEmergencies)

	doctor.POST("/patients/:patientId/medical-records/request", h.RequestRecordAccess)
	doctor.GET("/patients/:patientId/medical-records", h.ListPatientSharedRecords)
	doctor.GET("/patients/:patientId/histories", h.PatientHistory)
	doctor.GET("/medical-records", h.ListSharedRecords)
	doctor.GET("/medical-records/:id/view", h.ViewSharedRecord)

	doctor.GET("/emergencies", h.ListOpenEmergencies)
	doctor.GET("/emergencies/accepted", h.ListAcceptedEmergencies)
	doctor.POST("/emergency/accept/:id", h.AcceptEmergency)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func httpError(err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) && (errors.Is(err, blobstore.ErrFileTooLarge) ||
		errors.Is(err, blobstore.ErrInvalidContentType) || errors.Is(err, blobstore.ErrBlobNotFound)) {
		return blobstore.HTTPError(err)
	}
	return apperr.HTTP(err)
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// list writes a JSON array, never null.
func list[T any](c echo.Context, items []T, err error) error {
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UploadRecord(c echo.Context) error {
	up, err := blobstore.FormFile(c, "file", true)
	if err != nil {
		if errors.Is(err, blobstore.ErrMissingFile) {
			return echo.NewHTTPError(http.StatusBadRequest, "file is required")
		}
		return httpError(err)
	}
	ctx := c.Request().Context()
	rec, err := h.svc.UploadRecord(ctx, auth.NumericUserID(ctx), c.FormValue("name"), up)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListRecords(c echo.Context) error {
	ctx := c.Request().Context()
	recs, err := h.svc.Records(ctx, auth.NumericUserID(ctx))
	return list(c, recs, err)
}

func (h *Handler) ViewRecord(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	blobID, err := h.svc.RecordBlob(ctx, auth.NumericUserID(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return blobstore.Serve(c, h.blobs, blobID)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteRecord(ctx, auth.NumericUserID(ctx), id); err != nil {
		return httpError(err)
	}
	return message(c, "Medical record deleted")
}

func (h *Handler) ListPendingAccess(c echo.Context) error {
	ctx := c.Request().Context()
	reqs, err := h.svc.PendingRecordAccess(ctx, auth.NumericUserID(ctx))
	return list(c, reqs, err)
}

func (h *Handler) decideRecordAccess(approve bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		if err := h.svc.DecideRecordAccess(ctx, auth.NumericUserID(ctx), id, approve); err != nil {
			return httpError(err)
		}
		if approve {
			return message(c, "Access approved")
		}
		return message(c, "Access rejected")
	}
}

func (h *Handler) ListHistory(c echo.Context) error {
	ctx := c.Request().Context()
	hs, err := h.svc.Histories(ctx, auth.NumericUserID(ctx))
	return list(c, hs, err)
}

func (h *Handler) AddHistory(c echo.Context) error {
	var form validate.HistoryForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	hist, err := h.svc.AddHistory(ctx, auth.NumericUserID(ctx), form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, hist)
}

func (h *Handler) UpdateHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var form validate.HistoryForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	hist, err := h.svc.UpdateHistory(ctx, auth.NumericUserID(ctx), id, form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) DeleteHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteHistory(ctx, auth.NumericUserID(ctx), id); err != nil {
		return httpError(err)
	}
	return message(c, "History entry deleted")
}

func (h *Handler) ListHistoryRequests(c echo.Context) error {
	ctx := c.Request().Context()
	reqs, err := h.svc.HistoryRequests(ctx, auth.NumericUserID(ctx))
	return list(c, reqs, err)
}

func (h *Handler) decideHistoryAccess(approve bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		ctx := c.Request().Context()
		if err := h.svc.DecideHistoryAccess(ctx, auth.NumericUserID(ctx), id, approve); err != nil {
			return httpError(err)
		}
		if approve {
			return message(c, "History access approved")
		}
		return message(c, "History access rejected")
	}
}

func (h *Handler) RaiseEmergency(c echo.Context) error {
	var form validate.EmergencyForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	e, err := h.svc.RaiseEmergency(ctx, auth.NumericUserID(ctx), form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListPatientEmergencies(c echo.Context) error {
	ctx := c.Request().Context()
	es, err := h.svc.PatientEmergencies(ctx, auth.NumericUserID(ctx))
	return list(c, es, err)
}

func (h *Handler) RequestRecordAccess(c echo.Context) error {
	pid, err := parseID(c, "patientId")
	if err != nil {
		return err
	}
	days := 0
	if raw := c.QueryParam("accessDays"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid accessDays")
		}
	}
	ctx := c.Request().Context()
	created, err := h.svc.RequestRecordAccess(ctx, auth.NumericUserID(ctx), pid, days)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListPatientSharedRecords(c echo.Context) error {
	pid, err := parseID(c, "patientId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	recs, err := h.svc.SharedRecords(ctx, auth.NumericUserID(ctx), pid)
	return list(c, recs, err)
}

func (h *Handler) ListSharedRecords(c echo.Context) error {
	ctx := c.Request().Context()
	recs, err := h.svc.SharedRecords(ctx, auth.NumericUserID(ctx), 0)
	return list(c, recs, err)
}

func (h *Handler) ViewSharedRecord(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	blobID, err := h.svc.SharedRecordBlob(ctx, auth.NumericUserID(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return blobstore.Serve(c, h.blobs, blobID)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	pid, err := parseID(c, "patientId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	hs, err := h.svc.HistoryForDoctor(ctx, auth.NumericUserID(ctx), pid)
	return list(c, hs, err)
}

func (h *Handler) ListOpenEmergencies(c echo.Context) error {
	es, err := h.svc.OpenEmergencies(c.Request().Context())
	return list(c, es, err)
}

func (h *Handler) ListAcceptedEmergencies(c echo.Context) error {
	ctx := c.Request().Context()
	es, err := h.svc.AcceptedEmergencies(ctx, auth.NumericUserID(ctx))
	return list(c, es, err)
}

func (h *Handler) AcceptEmergency(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	e, err := h.svc.AcceptEmergency(ctx, auth.NumericUserID(ctx), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}
