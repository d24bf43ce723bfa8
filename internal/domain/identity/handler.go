package identity

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

// RegisterRoutes mounts the account endpoints. public is unauthenticated;
// the role groups are already guarded.
func (h *Handler) RegisterRoutes(public, patient, doctor, admin *echo.Group) {
	public.POST("/auth/login", h.Login)
	public.POST("/auth/forgot-password", h.ForgotPassword)
	public.POST("/auth/verify-otp", h.VerifyOTP)
	public.POST("/auth/reset-password", h.ResetPassword)
	public.POST("/register/:role", h.Register)

	for _, g := range []*echo.Group{patient, doctor} {
		g.GET("/dashboard", h.Dashboard)
		g.POST("/set-password", h.SetPassword)
		g.GET("/profile", h.Profile)
		g.PUT("/update-profile", h.UpdateProfile)
	}
	doctor.GET("/check-profile-completion", h.CheckProfileCompletion)

	admin.GET("/dashboard", h.Dashboard)
	admin.GET("/patients", h.listRole(auth.RolePatient))
	admin.GET("/doctors", h.listRole(auth.RoleDoctor))
	admin.GET("/pending", h.ListPending)
	admin.GET("/doctors/pending", h.ListPendingDoctors)
	admin.GET("/logs", h.ListLogs)
	admin.POST("/register/approve/:id", h.ApproveRegistration)
	admin.DELETE("/register/reject/:id", h.RejectRegistration)
	admin.POST("/doctors/approve/:id", h.ApproveDoctor)
	admin.POST("/doctors/reject/:id", h.RejectDoctor)
	admin.DELETE("/delete/:role/:id", h.DeleteUser)
	admin.POST("/add/:role", h.AddUser)
	admin.PUT("/update/:role/:id", h.UpdateUser)
	admin.GET("/doctors/certificate/view/:doctorId/:type", h.ViewCertificate)
}

func message(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"message": msg})
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// roleParam accepts patient or doctor in any case. Admin accounts are not
// managed through these routes.
func roleParam(c echo.Context) (auth.Role, error) {
	role, err := auth.ParseRole(c.Param("role"))
	if err != nil || role == auth.RoleAdmin {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid role")
	}
	return role, nil
}

func httpError(err error) error {
	if errors.Is(err, blobstore.ErrFileTooLarge) || errors.Is(err, blobstore.ErrInvalidContentType) ||
		errors.Is(err, blobstore.ErrMissingFile) || errors.Is(err, blobstore.ErrBlobNotFound) {
		return blobstore.HTTPError(err)
	}
	return apperr.HTTP(err)
}

func (h *Handler) Login(c echo.Context) error {
	var form validate.LoginForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Login(c.Request().Context(), form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var form validate.ForgotPasswordForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ForgotPassword(c.Request().Context(), form); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "OTP sent to "+form.Email)
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var form validate.OTPForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.VerifyOTP(c.Request().Context(), form); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "OTP verified")
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var form validate.ResetPasswordForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ResetPassword(c.Request().Context(), form); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "Password reset successfully")
}

func (h *Handler) Register(c echo.Context) error {
	role, err := roleParam(c)
	if err != nil {
		return err
	}
	var form validate.RegisterForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	form.Role = role.Wire()
	if _, err := h.svc.Register(c.Request().Context(), form); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusCreated, "Registration submitted for admin approval")
}

func (h *Handler) Dashboard(c echo.Context) error {
	info, err := h.svc.Dashboard(c.Request().Context(), auth.NumericUserID(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) SetPassword(c echo.Context) error {
	var form validate.SetPasswordForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	if err := h.svc.SetPassword(ctx, auth.NumericUserID(ctx), form); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "Password updated, please log in again")
}

func (h *Handler) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.Profile(ctx, auth.NumericUserID(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateProfile takes a multipart form: the text fields plus optional
// governmentId and doctorCertificate files.
func (h *Handler) UpdateProfile(c echo.Context) error {
	var form validate.ProfileForm
	if err := (&echo.DefaultBinder{}).BindBody(c, &form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid profile form")
	}
	govID, err := blobstore.FormFile(c, "governmentId", false)
	if err != nil {
		return httpError(err)
	}
	cert, err := blobstore.FormFile(c, "doctorCertificate", false)
	if err != nil {
		return httpError(err)
	}
	ctx := c.Request().Context()
	u, err := h.svc.UpdateProfile(ctx, auth.NumericUserID(ctx), form, govID, cert)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) CheckProfileCompletion(c echo.Context) error {
	ctx := c.Request().Context()
	pc, err := h.svc.ProfileCompletion(ctx, auth.NumericUserID(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

func (h *Handler) listRole(role auth.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := h.svc.Users(c.Request().Context(), role)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, nonNil(users))
	}
}

func nonNil(users []*User) []*User {
	if users == nil {
		return []*User{}
	}
	return users
}

func (h *Handler) ListPending(c echo.Context) error {
	users, err := h.svc.PendingRegistrations(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(users))
}

func (h *Handler) ListPendingDoctors(c echo.Context) error {
	users, err := h.svc.PendingDoctors(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, nonNil(users))
}

func (h *Handler) ListLogs(c echo.Context) error {
	logs, err := h.svc.Logs(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *Handler) ApproveRegistration(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.ApproveRegistration(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "Registration approved")
}

func (h *Handler) RejectRegistration(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.RejectRegistration(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "Registration rejected")
}

func (h *Handler) ApproveDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.ApproveDoctor(c.Request().Context(), id, c.QueryParam("message")); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "Doctor profile approved")
}

func (h *Handler) RejectDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.RejectDoctor(c.Request().Context(), id, c.QueryParam("message")); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "Doctor profile rejected")
}

func (h *Handler) DeleteUser(c echo.Context) error {
	role, err := roleParam(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), role, id); err != nil {
		return httpError(err)
	}
	return message(c, http.StatusOK, "User deleted")
}

func (h *Handler) AddUser(c echo.Context) error {
	role, err := roleParam(c)
	if err != nil {
		return err
	}
	var form validate.RegisterForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.AddUser(c.Request().Context(), role, form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	role, err := roleParam(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var form validate.ProfileForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.UpdateUser(c.Request().Context(), role, id, form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ViewCertificate(c echo.Context) error {
	id, err := parseID(c, "doctorId")
	if err != nil {
		return err
	}
	blobID, err := h.svc.Certificate(c.Request().Context(), id, c.Param("type"))
	if err != nil {
		return httpError(err)
	}
	return blobstore.Serve(c, h.blobs, blobID)
}
