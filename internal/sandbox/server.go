package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/domain/clinical"
	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/blobstore"
	"github.com/medvault/medvault/internal/platform/middleware"
	"github.com/medvault/medvault/internal/platform/websocket"
)

const (
	tokenIssuer = "medvault-sandbox"
	tokenTTL    = 12 * time.Hour
	version     = "0.1.0"
)

type options struct {
	seed      SeedConfig
	authLimit middleware.RateLimitConfig
	hashCost  int
	timeout   time.Duration
}

// Option customizes NewServer.
type Option func(*options)

// WithSeedConfig overrides the generated data volume. The seed itself still
// comes from the config unless set here.
func WithSeedConfig(sc SeedConfig) Option {
	return func(o *options) { o.seed = sc }
}

// WithAuthRateLimit replaces the limiter applied to the public auth routes.
func WithAuthRateLimit(cfg middleware.RateLimitConfig) Option {
	return func(o *options) { o.authLimit = cfg }
}

// WithHashCost sets the bcrypt cost for stored passwords.
func WithHashCost(cost int) Option {
	return func(o *options) { o.hashCost = cost }
}

// Server is an in-memory MedVault backend.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
	seeded *SeedResult

	Identity   *identity.Service
	Scheduling *scheduling.Service
	Clinical   *clinical.Service
	Blobs      blobstore.BlobStore
	Tokens     *auth.Issuer
	Events     *websocket.Hub
}

// NewServer builds the services, seeds them and mounts every route under /api.
func NewServer(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Server, error) {
	o := options{
		seed:      DefaultSeedConfig(),
		authLimit: middleware.AuthRateLimitConfig(),
		hashCost:  bcrypt.DefaultCost,
		timeout:   30 * time.Second,
	}
	o.seed.Seed = cfg.SandboxSeed
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		logger: logger,
		Blobs:  blobstore.NewInMemoryBlobStore(),
		Tokens: auth.NewIssuer([]byte(cfg.SandboxSigningKey), tokenIssuer, tokenTTL),
		Events: websocket.NewHub(logger),
	}

	s.Identity = identity.NewService(identity.NewMemoryUserRepo(), identity.NewMemoryAuditRepo(), s.Blobs, s.Tokens, logger)
	s.Identity.SetHashCost(o.hashCost)
	dir := newIdentityDirectory(s.Identity)
	s.Scheduling = scheduling.NewService(
		scheduling.NewMemorySlotRepo(),
		scheduling.NewMemoryAppointmentRepo(),
		scheduling.NewMemoryFeedbackRepo(),
		dir,
	)
	s.Clinical = clinical.NewService(clinical.NewMemoryStores(), s.Blobs, dir, logger)

	res, err := NewSeeder(o.seed).Generate(context.Background(), Services{
		Identity:   s.Identity,
		Scheduling: s.Scheduling,
		Clinical:   s.Clinical,
	})
	if err != nil {
		return nil, fmt.Errorf("seed sandbox: %w", err)
	}
	s.seeded = res
	// Attached after seeding so generated history publishes nothing.
	s.Scheduling.SetNotifier(appointmentEvents{pub: s.Events, logger: logger})
	logger.Info().
		Int("doctors", res.Doctors).
		Int("patients", res.Patients).
		Int("slots", res.Slots).
		Int("appointments", res.Appointments).
		Dur("duration", res.Duration).
		Msg("sandbox seeded")

	s.echo = s.routes(cfg, o)
	return s, nil
}

func (s *Server) routes(cfg *config.Config, o options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(s.logger)

	metrics := middleware.NewMetrics("medvault_sandbox")

	// Global middleware
	e.Use(middleware.Recovery(s.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", "12M"))
	e.Use(middleware.RequestTimeout(o.timeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", metrics.Handler())

	public := e.Group("/api")
	public.Use(middleware.RateLimit(o.authLimit))

	api := e.Group("/api")
	api.Use(auth.JWTMiddleware(s.Tokens.Config()))
	api.Use(middleware.Audit(s.logger, middleware.AuditRecorderFunc(s.recordAccess)))

	patient := api.Group("/patient", auth.RequireRole(string(auth.RolePatient)))
	doctor := api.Group("/doctor", auth.RequireRole(string(auth.RoleDoctor)))
	admin := api.Group("/admin", auth.RequireRole(string(auth.RoleAdmin)))

	identity.NewHandler(s.Identity, s.Blobs).RegisterRoutes(public, patient, doctor, admin)
	scheduling.NewHandler(s.Scheduling).RegisterRoutes(patient, doctor, admin)
	clinical.NewHandler(s.Clinical, s.Blobs).RegisterRoutes(patient, doctor)
	websocket.NewHandler(s.Events).RegisterRoutes(api)

	// Both /api groups claim the catch-all for their middleware and the JWT
	// group registers last. Unknown API paths answer 404 without a token.
	e.RouteNotFound("/api", echo.NotFoundHandler)
	e.RouteNotFound("/api/*", echo.NotFoundHandler)

	return e
}

// recordAccess copies successful patient-data access into the admin audit log.
func (s *Server) recordAccess(entry middleware.AuditEntry) error {
	id, err := strconv.ParseInt(entry.UserID, 10, 64)
	if err != nil {
		return fmt.Errorf("audit entry user id %q: %w", entry.UserID, err)
	}
	return s.Identity.RecordDataAccess(context.Background(), id, entry.Action, entry.Resource)
}

// Handler returns the root HTTP handler, for httptest and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Seeded reports what the seeder generated at startup.
func (s *Server) Seeded() SeedResult { return *s.seeded }

// Start serves on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting sandbox")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
