// Dynamic form definition and submission engine. Forms are defined through
// an admin API, rendered and answered through slug addressed public
// endpoints, and their responses exported as CSV.
//
// Key features:
//   - Closed field type registry with per type validation.
//   - Conditional field visibility evaluated fail closed.
//   - Webhook and email notifications after a submission is stored.
//   - File uploads backed by Minio or a local directory.
package planforms

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/planealo/planforms/internal/planforms/config"
	"github.com/planealo/planforms/internal/planforms/cronmanager"
	"github.com/planealo/planforms/internal/planforms/dao"
	filestorage "github.com/planealo/planforms/internal/planforms/file-storage"
	"github.com/planealo/planforms/internal/planforms/maintenance"
	"github.com/planealo/planforms/internal/planforms/notifications"
)

type Services struct {
	db           *gorm.DB
	storage      filestorage.FileStorage
	emailService *notifications.EmailService
	dispatcher   *notifications.Dispatcher
}

var cfg *config.Config
var appVersion string

// ServerHeader middleware adds a `Server` header to the response.
func ServerHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderServer, "PlanForms")
		return next(c)
	}
}

func Server(db *gorm.DB, c *config.Config, version string) {
	cfg = c
	appVersion = version

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}

		// Ignore 404
		if code == http.StatusNotFound {
			c.NoContent(http.StatusNotFound)
			return
		}
		slog.Error("Unhandled error in endpoint", "url", c.Request().URL, "err", err)
		EErrorMsgStatus(c, nil, code)
	}

	var storage filestorage.FileStorage
	var err error
	if cfg.AWSEndpoint != "" {
		storage, err = filestorage.NewMinioStorage(cfg.AWSEndpoint, cfg.AWSAccessKey, cfg.AWSSecretKey, false, cfg.AWSBucketName)
		if err != nil {
			slog.Error("Fail init Minio connection", "err", err)
			os.Exit(1)
		}
	} else {
		storage, err = filestorage.NewLocalStorage(cfg.UploadsPath)
		if err != nil {
			slog.Error("Fail init local storage", "err", err)
			os.Exit(1)
		}
	}

	dao.FileStorage = storage
	dao.Config = cfg

	es := notifications.NewEmailService(cfg)
	dispatcher := notifications.NewDispatcher(
		time.Duration(cfg.WebhookTimeout)*time.Second,
		time.Duration(cfg.WebhookTotalTimeout)*time.Second,
	)

	jobRegistry := cronmanager.JobRegistry{
		"assets_clean": cronmanager.Job{
			Func:     maintenance.NewAssetCleaner(db, storage).CleanAssets,
			Schedule: "0 1 * * *", // daily at 01:00
		},
	}

	cronManager := cronmanager.NewCronManager(jobRegistry)
	if err := cronManager.LoadJobs(); err != nil {
		slog.Error("Failed to load cron jobs", "err", err)
		os.Exit(1)
	}

	s := &Services{
		db:           db,
		storage:      storage,
		emailService: es,
		dispatcher:   dispatcher,
	}

	cronManager.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down gracefully, press Ctrl+C again to force")
		cronManager.Stop()
		es.Stop()
		os.Exit(0)
	}()

	// Global middlewares
	e.Use(ServerHeader)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: "1M",
		Skipper: func(c echo.Context) bool {
			// Uploads carry their own size limit.
			return strings.HasSuffix(c.Path(), "/submit/")
		},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     9,
		MinLength: 2048,
	}))
	e.Use(echoprometheus.NewMiddleware("planforms"))
	e.Pre(middleware.AddTrailingSlash())

	e.Validator = NewRequestValidator()

	apiGroup := e.Group("/api/")
	adminGroup := apiGroup.Group("admin/")

	s.AddFormServices(adminGroup)
	s.AddSubmitServices(e.Group("/forms/api/"))

	// Stored uploads
	apiGroup.GET("file/:fileId/", s.getFile)

	// Version endpoint
	apiGroup.GET("version/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"version": appVersion,
		})
	})

	// Health endpoint
	apiGroup.GET("_health/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Prometheus metrics
	go func() {
		bootTimeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "planforms",
			Name:      "boot_time",
			Help:      "Server startup time",
		})
		bootTimeGauge.Set(float64(time.Now().UnixMilli()))

		if err := prometheus.Register(bootTimeGauge); err != nil {
			slog.Error("Register boot time gauge", "err", err)
			os.Exit(1)
		}
		if err := registerMetrics(); err != nil {
			slog.Error("Register submission metrics", "err", err)
			os.Exit(1)
		}

		metrics := echo.New()
		metrics.HideBanner = true
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(":2112"); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server fail", "err", err)
		}
	}()

	if err := e.Start(cfg.ListenAddress); err != nil {
		slog.Error("Server fail", "err", err)
	}
}
