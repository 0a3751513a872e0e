// Package api exposes the QC engine over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qcyard/internal/alerts"
	"github.com/zulandar/qcyard/internal/certificate"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/dashboard"
	"github.com/zulandar/qcyard/internal/inspection"
	"github.com/zulandar/qcyard/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options wires the services the API serves. DB, Inspections and
// Certificates are required.
type Options struct {
	DB           *gorm.DB
	Inspections  *inspection.Service
	Certificates *certificate.Service
	Alerts       *alerts.Scanner
	Dashboard    *dashboard.Composer
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Clock        clock.Clock
	Location     *time.Location
	// RateLimit is a limiter rate such as "300-M"; empty disables limiting.
	RateLimit string
	// StreamInterval is the dashboard event-stream refresh period.
	StreamInterval time.Duration
}

type server struct {
	db           *gorm.DB
	inspections  *inspection.Service
	certificates *certificate.Service
	alerts       *alerts.Scanner
	metrics      *metrics.Metrics
	log          *zap.Logger
	clock        clock.Clock
	loc          *time.Location
}

// NewRouter builds the gin engine with every QC route registered.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.Inspections == nil || opts.Certificates == nil {
		return nil, fmt.Errorf("api: inspection and certificate services are required")
	}
	s := &server{
		db:           opts.DB,
		inspections:  opts.Inspections,
		certificates: opts.Certificates,
		alerts:       opts.Alerts,
		metrics:      opts.Metrics,
		log:          opts.Logger,
		clock:        opts.Clock,
		loc:          opts.Location,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.alerts == nil {
		s.alerts = alerts.NewScanner(alerts.ScannerOpts{DB: s.db, Clock: s.clock, Metrics: s.metrics, Logger: s.log})
	}
	composer := opts.Dashboard
	if composer == nil {
		composer = dashboard.NewComposer(dashboard.Options{DB: s.db, Alerts: s.alerts, Clock: s.clock, Location: s.loc})
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log), requestMetrics(s.metrics))

	router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	apiGroup := router.Group("/")
	if opts.RateLimit != "" {
		limit, err := rateLimit(opts.RateLimit)
		if err != nil {
			return nil, err
		}
		apiGroup.Use(limit)
	}
	s.registerRoutes(apiGroup)
	dashboard.RegisterRoutes(apiGroup, composer, opts.StreamInterval)
	return router, nil
}

func (s *server) registerRoutes(r gin.IRoutes) {
	r.POST("/api/inspections", s.handleCreateInspection)
	r.GET("/api/inspections", s.handleListInspections)
	r.GET("/api/inspections/:id", s.handleGetInspection)
	r.POST("/api/inspections/:id/results", s.handleRecordResults)
	r.POST("/api/inspections/:id/assign", s.handleAssignInspector)

	r.POST("/api/orders/:id/stage-completed", s.handleStageCompleted)
	r.POST("/api/orders/:id/delivery-documents", s.handleDeliveryDocuments)

	r.GET("/api/rework", s.handleListRework)
	r.GET("/api/rework/:id", s.handleGetRework)
	r.POST("/api/rework/:id/status", s.handleReworkStatus)

	r.POST("/api/certificates", s.handleIssueCertificate)
	r.GET("/api/certificates", s.handleListCertificates)
	r.GET("/api/certificates/:id", s.handleGetCertificate)
	r.POST("/api/certificates/:id/submit", s.handleSubmitCertificate)
	r.POST("/api/certificates/:id/approval", s.handleCertificateApproval)

	r.GET("/api/analytics", s.handleAnalytics)
	r.GET("/api/analytics/export", s.handleAnalyticsExport)
	r.GET("/api/alerts", s.handleAlerts)
}

func (s *server) handleHealth(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Serve runs router on port until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, router http.Handler, port int, out io.Writer) error {
	if port <= 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if out != nil {
		fmt.Fprintf(out, "QC API listening on http://localhost:%d\n", port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
