package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/partnerhub/internal/audit"
	auditdomain "github.com/smallbiznis/partnerhub/internal/audit/domain"
	"github.com/smallbiznis/partnerhub/internal/authorization"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/partnerhub/internal/dashboard/domain"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/lead"
	leaddomain "github.com/smallbiznis/partnerhub/internal/lead/domain"
	"github.com/smallbiznis/partnerhub/internal/notification"
	notificationdomain "github.com/smallbiznis/partnerhub/internal/notification/domain"
	"github.com/smallbiznis/partnerhub/internal/notification/live"
	"github.com/smallbiznis/partnerhub/internal/observability"
	obslogger "github.com/smallbiznis/partnerhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/partnerhub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/partnerhub/internal/observability/tracing"
	"github.com/smallbiznis/partnerhub/internal/onboarding"
	onboardingdomain "github.com/smallbiznis/partnerhub/internal/onboarding/domain"
	"github.com/smallbiznis/partnerhub/internal/partner"
	partnerdomain "github.com/smallbiznis/partnerhub/internal/partner/domain"
	"github.com/smallbiznis/partnerhub/internal/providers"
	"github.com/smallbiznis/partnerhub/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	authorization.Module,
	audit.Module,
	events.Module,
	providers.Module,
	ratelimit.Module,
	partner.Module,
	onboarding.Module,
	lead.Module,
	notification.Module,
	dashboard.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func RegisterRoutes(s *Server) {
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()
}

type Server struct {
	engine            *gin.Engine
	cfg               config.Config
	log               *zap.Logger
	authzSvc          authorization.Service
	auditSvc          auditdomain.Service
	partnerSvc        partnerdomain.Service
	leadSvc           leaddomain.Service
	onboardingSvc     onboardingdomain.Service
	notificationSvc   notificationdomain.Service
	dashboardSvc      dashboarddomain.Service
	liveNotifications *live.Hub
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Cfg               config.Config
	Log               *zap.Logger
	AuthzSvc          authorization.Service
	AuditSvc          auditdomain.Service
	PartnerSvc        partnerdomain.Service
	LeadSvc           leaddomain.Service
	OnboardingSvc     onboardingdomain.Service
	NotificationSvc   notificationdomain.Service
	DashboardSvc      dashboarddomain.Service
	LiveNotifications *live.Hub `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		log:               p.Log.Named("http.server"),
		authzSvc:          p.AuthzSvc,
		auditSvc:          p.AuditSvc,
		partnerSvc:        p.PartnerSvc,
		leadSvc:           p.LeadSvc,
		onboardingSvc:     p.OnboardingSvc,
		notificationSvc:   p.NotificationSvc,
		dashboardSvc:      p.DashboardSvc,
		liveNotifications: p.LiveNotifications,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.CallerRequired())

	api.POST("/applications", s.authorize(authorization.ObjectApplication, authorization.ActionApplicationSubmit), s.SubmitApplication)

	api.GET("/partner", s.authorize(authorization.ObjectPartner, authorization.ActionPartnerView), s.GetPartner)
	api.PATCH("/partner", s.authorize(authorization.ObjectPartner, authorization.ActionPartnerUpdate), s.UpdatePartner)

	api.POST("/leads", s.authorize(authorization.ObjectLead, authorization.ActionLeadCreate), s.CreateLead)
	api.GET("/leads", s.authorize(authorization.ObjectLead, authorization.ActionLeadView), s.ListLeads)
	api.GET("/leads/:id", s.authorize(authorization.ObjectLead, authorization.ActionLeadView), s.GetLead)
	api.PATCH("/leads/:id", s.authorize(authorization.ObjectLead, authorization.ActionLeadUpdate), s.TransitionLead)

	api.GET("/agreements", s.authorize(authorization.ObjectAgreement, authorization.ActionAgreementView), s.ListAgreements)
	api.POST("/agreements/:id/accept", s.authorize(authorization.ObjectAgreement, authorization.ActionAgreementSign), s.AcceptAgreement)
	api.GET("/agreements/:id/certificate", s.authorize(authorization.ObjectAgreement, authorization.ActionAgreementView), s.AgreementCertificate)

	api.GET("/onboarding", s.authorize(authorization.ObjectOnboarding, authorization.ActionOnboardingView), s.GetOnboarding)
	api.POST("/onboarding/payment-setup", s.authorize(authorization.ObjectOnboarding, authorization.ActionOnboardingAdvance), s.RequestPaymentSetup)
	api.POST("/onboarding/activate", s.authorize(authorization.ObjectOnboarding, authorization.ActionOnboardingAdvance), s.ActivatePartner)

	api.GET("/dashboard", s.authorize(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetDashboard)

	notifications := api.Group("/notifications")
	notifications.GET("", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationView), s.ListNotifications)
	notifications.POST("", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationCreate), s.CreateNotification)
	notifications.GET("/unread-count", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationView), s.UnreadNotificationCount)
	notifications.GET("/stream", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationView), s.StreamNotifications)
	notifications.POST("/mark-all-read", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationUpdate), s.MarkAllNotificationsRead)
	notifications.PATCH("/:id", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationUpdate), s.MarkNotificationRead)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.CallerRequired())

	admin.GET("/applications", s.authorize(authorization.ObjectApplication, authorization.ActionApplicationView), s.ListApplications)
	admin.POST("/applications/:id/approve", s.authorize(authorization.ObjectApplication, authorization.ActionApplicationReview), s.ApproveApplication)
	admin.POST("/applications/:id/reject", s.authorize(authorization.ObjectApplication, authorization.ActionApplicationReview), s.RejectApplication)

	admin.POST("/partners/:id/suspend", s.authorize(authorization.ObjectPartner, authorization.ActionPartnerSuspend), s.SuspendPartner)
	admin.POST("/partners/:id/reinstate", s.authorize(authorization.ObjectPartner, authorization.ActionPartnerSuspend), s.ReinstatePartner)
	admin.PATCH("/partners/:id/commission-rate", s.authorize(authorization.ObjectPartner, authorization.ActionPartnerRateChange), s.ChangeCommissionRate)

	admin.POST("/leads/:id/commission-paid", s.authorize(authorization.ObjectLead, authorization.ActionLeadCommissionPaid), s.MarkCommissionPaid)

	admin.POST("/agreements", s.authorize(authorization.ObjectAgreement, authorization.ActionAgreementPublish), s.PublishAgreement)

	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
