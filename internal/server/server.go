package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/planix/internal/authorization"
	"github.com/smallbiznis/planix/internal/cloudmetrics"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/floorplan"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	"github.com/smallbiznis/planix/internal/generation"
	generationdomain "github.com/smallbiznis/planix/internal/generation/domain"
	"github.com/smallbiznis/planix/internal/observability"
	obsmiddleware "github.com/smallbiznis/planix/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/planix/internal/observability/metrics"
	obstracing "github.com/smallbiznis/planix/internal/observability/tracing"
	"github.com/smallbiznis/planix/internal/payment"
	paymentdomain "github.com/smallbiznis/planix/internal/payment/domain"
	"github.com/smallbiznis/planix/internal/plancatalog"
	"github.com/smallbiznis/planix/internal/providers"
	"github.com/smallbiznis/planix/internal/quota"
	quotadomain "github.com/smallbiznis/planix/internal/quota/domain"
	"github.com/smallbiznis/planix/internal/ratelimit"
	"github.com/smallbiznis/planix/internal/referral"
	referraldomain "github.com/smallbiznis/planix/internal/referral/domain"
	"github.com/smallbiznis/planix/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/planix/internal/subscription/domain"
	"github.com/smallbiznis/planix/internal/user"
	userdomain "github.com/smallbiznis/planix/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Domains holds the service modules behind the HTTP API. Entrypoints that
// run without the HTTP server, like the scheduler, include it directly.
var Domains = fx.Options(
	plancatalog.Module,
	providers.Module,
	authorization.Module,
	ratelimit.Module,
	user.Module,
	referral.Module,
	quota.Module,
	subscription.Module,
	floorplan.Module,
	generation.Module,
	payment.Module,
)

var Module = fx.Module("http.server",
	Domains,
	cloudmetrics.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

// generationLimiter is the per-user token bucket in front of plan generation.
type generationLimiter interface {
	Enabled() bool
	AllowGenerate(ctx context.Context, userID string) (*ratelimit.RateLimitResult, error)
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	authzSvc        authorization.Service
	userSvc         userdomain.Service
	referralSvc     referraldomain.Service
	quotaSvc        quotadomain.Service
	subscriptionSvc subscriptiondomain.Service
	floorPlanSvc    floorplandomain.Service
	generationSvc   generationdomain.Service
	paymentSvc      paymentdomain.Service
	obsMetrics      *obsmetrics.Metrics
	generateLimiter generationLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	AuthzSvc        authorization.Service
	UserSvc         userdomain.Service
	ReferralSvc     referraldomain.Service
	QuotaSvc        quotadomain.Service
	SubscriptionSvc subscriptiondomain.Service
	FloorPlanSvc    floorplandomain.Service
	GenerationSvc   generationdomain.Service
	PaymentSvc      paymentdomain.Service
	ObsMetrics      *obsmetrics.Metrics          `optional:"true"`
	GenerateLimiter *ratelimit.GenerationLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		authzSvc:        p.AuthzSvc,
		userSvc:         p.UserSvc,
		referralSvc:     p.ReferralSvc,
		quotaSvc:        p.QuotaSvc,
		subscriptionSvc: p.SubscriptionSvc,
		floorPlanSvc:    p.FloorPlanSvc,
		generationSvc:   p.GenerationSvc,
		paymentSvc:      p.PaymentSvc,
		obsMetrics:      p.ObsMetrics,
	}
	if p.GenerateLimiter != nil {
		svc.generateLimiter = p.GenerateLimiter
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.Health)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Users --------
	api.POST("/users", s.CreateUser)
	api.GET("/users/:id", s.GetUser)
	api.PUT("/users/:id", s.UpdateUser)
	api.GET("/users/:id/subscription", s.GetUserSubscription)
	api.GET("/users/:id/payments", s.ListUserPayments)

	// -------- Floor plans --------
	api.POST("/floor-plans", s.GenerateRateLimit(), s.GenerateFloorPlan)
	api.GET("/floor-plans/:planId", s.GetFloorPlan)
	api.GET("/floor-plans/user/:userId", s.ListUserFloorPlans)
	api.DELETE("/floor-plans/:planId", s.DeleteFloorPlan)
	api.POST("/floor-plans/:planId/export", s.ExportFloorPlan)

	// -------- Referrals --------
	api.POST("/referrals/apply", s.ApplyReferral)
	api.GET("/referrals/leaderboard/top", s.ReferralLeaderboard)
	api.GET("/referrals/:userId", s.GetReferralStats)
	api.GET("/referrals/:userId/qr", s.GetReferralQRCode)

	// -------- Subscriptions --------
	api.GET("/subscriptions/plans", s.ListPlans)
	api.GET("/subscriptions/:userId", s.GetSubscription)
	api.PUT("/subscriptions/:userId", s.ChangeSubscription)
	api.DELETE("/subscriptions/:userId", s.CancelSubscription)

	// -------- Payment Webhooks --------
	api.POST("/payments/razorpay/webhook", s.handleProviderWebhook("razorpay"))
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminTokenRequired())

	admin.POST("/users/:id/usage/reset",
		s.authorizeAdminAction(authorization.ObjectUsage, authorization.ActionUsageReset),
		s.ResetUserUsage,
	)
	admin.PUT("/users/:id/subscription",
		s.authorizeAdminAction(authorization.ObjectSubscription, authorization.ActionSubscriptionAssign),
		s.AssignUserSubscription,
	)
}
