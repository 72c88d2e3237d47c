package handlers

import (
	"github.com/THORISO2Nnoi/GBV-sub000/internal/alert"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/auth"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/middleware"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/sse"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Options 路由依赖；为空的组件不注册对应路由
type Options struct {
	APIPrefix   string
	MetricsPath string
	Issuer      *auth.Issuer
	Idempotency middleware.IdempotencyConfig
	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Metrics
	WSHub       *websocket.Hub
	Events      *sse.Hub
}

type Handlers struct {
	db         *gorm.DB
	engine     *alert.Engine
	aggregator *alert.Aggregator
	opts       Options
}

func NewHandlers(db *gorm.DB, engine *alert.Engine, aggregator *alert.Aggregator, opts Options) *Handlers {
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Handlers{
		db:         db,
		engine:     engine,
		aggregator: aggregator,
		opts:       opts,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	// Register System Module Routes
	h.registerSystemRoutes(engine)

	// Register Realtime Routes
	h.registerRealtimeRoutes(engine)

	// Register Business Module Routes
	r := engine.Group(h.opts.APIPrefix)
	r.Use(middleware.Auth(h.opts.Issuer))
	h.registerAlertRoutes(r)
}

// Alert Module
func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	userOnly := middleware.RequireRole(auth.RoleUser)
	limited := h.limited()

	alerts := r.Group("alerts")
	{
		alerts.POST("", userOnly, middleware.IdempotencyMiddleware(h.opts.Idempotency), h.handleCreateAlert)

		alerts.POST("/:id/reinforce", userOnly, h.handleReinforceAlert)

		alerts.PATCH("/:id/status", limited, h.handleUpdateAlertStatus)

		alerts.GET("", userOnly, limited, h.handleListUserAlerts)

		alerts.GET("/:id", h.handleGetAlert)
	}

	contact := r.Group("contact")
	{
		contact.GET("/alerts", middleware.RequireRole(auth.RoleContact), limited, h.handleListContactAlerts)
	}
}

func (h *Handlers) registerSystemRoutes(engine *gin.Engine) {
	engine.GET("/health", h.HealthCheck)

	if h.opts.Metrics != nil {
		engine.GET(h.opts.MetricsPath, gin.WrapH(h.opts.Metrics.Handler()))
	}
}

func (h *Handlers) registerRealtimeRoutes(engine *gin.Engine) {
	authed := middleware.Auth(h.opts.Issuer)
	if h.opts.WSHub != nil {
		websocket.RegisterRoutes(engine, websocket.NewHandler(h.opts.WSHub, channelOf), authed)
	}
	if h.opts.Events != nil {
		engine.GET("/sse", authed, func(c *gin.Context) {
			identity, _ := channelOf(c)
			h.opts.Events.Serve(c, identity)
		})
	}
}

func (h *Handlers) limited() gin.HandlerFunc {
	if h.opts.RateLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return h.opts.RateLimiter.Middleware()
}

// actorOf builds the acting identity from the verified token.
func actorOf(c *gin.Context) models.Actor {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return models.Actor{}
	}
	return models.Actor{
		ID:          claims.Identity(),
		Role:        models.Role(claims.Role),
		Name:        claims.Name,
		OwnerUserID: claims.Owner,
	}
}

func channelOf(c *gin.Context) (string, bool) {
	actor := actorOf(c)
	if actor.ID == "" {
		return "", false
	}
	return actor.Channel(), true
}
