package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tenantbot/internal/config"
	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
	"tenantbot/internal/usecases"
)

type Handler struct {
	registry *usecases.Registry
	energy   *usecases.EnergyService
	rules    *usecases.RuleService
	monitor  *usecases.ProfileMonitor
	tenants  interfaces.TenantStore
	log      *zap.Logger
}

// Deps is everything the control surface talks to.
type Deps struct {
	Registry *usecases.Registry
	Energy   *usecases.EnergyService
	Rules    *usecases.RuleService
	Monitor  *usecases.ProfileMonitor
	Tenants  interfaces.TenantStore
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		registry: deps.Registry,
		energy:   deps.Energy,
		rules:    deps.Rules,
		monitor:  deps.Monitor,
		tenants:  deps.Tenants,
		log:      deps.Log.Named("http"),
	}
}

func SetupRoutes(r *gin.Engine, deps Deps, middleware *Middleware, cfg config.ServerConfig) {
	h := NewHandler(deps)

	// Apply Security Middleware
	r.Use(middleware.RequestLogger())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20))
	r.Use(middleware.CORSMiddleware())

	// Public Routes
	r.GET("/healthz", h.Health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Protected Tenant Routes
	tenant := r.Group("/api/tenants/:id")
	tenant.Use(middleware.AuthRequired())
	tenant.Use(middleware.RateLimitPerUser(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	tenant.Use(middleware.TenantScope())
	{
		session := tenant.Group("/session")
		session.GET("", h.GetSessionStatus)
		session.GET("/qr", h.GetQRCode)
		session.POST("/code", h.RequestCode)
		session.POST("/submit-code", h.SubmitCode)
		session.POST("/submit-password", h.SubmitPassword)
		session.POST("/restore", h.RestoreSession)
		session.POST("/disconnect", h.DisconnectSession)

		tenant.GET("", h.GetTenant)
		tenant.GET("/energy", h.GetEnergy)
		tenant.GET("/profile", h.GetProfileStatus)

		rules := tenant.Group("/rules")
		rules.GET("/badwords", h.ListBadwords)
		rules.GET("/redactions", h.ListRedactions)
		rules.GET("/whitelist", h.ListWhitelist)
		rules.GET("/costs", h.ListEnergyCosts)
		rules.GET("/autocorrect", h.GetAutocorrect)
		rules.GET("/notices", h.ListNotices)
		rules.GET("/chat-scope", h.GetChatScope)
		rules.GET("/protection", h.GetProtection)
	}

	// Admin-only Routes: anything that changes a tenant's constraints
	admin := r.Group("/api/tenants/:id")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.AdminRequired())
	admin.Use(middleware.TenantScope())
	{
		admin.POST("/energy/add", h.AddEnergy)
		admin.POST("/energy/remove", h.RemoveEnergy)
		admin.POST("/energy/set", h.SetEnergy)
		admin.POST("/energy/max", h.SetMaxEnergy)
		admin.POST("/energy/rate", h.SetRechargeRate)

		admin.POST("/profile/unlock", h.UnlockProfile)
		admin.POST("/profile/baseline", h.SaveBaseline)

		rules := admin.Group("/rules")
		rules.POST("/badwords", h.UpsertBadwords)
		rules.DELETE("/badwords/:rid", h.DeleteBadword)
		rules.POST("/redactions", h.UpsertRedactions)
		rules.DELETE("/redactions/:rid", h.DeleteRedaction)
		rules.POST("/whitelist", h.UpsertWhitelist)
		rules.DELETE("/whitelist/:rid", h.DeleteWhitelist)
		rules.PUT("/costs", h.SetEnergyCosts)
		rules.POST("/costs/seed", h.SeedDefaultCosts)
		rules.DELETE("/costs/:type", h.DeleteEnergyCost)
		rules.PUT("/autocorrect", h.SetAutocorrect)
		rules.POST("/notices", h.UpsertNotice)
		rules.DELETE("/notices/:rid", h.DeleteNotice)
		rules.PUT("/chat-scope", h.SetChatScope)
		rules.PUT("/protection", h.SetProtection)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) GetTenant(c *gin.Context) {
	t, err := h.tenants.GetTenant(c.Request.Context(), tenantFrom(c))
	if err == nil && t == nil {
		err = entities.ErrTenantNotFound
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": t, "session": h.registry.Status(t.ID)})
}

// ========================================
// Session Handlers
// ========================================

func (h *Handler) GetSessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Status(tenantFrom(c)))
}

func (h *Handler) RequestCode(c *gin.Context) {
	delivery, err := h.registry.RequestCode(c.Request.Context(), tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

func (h *Handler) SubmitCode(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if !ValidCode(req.Code) {
		badRequest(c, "Invalid code format")
		return
	}

	state, err := h.registry.SubmitCode(c.Request.Context(), tenantFrom(c), req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_state": state})
}

func (h *Handler) SubmitPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if !ValidateLength(req.Password, 1, MaxPasswordLength) {
		badRequest(c, "Invalid password")
		return
	}

	if err := h.registry.SubmitPassword(c.Request.Context(), tenantFrom(c), req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.registry.Status(tenantFrom(c)))
}

func (h *Handler) RestoreSession(c *gin.Context) {
	ok, err := h.registry.Restore(c.Request.Context(), tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": ok, "session": h.registry.Status(tenantFrom(c))})
}

func (h *Handler) DisconnectSession(c *gin.Context) {
	if err := h.registry.Remove(c.Request.Context(), tenantFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

// GetQRCode returns the pending pairing QR as PNG
func (h *Handler) GetQRCode(c *gin.Context) {
	payload, err := h.registry.QRCode(tenantFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if payload == "" {
		c.JSON(http.StatusAccepted, gin.H{"status": "QR code not yet available. Please wait..."})
		return
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
