package handlers

import (
	"net/http"

	"land_leads_app_go/config"
	"land_leads_app_go/middleware"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/leadform"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server groups everything the routes need
type Server struct {
	Config      *config.Config
	Leads       *LeadHandler
	Admin       *AdminHandler
	Registry    *campaigns.Registry
	Sessions    *leadform.Sessions
	FormLimiter *middleware.RateLimiter
	Monitor     *services.SecurityMonitor
	Logger      *zap.Logger
}

// Register mounts the public API, the admin routes (when an admin hash is configured),
// health and metrics on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api", middleware.APISecurityHeaders())
	{
		api.GET("/campaigns", s.Leads.ListCampaigns)
		api.GET("/campaigns/:campaign/form", s.Leads.GetForm)
		api.POST("/campaigns/:campaign/validate", s.Leads.Validate)
		api.GET("/campaigns/:campaign/forms/:formID", s.Leads.GetFormState)

		submit := []echo.MiddlewareFunc{}
		if s.FormLimiter != nil {
			submit = append(submit, s.FormLimiter.Middleware())
		}
		api.POST("/campaigns/:campaign/forms/:formID/submit", s.Leads.Submit, submit...)
	}

	if s.Config.AdminEnabled() {
		admin := e.Group("/admin",
			middleware.RequireAdmin(s.Config.AdminUser, s.Config.AdminPasswordHash, s.trackAdminFailure),
			middleware.AdminAudit(s.Logger),
			middleware.APISecurityHeaders(),
		)
		{
			admin.GET("/campaigns/:campaign/inquiries", s.Admin.ListInquiries)
			admin.GET("/campaigns/:campaign/inquiries.xlsx", s.Admin.ExportInquiries)
			admin.POST("/campaigns/:campaign/archives", s.Admin.CreateArchive)
			admin.GET("/archives/*", s.Admin.DownloadArchive)
			admin.GET("/security/alerts", s.SecurityAlerts)
		}
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	Campaigns   int    `json:"campaigns"`
	ActiveForms int    `json:"active_forms"`
}

// Health reports liveness and a little state
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Campaigns:   len(s.Registry.List()),
		ActiveForms: s.Sessions.Len(),
	})
}

func (s *Server) trackAdminFailure(c echo.Context) {
	if s.Monitor != nil {
		s.Monitor.TrackFailure(c.RealIP(), services.FailureAdminAuth)
	}
}

// SecurityAlerts lists recent alerts for repeated captcha or login failures
func (s *Server) SecurityAlerts(c echo.Context) error {
	alerts := []services.SecurityAlert{}
	if s.Monitor != nil {
		alerts = s.Monitor.RecentAlerts()
	}
	return c.JSON(http.StatusOK, alerts)
}
