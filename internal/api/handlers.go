package api

import (
	"context"
	"errors"
	"expiry-monitor/internal/config"
	"expiry-monitor/internal/database"
	"expiry-monitor/internal/models"
	"expiry-monitor/internal/scheduler"
	"expiry-monitor/internal/services"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler holds service dependencies
type Handler struct {
	monitorService *services.MonitorService
	scheduler      *scheduler.Scheduler
	settings       *database.SettingsStore // nil when the store is disabled
	ctx            context.Context
}

// NewHandler creates a new API handler. ctx bounds cycles started through
// the API.
func NewHandler(ctx context.Context, monitorService *services.MonitorService, sched *scheduler.Scheduler, settings *database.SettingsStore) *Handler {
	return &Handler{
		monitorService: monitorService,
		scheduler:      sched,
		settings:       settings,
		ctx:            ctx,
	}
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, handler *Handler, gatherer prometheus.Gatherer) {
	r.GET("/healthz", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		api.GET("/report", handler.GetReport)
		api.POST("/check", handler.TriggerCheck)

		// Configuration overrides
		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings", handler.UpdateSettings)
	}
}

// Health reports the scheduler state
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{
		"status":   "ok",
		"state":    h.scheduler.State().String(),
		"next_run": h.scheduler.NextRun(),
	}
	if last := h.scheduler.LastRun(); !last.IsZero() {
		resp["last_run"] = last
	}
	c.JSON(http.StatusOK, resp)
}

type resultView struct {
	DaysRemaining *int       `json:"days_remaining"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type domainView struct {
	Domain       string     `json:"domain"`
	Registration resultView `json:"registration"`
	Certificate  resultView `json:"certificate"`
}

func viewResult(res models.ExpiryResult) resultView {
	v := resultView{DaysRemaining: res.DaysRemaining}
	if !res.ExpiresAt.IsZero() {
		at := res.ExpiresAt
		v.ExpiresAt = &at
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

// GetReport returns the last report built by this process
func (h *Handler) GetReport(c *gin.Context) {
	report := h.monitorService.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No report yet"})
		return
	}

	domains := make([]domainView, 0, len(report.Domains))
	for _, d := range report.Domains {
		domains = append(domains, domainView{
			Domain:       d.Domain,
			Registration: viewResult(d.Registration),
			Certificate:  viewResult(d.Certificate),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         report.ID,
		"checked_at": report.CheckedAt,
		"alert_days": h.monitorService.AlertDays(),
		"domains":    domains,
		"text":       report.Render(h.monitorService.AlertDays()),
	})
}

// TriggerCheck starts a cycle outside the daily schedule
func (h *Handler) TriggerCheck(c *gin.Context) {
	if err := h.scheduler.Trigger(h.ctx); err != nil {
		if errors.Is(err, scheduler.ErrCycleRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Check started"})
}

// GetSettings retrieves the stored configuration overrides
func (h *Handler) GetSettings(c *gin.Context) {
	if h.settings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": database.ErrDisabled.Error()})
		return
	}

	settings, err := h.settings.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings stores configuration overrides, applied on next start
func (h *Handler) UpdateSettings(c *gin.Context) {
	if h.settings == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": database.ErrDisabled.Error()})
		return
	}

	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	allowed := make(map[string]bool, len(config.SettingKeys))
	for _, key := range config.SettingKeys {
		allowed[key] = true
	}
	for key, value := range values {
		if !allowed[key] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown setting: " + key})
			return
		}
		if key == "monitor.run_at" {
			if _, _, err := config.ParseRunAt(value); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
	}

	if err := h.settings.Put(values); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Settings saved, restart to apply"})
}
