package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"netmon/pkg/alerts"
	"netmon/pkg/database"
	"netmon/pkg/models"
	"netmon/pkg/scheduler"

	"github.com/gin-gonic/gin"
)

// DeviceLookup finds a device by a single column value.
type DeviceLookup interface {
	GetByField(ctx context.Context, field string, value any) (*models.Device, error)
}

// OpsHandler serves the fleet execution surface: pass control and history,
// per-device results, and alert queries.
type OpsHandler struct {
	sched        *scheduler.Scheduler
	passes       database.Repository[models.FleetPass]
	results      *database.ResultStore
	devices      DeviceLookup
	alertStore   *database.AlertStore
	evaluator    *alerts.Evaluator
	defaultLimit int
}

func NewOpsHandler(sched *scheduler.Scheduler, passes database.Repository[models.FleetPass], results *database.ResultStore, devices DeviceLookup, alertStore *database.AlertStore, evaluator *alerts.Evaluator, defaultLimit int) *OpsHandler {
	return &OpsHandler{
		sched:        sched,
		passes:       passes,
		results:      results,
		devices:      devices,
		alertStore:   alertStore,
		evaluator:    evaluator,
		defaultLimit: defaultLimit,
	}
}

// RegisterRoutes registers the operational routes
func (h *OpsHandler) RegisterRoutes(r *gin.RouterGroup) {
	fleet := r.Group("/fleet")
	{
		fleet.POST("/run", h.RunPass)
		fleet.GET("/status", h.SchedulerStatus)
		fleet.POST("/scheduler/start", h.StartScheduler)
		fleet.POST("/scheduler/stop", h.StopScheduler)
		fleet.GET("/passes", h.ListPasses)
		fleet.GET("/passes/:id", h.GetPass)
	}

	r.GET("/devices/:id/results", h.DeviceResults)
	// Static sibling of /devices: gin cannot mix a literal segment with
	// the :id wildcard under the same prefix.
	r.GET("/devices-by-ip/:ip", h.DeviceByIP)

	alertGroup := r.Group("/alerts")
	{
		alertGroup.GET("", h.ListAlerts)
		alertGroup.PUT("/:id/resolve", h.ResolveAlert)
	}
}

// RunRequest optionally overrides the configured command batch.
type RunRequest struct {
	Commands []string `json:"commands" binding:"omitempty,min=1,dive,devicecommand"`
}

// RunPass triggers an on-demand pass. A pass already in flight is not
// queued behind; the caller gets a conflict instead.
func (h *OpsHandler) RunPass(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	var err error
	if len(req.Commands) > 0 {
		err = h.sched.TriggerNowWith(req.Commands)
	} else {
		err = h.sched.TriggerNow()
	}
	if err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "pass started"})
}

// SchedulerStatus reports the scheduler state and counters
func (h *OpsHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sched.Status())
}

// StartScheduler resumes periodic passes after a stop
func (h *OpsHandler) StartScheduler(c *gin.Context) {
	if err := h.sched.Start(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyStarted) {
			respondError(c, http.StatusConflict, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, h.sched.Status())
}

// StopScheduler halts periodic passes. It waits for an in-flight pass to
// finish, so the response can lag by up to one pass duration.
func (h *OpsHandler) StopScheduler(c *gin.Context) {
	h.sched.Stop()
	c.JSON(http.StatusOK, h.sched.Status())
}

// ListPasses returns the recorded passes
func (h *OpsHandler) ListPasses(c *gin.Context) {
	passes, err := h.passes.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, passes)
}

// GetPass returns one pass with its per-device outcomes
func (h *OpsHandler) GetPass(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	pass, err := h.passes.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "record not found")
		return
	}
	c.JSON(http.StatusOK, pass)
}

// DeviceResults returns recent command results for a device, newest first
func (h *OpsHandler) DeviceResults(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	var since time.Time
	if raw := c.Query("lookback_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 1 {
			respondError(c, http.StatusBadRequest, "invalid lookback_hours")
			return
		}
		since = time.Now().Add(-time.Duration(hours) * time.Hour)
	}

	results, err := h.results.ListByDevice(c.Request.Context(), id, limit, since)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, results)
}

// DeviceByIP looks a device up by its management address, for operators
// correlating an IP seen elsewhere (syslog, flow data) with a descriptor
func (h *OpsHandler) DeviceByIP(c *gin.Context) {
	device, err := h.devices.GetByField(c.Request.Context(), "ip_address", c.Param("ip"))
	if err != nil {
		respondError(c, http.StatusNotFound, "record not found")
		return
	}
	c.JSON(http.StatusOK, device)
}

// ListAlerts returns alerts, unresolved by default
func (h *OpsHandler) ListAlerts(c *gin.Context) {
	resolved := false
	if raw := c.Query("resolved"); raw != "" {
		var err error
		resolved, err = strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid resolved flag")
			return
		}
	}

	list, err := h.alertStore.ListByResolved(c.Request.Context(), resolved)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, list)
}

// ResolveAlert marks an alert resolved and announces it to subscribers
func (h *OpsHandler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return
	}

	alert, err := h.evaluator.Resolve(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "record not found")
		return
	}
	c.JSON(http.StatusOK, alert)
}
