package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"netmon/pkg/models"
	"netmon/pkg/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeviceLookup struct {
	devices map[string]*models.Device
}

func (f *fakeDeviceLookup) GetByField(ctx context.Context, field string, value any) (*models.Device, error) {
	if device, ok := f.devices[fmt.Sprint(value)]; ok {
		return device, nil
	}
	return nil, fmt.Errorf("record not found")
}

func opsRouter(t *testing.T, h *OpsHandler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestDeviceByIP(t *testing.T) {
	lookup := &fakeDeviceLookup{devices: map[string]*models.Device{
		"10.0.0.5": {ID: 5, Hostname: "core-sw-1", IPAddress: "10.0.0.5"},
	}}
	h := &OpsHandler{
		sched:   scheduler.New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {}),
		devices: lookup,
	}
	router := opsRouter(t, h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices-by-ip/10.0.0.5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "core-sw-1")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices-by-ip/10.9.9.9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchedulerControlAndOnDemandRun(t *testing.T) {
	ran := make(chan string, 4)
	sched := scheduler.New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {
		ran <- trigger
	})
	h := &OpsHandler{sched: sched}
	router := opsRouter(t, h)

	post := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		return rec
	}

	require.Equal(t, http.StatusOK, post("/api/v1/fleet/scheduler/start").Code)
	assert.Equal(t, http.StatusConflict, post("/api/v1/fleet/scheduler/start").Code,
		"a second start must report the running loop")
	require.Equal(t, http.StatusOK, post("/api/v1/fleet/scheduler/stop").Code)

	// A quick check stays available while the tick loop is stopped.
	require.Equal(t, http.StatusAccepted, post("/api/v1/fleet/run").Code)
	select {
	case trigger := <-ran:
		assert.Equal(t, "manual", trigger)
	case <-time.After(2 * time.Second):
		t.Fatal("on-demand pass never ran with the scheduler stopped")
	}

	require.Equal(t, http.StatusOK, post("/api/v1/fleet/scheduler/start").Code)
	sched.Stop()
}
