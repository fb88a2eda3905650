// Package api is the HTTP boundary of the monitoring service: the agent
// report endpoint plus the dashboard read endpoints.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proactivedb/fleetmon/internal/monitoring/history"
	"github.com/proactivedb/fleetmon/internal/monitoring/ingest"
	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

type Api struct {
	pipeline      *ingest.Pipeline
	snapshots     store.SnapshotStore
	assembler     *history.Assembler
	settings      *settings.Store
	statusTimeout time.Duration
	now           func() time.Time
}

type Deps struct {
	Pipeline      *ingest.Pipeline
	Snapshots     store.SnapshotStore
	Assembler     *history.Assembler
	Settings      *settings.Store
	StatusTimeout time.Duration
}

func NewApi(router *gin.Engine, deps Deps) *Api {
	api := &Api{
		pipeline:      deps.Pipeline,
		snapshots:     deps.Snapshots,
		assembler:     deps.Assembler,
		settings:      deps.Settings,
		statusTimeout: deps.StatusTimeout,
		now:           time.Now,
	}
	if api.statusTimeout <= 0 {
		api.statusTimeout = model.DefaultStatusTimeout
	}
	api.setupRouters(router)
	return api
}

func (api *Api) setupRouters(router *gin.Engine) {
	router.POST("/v1/report", api.PostReport)
	router.GET("/v1/data/status", api.GetFleetStatus)
	router.GET("/v1/data/:serverID", api.GetTargetData)
	router.GET("/v1/overview", api.GetOverview)
	router.GET("/v1/settings", api.GetSettings)
	router.PUT("/v1/settings", api.PutSettings)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
