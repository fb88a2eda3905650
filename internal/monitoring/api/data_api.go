package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/middleware"
	"github.com/proactivedb/fleetmon/internal/monitoring/model"
)

// GetTargetData returns the full projected report for one target, with the
// reconstructed 24h performance series injected. Unknown targets get a
// down/UNKNOWN shell rather than a 404: the dashboard renders configured
// targets before their first report arrives.
func (api *Api) GetTargetData(c *gin.Context) {
	targetID := c.Param("serverID")
	ctx := c.Request.Context()
	now := api.now().UTC()

	session := middleware.GetSession(c)
	if !session.IsAdmin() {
		cfg, err := api.settings.Load()
		if err != nil {
			log.Error().Err(err).Msg("load settings failed")
		}
		customer, owned := cfg.CustomerFor(targetID)
		if !owned || !session.CanSeeCustomer(customer.ID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "target not in your scope"})
			return
		}
	}

	snap, _, err := api.snapshots.Get(ctx, targetID)
	if err != nil {
		log.Error().Err(err).Str("target", targetID).Msg("snapshot read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load target data"})
		return
	}
	snap = snap.Projected(now, api.statusTimeout)

	report := snap.Report.Clone()
	if report == nil {
		report = &model.Report{ID: targetID, DBName: targetID, DBStatus: model.StatusUnknown}
	}

	view, sessions, waits, err := api.assembler.View(ctx, targetID)
	if err != nil {
		// the snapshot alone is still useful; serve it without history
		log.Error().Err(err).Str("target", targetID).Msg("history assembly failed")
	} else {
		report.Performance = view
		report.ActiveSessionsHistory = sessions
		report.TopWaitEvents = waitEventsForReport(waits)
	}

	c.JSON(http.StatusOK, gin.H{
		"data":         report,
		"last_updated": snap.LastUpdated,
	})
}

// GetFleetStatus returns the projected up/down state of every configured
// target, keyed by target id.
func (api *Api) GetFleetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	now := api.now().UTC()

	cfg, err := api.settings.Load()
	if err != nil {
		log.Error().Err(err).Msg("load settings failed")
	}

	out := make(map[string]gin.H)
	for _, target := range cfg.ConfiguredTargets() {
		snap, found, err := api.snapshots.Get(ctx, target.ID)
		if err != nil {
			log.Error().Err(err).Str("target", target.ID).Msg("snapshot read failed")
			continue
		}
		if !found {
			snap = model.EmptySnapshot(target.ID, now)
			if target.DBName != "" {
				snap.DBName = target.DBName
			}
		}
		snap = snap.Projected(now, api.statusTimeout)
		out[target.ID] = gin.H{
			"dbName":       snap.DBName,
			"dbIsUp":       snap.DBIsUp,
			"osIsUp":       snap.OSIsUp,
			"dbStatus":     snap.DBStatus,
			"last_updated": snap.LastUpdated,
			"stale":        !found || snap.Stale(now, api.statusTimeout),
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GetOverview returns summary cards for every target the caller may see.
// Non-admin sessions are limited to targets of their own customers.
func (api *Api) GetOverview(c *gin.Context) {
	ctx := c.Request.Context()
	now := api.now().UTC()
	session := middleware.GetSession(c)

	cfg, err := api.settings.Load()
	if err != nil {
		log.Error().Err(err).Msg("load settings failed")
	}

	overview := make([]gin.H, 0)
	for _, target := range cfg.ConfiguredTargets() {
		customer, owned := cfg.CustomerFor(target.ID)
		if !session.IsAdmin() {
			if !owned || !session.CanSeeCustomer(customer.ID) {
				continue
			}
		}

		snap, found, err := api.snapshots.Get(ctx, target.ID)
		if err != nil {
			log.Error().Err(err).Str("target", target.ID).Msg("snapshot read failed")
			continue
		}
		if !found {
			snap = model.EmptySnapshot(target.ID, now)
			if target.DBName != "" {
				snap.DBName = target.DBName
			}
		}
		snap = snap.Projected(now, api.statusTimeout)

		entry := gin.H{
			"id":           snap.TargetID,
			"dbName":       snap.DBName,
			"customerName": customer.Name,
			"dbIsUp":       snap.DBIsUp,
			"osIsUp":       snap.OSIsUp,
			"dbStatus":     snap.DBStatus,
			"last_updated": snap.LastUpdated,
		}
		if snap.Report != nil {
			entry["kpis"] = snap.Report.Kpis
		}
		overview = append(overview, entry)
	}

	c.JSON(http.StatusOK, gin.H{"data": overview})
}

func waitEventsForReport(series []model.WaitEventSeries) []model.WaitEvent {
	out := make([]model.WaitEvent, 0, len(series))
	for _, s := range series {
		out = append(out, model.WaitEvent{
			Event: s.Event,
			Value: model.FlexFloat(s.Total),
			Data:  s.Data,
		})
	}
	return out
}
