package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proactivedb/fleetmon/internal/middleware"
	"github.com/proactivedb/fleetmon/internal/monitoring/history"
	"github.com/proactivedb/fleetmon/internal/monitoring/ingest"
	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

type noopAlerts struct{}

func (noopAlerts) Process(ctx context.Context, targetID string, r *model.Report) {}

type testServer struct {
	router   *gin.Engine
	snaps    *store.MemorySnapshotStore
	series   *store.MemoryTimeSeriesStore
	settings *settings.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	snaps := store.NewMemorySnapshotStore()
	series := store.NewMemoryTimeSeriesStore()
	st := settings.NewStore(filepath.Join(t.TempDir(), "settings.yaml"))

	cfg := settings.Defaults()
	cfg.EmailSettings.Customers = []settings.Customer{
		{ID: "acme", Name: "Acme", Emails: []string{"dba@acme.example"},
			Databases: []settings.CustomerDatabase{{ID: "db-prod-01", Name: "ORCL"}}},
		{ID: "globex", Name: "Globex",
			Databases: []settings.CustomerDatabase{{ID: "db-glx-01", Name: "GLX"}}},
	}
	require.NoError(t, st.Save(cfg))

	router := gin.New()
	router.Use(middleware.RequestID)
	router.Use(middleware.SessionFromHeader)
	NewApi(router, Deps{
		Pipeline:      ingest.NewPipeline(snaps, series, noopAlerts{}, 24*time.Hour),
		Snapshots:     snaps,
		Assembler:     history.NewAssembler(series, 24*time.Hour),
		Settings:      st,
		StatusTimeout: 90 * time.Second,
	})
	return &testServer{router: router, snaps: snaps, series: series, settings: st}
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func reportBody(ts time.Time) string {
	return `{
	"id": "db-prod-01",
	"dbName": "ORCL",
	"timestamp": "` + ts.UTC().Format(time.RFC3339) + `",
	"dbIsUp": true,
	"dbStatus": "OPEN",
	"osIsUp": true,
	"kpis": {"cpuUsage": 20, "memoryUsage": 30, "activeSessions": 4},
	"current_performance": {"cpu": 20, "memory": 30, "io_read": 1, "io_write": 1, "network_up": 0.1, "network_down": 0.2, "active_sessions": 4}
}`
}

func TestPostReport(t *testing.T) {
	t.Run("AcceptedReportReturns201", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/v1/report", reportBody(time.Now()), nil)
		require.Equal(t, http.StatusCreated, w.Code)

		var ack ingest.Ack
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
		assert.Equal(t, "success", ack.Status)
		assert.Equal(t, "db-prod-01", ack.ID)
	})

	t.Run("MissingIdentityReturns400", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/v1/report", `{"dbName": "ORCL"}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Missing 'id' or 'timestamp' in payload", resp["error"])
	})

	t.Run("MalformedJSONReturns400", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/v1/report", `{{{`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ResponseCarriesRequestID", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/v1/report", reportBody(time.Now()), map[string]string{"X-Request-ID": "req-42"})
		assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	})
}

func TestGetTargetData(t *testing.T) {
	t.Run("UnknownTargetGetsDownShellNot404", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodGet, "/v1/data/db-brand-new", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data model.Report `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "db-brand-new", resp.Data.ID)
		assert.False(t, resp.Data.DBIsUp)
		assert.Equal(t, model.StatusUnknown, resp.Data.DBStatus)
	})

	t.Run("FreshReportServedWithHistory", func(t *testing.T) {
		ts := newTestServer(t)
		reportedAt := time.Now().UTC().Truncate(time.Second)
		require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/report", reportBody(reportedAt), nil).Code)

		w := ts.do(http.MethodGet, "/v1/data/db-prod-01", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data        model.Report `json:"data"`
			LastUpdated time.Time    `json:"last_updated"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ORCL", resp.Data.DBName)
		// last_updated reflects receipt, so it is current regardless of the
		// timestamp the agent declared
		assert.WithinDuration(t, time.Now(), resp.LastUpdated, time.Minute)
		assert.True(t, resp.Data.DBIsUp)
		// history series were injected
		require.NotNil(t, resp.Data.Performance)
		assert.Len(t, resp.Data.Performance.CPU, 1)
		assert.Len(t, resp.Data.ActiveSessionsHistory, 1)
	})

	t.Run("CustomerSessionCannotReadForeignTarget", func(t *testing.T) {
		ts := newTestServer(t)
		session := map[string]string{"X-Session": `{"username": "jo", "role": "customer", "customerIds": ["acme"]}`}
		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/data/db-prod-01", "", session).Code)
		assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/v1/data/db-glx-01", "", session).Code)
	})

	t.Run("StaleReportProjectedDown", func(t *testing.T) {
		ts := newTestServer(t)
		// a target whose last report arrived five minutes ago
		lastSeen := time.Now().UTC().Add(-5 * time.Minute)
		require.NoError(t, ts.snaps.Upsert(context.Background(), model.Snapshot{
			TargetID:    "db-prod-01",
			DBName:      "ORCL",
			LastUpdated: lastSeen,
			DBIsUp:      true,
			OSIsUp:      true,
			DBStatus:    "OPEN",
			Report:      &model.Report{ID: "db-prod-01", DBName: "ORCL", DBIsUp: true, OSIsUp: true, DBStatus: "OPEN"},
		}))

		w := ts.do(http.MethodGet, "/v1/data/db-prod-01", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data model.Report `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.DBIsUp)
		assert.Equal(t, model.StatusUnknown, resp.Data.DBStatus)
		// last reported payload still travels with the down projection
		assert.Equal(t, "ORCL", resp.Data.DBName)
	})
}

func TestGetFleetStatus(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/report", reportBody(time.Now()), nil).Code)

	w := ts.do(http.MethodGet, "/v1/data/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data map[string]map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Data, "db-prod-01")
	require.Contains(t, resp.Data, "db-glx-01")

	assert.Equal(t, true, resp.Data["db-prod-01"]["dbIsUp"])
	assert.Equal(t, "GLX", resp.Data["db-glx-01"]["dbName"])
	assert.Equal(t, model.StatusUnknown, resp.Data["db-glx-01"]["dbStatus"])
	assert.Equal(t, true, resp.Data["db-glx-01"]["stale"])
}

func TestGetOverview(t *testing.T) {
	t.Run("InternalCallerSeesEverything", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodGet, "/v1/overview", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 2)
	})

	t.Run("CustomerSessionSeesOnlyItsTargets", func(t *testing.T) {
		ts := newTestServer(t)
		session := `{"username": "jo", "role": "customer", "customerIds": ["acme"]}`
		w := ts.do(http.MethodGet, "/v1/overview", "", map[string]string{"X-Session": session})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "db-prod-01", resp.Data[0]["id"])
	})

	t.Run("AdminSessionSeesEverything", func(t *testing.T) {
		ts := newTestServer(t)
		session := `{"username": "root", "role": "admin"}`
		w := ts.do(http.MethodGet, "/v1/overview", "", map[string]string{"X-Session": session})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 2)
	})
}

func TestSettingsEndpoints(t *testing.T) {
	adminSession := map[string]string{"X-Session": `{"username": "root", "role": "admin"}`}
	customerSession := map[string]string{"X-Session": `{"username": "jo", "role": "customer", "customerIds": ["acme"]}`}

	t.Run("GetRequiresAdmin", func(t *testing.T) {
		ts := newTestServer(t)
		assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/v1/settings", "", customerSession).Code)
		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/settings", "", adminSession).Code)
	})

	t.Run("PutUpdatesLiveSettings", func(t *testing.T) {
		ts := newTestServer(t)
		updated := settings.Defaults()
		updated.DiskThreshold = 75
		body, err := json.Marshal(updated)
		require.NoError(t, err)

		w := ts.do(http.MethodPut, "/v1/settings", string(body), adminSession)
		require.Equal(t, http.StatusOK, w.Code)

		got, err := ts.settings.Load()
		require.NoError(t, err)
		assert.Equal(t, 75.0, got.DiskThreshold)
	})

	t.Run("PutRejectsNonAdmin", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPut, "/v1/settings", `{}`, customerSession)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("PutRejectsMalformedPayload", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(http.MethodPut, "/v1/settings", `not json`, adminSession)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
