package api

import (
	"context"
	"encoding/json"
	"expiry-monitor/internal/config"
	"expiry-monitor/internal/database"
	"expiry-monitor/internal/metrics"
	"expiry-monitor/internal/models"
	"expiry-monitor/internal/scheduler"
	"expiry-monitor/internal/services"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
)

type staticProber map[string]int

func (p staticProber) Probe(_ context.Context, domain string) models.ExpiryResult {
	if d, ok := p[domain]; ok {
		return models.Days(d, time.Now().Add(time.Duration(d)*24*time.Hour))
	}
	return models.Failed(&services.ProbeError{Probe: "static", Domain: domain, Err: context.DeadlineExceeded})
}

type testEnv struct {
	router  *gin.Engine
	monitor *services.MonitorService
	release chan struct{}
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	monitor := services.NewMonitorService(
		staticProber{"example.com": 400},
		staticProber{"example.com": 30},
		nil,
		metrics.NewCollector(reg),
		7,
		logger,
	)

	release := make(chan struct{})
	sched, err := scheduler.NewScheduler("09:00", time.Second, func(ctx context.Context) error {
		<-release
		return nil
	}, logger)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}

	var store *database.SettingsStore
	if withStore {
		db, err := database.Open(&config.DatabaseConfig{Path: ":memory:"})
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		store = database.NewSettingsStore(db)
		t.Cleanup(func() { store.Close() })
	}

	handler := NewHandler(context.Background(), monitor, sched, store)
	env := &testEnv{
		router:  NewRouter("test", handler, reg, logger),
		monitor: monitor,
		release: release,
	}
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetReport(t *testing.T) {
	env := newTestEnv(t, false)

	if w := env.do(http.MethodGet, "/api/v1/report", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first cycle, got %d", w.Code)
	}

	if _, err := env.monitor.RunCycle(context.Background(), []string{"example.com", "bad.invalid"}); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	w := env.do(http.MethodGet, "/api/v1/report", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Domains []struct {
			Domain       string `json:"domain"`
			Registration struct {
				DaysRemaining *int   `json:"days_remaining"`
				Error         string `json:"error"`
			} `json:"registration"`
		} `json:"domains"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(resp.Domains))
	}
	if d := resp.Domains[0].Registration.DaysRemaining; d == nil || *d != 400 {
		t.Fatalf("unexpected registration days %v", d)
	}
	if resp.Domains[1].Registration.DaysRemaining != nil || resp.Domains[1].Registration.Error == "" {
		t.Fatalf("expected failed registration for bad.invalid")
	}
	if !strings.Contains(resp.Text, models.FetchFailed) {
		t.Fatalf("expected rendered text, got %q", resp.Text)
	}
}

func TestTriggerCheckRejectsOverlap(t *testing.T) {
	env := newTestEnv(t, false)

	if w := env.do(http.MethodPost, "/api/v1/check", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/check", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", w.Code)
	}

	w := env.do(http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"state":"running"`) {
		t.Fatalf("unexpected health %d %s", w.Code, w.Body.String())
	}
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	if w := env.do(http.MethodPut, "/api/v1/settings", `{"server.port":"1"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown key, got %d", w.Code)
	}
	if w := env.do(http.MethodPut, "/api/v1/settings", `{"monitor.run_at":"9pm"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad run_at, got %d", w.Code)
	}
	if w := env.do(http.MethodPut, "/api/v1/settings", `{"monitor.run_at":"08:15","monitor.alert_days":"14"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w := env.do(http.MethodGet, "/api/v1/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var settings map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if settings["monitor.run_at"] != "08:15" || settings["monitor.alert_days"] != "14" {
		t.Fatalf("unexpected settings %v", settings)
	}
}

func TestSettingsDisabled(t *testing.T) {
	env := newTestEnv(t, false)

	if w := env.do(http.MethodGet, "/api/v1/settings", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false)
	if _, err := env.monitor.RunCycle(context.Background(), []string{"example.com"}); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	w := env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `expiry_monitor_certificate_days_left{domain="example.com"} 30`) {
		t.Fatalf("missing certificate gauge:\n%s", w.Body.String())
	}
}
