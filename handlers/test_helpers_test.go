package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"land_leads_app_go/config"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/leadform"
	"land_leads_app_go/services/queue"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	e        *echo.Echo
	cfg      *config.Config
	registry *campaigns.Registry
	sessions *leadform.Sessions
	store    *queue.Store
	leads    *LeadHandler
	monitor  *services.SecurityMonitor
	admin    *AdminHandler
}

func setupServer(t *testing.T, cfg *config.Config, submitter leadform.Submitter) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{Environment: "test"}
	}

	registry, err := campaigns.NewRegistry("", nil)
	require.NoError(t, err)

	sessions := leadform.NewSessions(time.Minute, 50*time.Millisecond)
	t.Cleanup(sessions.Close)

	store := queue.NewStore(queue.NewMemoryBackend(), nil)
	pipeline := leadform.NewPipeline(submitter, store)

	monitor := services.NewSecurityMonitor(nil)
	storage := services.NewLocalStorage(t.TempDir())
	srv := &Server{
		Config:   cfg,
		Leads:    NewLeadHandler(cfg, registry, sessions, pipeline, monitor, nil),
		Admin:    NewAdminHandler(registry, store, storage, nil),
		Registry: registry,
		Sessions: sessions,
		Monitor:  monitor,
	}

	e := newEcho()
	srv.Register(e)

	return &testEnv{e: e, cfg: cfg, registry: registry, sessions: sessions, store: store, leads: srv.Leads, monitor: monitor, admin: srv.Admin}
}

func (env *testEnv) do(method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	return env.doContext(context.Background(), method, path, body, header)
}

func (env *testEnv) doContext(ctx context.Context, method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body).WithContext(ctx)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) postJSON(path string, v any) *httptest.ResponseRecorder {
	return env.doContext(context.Background(), http.MethodPost, path, jsonBody(v), jsonHeader())
}

func jsonBody(v any) io.Reader {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return strings.NewReader(string(data))
}

func jsonHeader() http.Header {
	return http.Header{echo.HeaderContentType: {echo.MIMEApplicationJSON}}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func validLead() map[string]any {
	return map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     "jane@example.com",
		"phone":     "(512) 555-0100",
		"county":    "Travis",
		"acreage":   12.5,
		"timeframe": "3-months",
	}
}

const testFormID = "0190f5b2-7c3a-7d4e-8f00-123456789abc"

func submitPath(campaign, formID string) string {
	return "/api/campaigns/" + campaign + "/forms/" + formID + "/submit"
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}
