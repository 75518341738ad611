package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"land_leads_app_go/config"
	"land_leads_app_go/models"
	"land_leads_app_go/services"
	"land_leads_app_go/services/leadform"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

func adminConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{AdminUser: "admin", AdminPasswordHash: string(hash)}
}

func adminHeader() http.Header {
	return http.Header{echo.HeaderAuthorization: {"Basic " + base64.StdEncoding.EncodeToString([]byte("admin:letmein"))}}
}

func seedQueue(t *testing.T, env *testEnv) []models.SubmissionRecord {
	t.Helper()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := models.NewSubmissionRecord("rec-1", "texas-land", map[string]string{"firstName": "Jane", "email": "jane@example.com"}, at)
	second := models.NewSubmissionRecord("rec-2", "texas-land", map[string]string{"firstName": "John", "email": "john@example.com"}, at.Add(time.Minute))
	env.store.Append(context.Background(), "texas-land", first)
	env.store.Append(context.Background(), "texas-land", second)
	return []models.SubmissionRecord{second, first}
}

func TestAdminRoutesAbsentWithoutHash(t *testing.T) {
	env := setupServer(t, &config.Config{AdminUser: "admin"}, leadform.SimulatedSubmitter{})

	rec := env.do(http.MethodGet, "/admin/campaigns/texas-land/inquiries", nil, adminHeader())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRequiresCredentials(t *testing.T) {
	env := setupServer(t, adminConfig(t), leadform.SimulatedSubmitter{})

	rec := env.do(http.MethodGet, "/admin/campaigns/texas-land/inquiries", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad := http.Header{echo.HeaderAuthorization: {"Basic " + base64.StdEncoding.EncodeToString([]byte("admin:wrong"))}}
	rec = env.do(http.MethodGet, "/admin/campaigns/texas-land/inquiries.xlsx", nil, bad)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminListInquiries(t *testing.T) {
	env := setupServer(t, adminConfig(t), leadform.SimulatedSubmitter{})
	want := seedQueue(t, env)

	rec := env.do(http.MethodGet, "/admin/campaigns/texas-land/inquiries", nil, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[inquiriesResponse](t, rec)
	assert.Equal(t, "texas-land_inquiries", got.QueueKey)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Inquiries, 2)
	assert.Equal(t, want[0].ID, got.Inquiries[0].ID, "newest first")
	assert.Equal(t, want[1].Fields, got.Inquiries[1].Fields)

	rec = env.do(http.MethodGet, "/admin/campaigns/arizona-land/inquiries", nil, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"campaign":"arizona-land","queue_key":"arizona-land_inquiries","count":0,"inquiries":[]}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/admin/campaigns/ohio-land/inquiries", nil, adminHeader())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminExportInquiries(t *testing.T) {
	env := setupServer(t, adminConfig(t), leadform.SimulatedSubmitter{})
	seedQueue(t, env)

	rec := env.do(http.MethodGet, "/admin/campaigns/texas-land/inquiries.xlsx", nil, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.XLSXContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename="texas-land_inquiries_`)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("texas-land")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "rec-2", rows[1][0])
	assert.Equal(t, "rec-1", rows[2][0])
}

type linkedStorage struct{ *services.LocalStorage }

func (linkedStorage) GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return "https://archive.example.com/" + key, nil
}

func TestAdminArchiveStreamsLocalArchives(t *testing.T) {
	env := setupServer(t, adminConfig(t), leadform.SimulatedSubmitter{})
	seedQueue(t, env)

	rec := env.do(http.MethodPost, "/admin/campaigns/texas-land/archives", nil, adminHeader())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[archiveResponse](t, rec)
	assert.Equal(t, "texas-land", got.Campaign)
	assert.Equal(t, 2, got.Count)
	assert.Positive(t, got.FileSize)
	assert.Equal(t, "/admin/archives/"+got.Key, got.DownloadURL)

	rec = env.do(http.MethodGet, got.DownloadURL, nil, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.XLSXContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "texas-land_inquiries_")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("texas-land")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rec = env.do(http.MethodGet, "/admin/archives/archives/texas-land/missing.xlsx", nil, adminHeader())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/admin/archives/uploads/texas-land/export.xlsx", nil, adminHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/admin/campaigns/ohio-land/archives", nil, adminHeader())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminArchiveRedirectsToSignedLink(t *testing.T) {
	env := setupServer(t, adminConfig(t), leadform.SimulatedSubmitter{})
	env.admin.storage = linkedStorage{services.NewLocalStorage(t.TempDir())}
	seedQueue(t, env)

	rec := env.do(http.MethodPost, "/admin/campaigns/texas-land/archives", nil, adminHeader())
	require.Equal(t, http.StatusCreated, rec.Code)
	got := decode[archiveResponse](t, rec)
	assert.Equal(t, "https://archive.example.com/"+got.Key, got.DownloadURL)

	rec = env.do(http.MethodGet, "/admin/archives/"+got.Key, nil, adminHeader())
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, got.DownloadURL, rec.Header().Get(echo.HeaderLocation))
}

func TestAdminArchiveWithoutStorage(t *testing.T) {
	env := setupServer(t, adminConfig(t), leadform.SimulatedSubmitter{})
	env.admin.storage = nil

	rec := env.do(http.MethodPost, "/admin/campaigns/texas-land/archives", nil, adminHeader())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(http.MethodGet, "/admin/archives/archives/texas-land/export.xlsx", nil, adminHeader())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminSecurityAlerts(t *testing.T) {
	cfg := adminConfig(t)
	cfg.TurnstileSecretKey = "secret"
	env := setupServer(t, cfg, leadform.SimulatedSubmitter{})
	env.leads.verifyCaptcha = func(ctx context.Context, token, secret, ip string) (bool, error) {
		return false, nil
	}

	header := jsonHeader()
	header.Set(TurnstileHeader, "forged")
	for i := 0; i < 5; i++ {
		rec := env.doContext(context.Background(), http.MethodPost, submitPath("texas-land", testFormID), jsonBody(validLead()), header)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	bad := http.Header{echo.HeaderAuthorization: {"Basic " + base64.StdEncoding.EncodeToString([]byte("admin:guess"))}}
	for i := 0; i < 5; i++ {
		env.do(http.MethodGet, "/admin/security/alerts", nil, bad)
	}

	rec := env.do(http.MethodGet, "/admin/security/alerts", nil, adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)

	alerts := decode[[]services.SecurityAlert](t, rec)
	require.Len(t, alerts, 2)
	assert.Equal(t, services.FailureAdminAuth, alerts[0].Kind)
	assert.Equal(t, services.FailureCaptcha, alerts[1].Kind)
	assert.Equal(t, "192.0.2.1", alerts[1].IP)
}
