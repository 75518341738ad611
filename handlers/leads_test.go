package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"land_leads_app_go/config"
	"land_leads_app_go/models"
	"land_leads_app_go/services/leadform"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCampaigns(t *testing.T) {
	env := setupServer(t, nil, leadform.SimulatedSubmitter{})

	rec := env.do(http.MethodGet, "/api/campaigns", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]campaignResponse](t, rec)
	require.Len(t, list, 4)
	assert.Equal(t, "arizona-land", list[0].Slug)
	assert.Equal(t, campaignResponse{Slug: "texas-land", Title: "Sell Your Texas Land Fast", State: "TX"}, list[3])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestGetForm(t *testing.T) {
	cfg := &config.Config{TurnstileSiteKey: "site-key"}
	env := setupServer(t, cfg, leadform.SimulatedSubmitter{})

	t.Run("KnownCampaign", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/campaigns/texas-land/form", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		form := decode[formResponse](t, rec)
		_, err := uuid.Parse(form.FormID)
		assert.NoError(t, err)
		assert.Equal(t, "site-key", form.TurnstileSiteKey)
		assert.Equal(t, "TX", form.Campaign.State)
		require.Len(t, form.Fields, 8)
		assert.Equal(t, "firstName", form.Fields[0].Name)
		assert.Equal(t, "First Name", form.Fields[0].Label)
		assert.True(t, form.Fields[0].Required)
		assert.Equal(t, 2, form.Fields[0].MinLength)
		assert.Equal(t, `^\d+(\.\d+)?$`, form.Fields[5].Pattern)
		assert.Equal(t, []string{"asap", "3-months", "6-months", "exploring"}, form.Fields[6].Values)
		assert.Equal(t, "asap", form.Defaults["timeframe"])
		assert.Equal(t, "", form.Defaults["firstName"])
	})

	t.Run("FreshFormIDs", func(t *testing.T) {
		a := decode[formResponse](t, env.do(http.MethodGet, "/api/campaigns/quick-offer/form", nil, nil))
		b := decode[formResponse](t, env.do(http.MethodGet, "/api/campaigns/quick-offer/form", nil, nil))
		assert.NotEqual(t, a.FormID, b.FormID)
	})

	t.Run("UnknownCampaign", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/campaigns/ohio-land/form", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestValidate(t *testing.T) {
	env := setupServer(t, nil, leadform.SimulatedSubmitter{})

	t.Run("AllFieldsValid", func(t *testing.T) {
		rec := env.postJSON("/api/campaigns/texas-land/validate", validLead())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, validateResponse{Valid: true}, decode[validateResponse](t, rec))
	})

	t.Run("EmptyFormListsRequiredFields", func(t *testing.T) {
		rec := env.postJSON("/api/campaigns/texas-land/validate", map[string]any{})
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[validateResponse](t, rec)
		assert.False(t, got.Valid)
		assert.Contains(t, got.Errors, "firstName")
		assert.Contains(t, got.Errors, "email")
		assert.Contains(t, got.Errors, "timeframe")
		assert.NotContains(t, got.Errors, "county")
	})

	t.Run("SingleField", func(t *testing.T) {
		rec := env.postJSON("/api/campaigns/texas-land/validate?field=email", map[string]any{"email": "nope", "firstName": ""})
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[validateResponse](t, rec)
		assert.False(t, got.Valid)
		assert.Len(t, got.Errors, 1)
		assert.Contains(t, got.Errors, "email")

		rec = env.postJSON("/api/campaigns/texas-land/validate?field=county", map[string]any{})
		assert.True(t, decode[validateResponse](t, rec).Valid)
	})

	t.Run("UnknownField", func(t *testing.T) {
		rec := env.postJSON("/api/campaigns/texas-land/validate?field=ssn", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("URLEncoded", func(t *testing.T) {
		form := url.Values{"firstName": {"Jo"}, "email": {"jo@example.com"}}
		rec := env.do(http.MethodPost, "/api/campaigns/quick-offer/validate", strings.NewReader(form.Encode()),
			http.Header{echo.HeaderContentType: {echo.MIMEApplicationForm}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[validateResponse](t, rec).Valid)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/campaigns/texas-land/validate", strings.NewReader("[1,2"), jsonHeader())
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.postJSON("/api/campaigns/texas-land/validate", map[string]any{"firstName": []string{"a"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitSuccess(t *testing.T) {
	env := setupServer(t, nil, leadform.SimulatedSubmitter{Delay: 5 * time.Millisecond})

	rec := env.postJSON(submitPath("texas-land", testFormID), validLead())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[models.SubmissionRecord](t, rec)
	assert.Equal(t, "texas-land", got.Campaign)
	assert.Equal(t, "Jane", got.Fields["firstName"])
	assert.Equal(t, "12.5", got.Fields["acreage"])
	assert.Equal(t, got.ID, rec.Header().Get("X-Lead-Reference"))
	assert.False(t, got.SubmittedAt.IsZero())

	queued := env.store.ReadAll(context.Background(), "texas-land")
	require.Len(t, queued, 1)
	assert.Equal(t, got.ID, queued[0].ID)
	assert.Empty(t, env.store.ReadAll(context.Background(), "arizona-land"))

	form, ok := env.sessions.Lookup("texas-land", testFormID)
	require.True(t, ok)
	assert.Equal(t, got.ID, form.Snapshot().RecordID)

	assert.Eventually(t, func() bool {
		return form.State() == leadform.StateEditing
	}, time.Second, 10*time.Millisecond, "form auto-resets after the dwell")
	assert.Equal(t, "asap", form.Snapshot().Values["timeframe"])
}

func TestSubmitValidationFailure(t *testing.T) {
	env := setupServer(t, nil, leadform.SimulatedSubmitter{})

	lead := validLead()
	lead["email"] = "not-an-email"
	rec := env.postJSON(submitPath("texas-land", testFormID), lead)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	got := decode[validationFailedResponse](t, rec)
	assert.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors, "email")
	assert.Empty(t, env.store.ReadAll(context.Background(), "texas-land"))

	state := decode[leadform.Snapshot](t, env.do(http.MethodGet, "/api/campaigns/texas-land/forms/"+testFormID, nil, nil))
	assert.Equal(t, leadform.StateEditing, state.State)
	assert.Equal(t, "not-an-email", state.Values["email"])
	assert.Contains(t, state.Errors, "email")
}

func TestSubmitWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	blocking := leadform.SubmitterFunc(func(ctx context.Context, rec models.SubmissionRecord) (leadform.Ack, error) {
		select {
		case <-release:
			return leadform.Ack{Reference: rec.ID}, nil
		case <-ctx.Done():
			return leadform.Ack{}, ctx.Err()
		}
	})
	env := setupServer(t, nil, blocking)

	first := make(chan int, 1)
	go func() {
		first <- env.postJSON(submitPath("texas-land", testFormID), validLead()).Code
	}()

	require.Eventually(t, func() bool {
		form, ok := env.sessions.Lookup("texas-land", testFormID)
		return ok && form.State() == leadform.StateSubmitting
	}, time.Second, 5*time.Millisecond)

	rec := env.postJSON(submitPath("texas-land", testFormID), validLead())
	assert.Equal(t, http.StatusConflict, rec.Code)

	other := uuid.NewString()
	go func() { time.Sleep(20 * time.Millisecond); close(release) }()
	rec = env.postJSON(submitPath("texas-land", other), validLead())
	assert.Equal(t, http.StatusCreated, rec.Code, "other form instances are independent")

	assert.Equal(t, http.StatusCreated, <-first)
	assert.Len(t, env.store.ReadAll(context.Background(), "texas-land"), 2)
}

func TestSubmitBackendFailure(t *testing.T) {
	env := setupServer(t, nil, leadform.FailingSubmitter{})

	rec := env.postJSON(submitPath("texas-land", testFormID), validLead())
	require.Equal(t, http.StatusBadGateway, rec.Code)

	got := decode[submitFailedResponse](t, rec)
	assert.Equal(t, leadform.SubmitErrorMessage, got.Message)
	assert.Equal(t, leadform.StateEditing, got.Form.State)
	assert.Equal(t, leadform.SubmitErrorMessage, got.Form.SubmitError)
	assert.Equal(t, "Jane", got.Form.Values["firstName"], "values are kept for a retry")
	assert.Empty(t, env.store.ReadAll(context.Background(), "texas-land"))
}

func TestSubmitCancelled(t *testing.T) {
	t.Run("ClientGone", func(t *testing.T) {
		env := setupServer(t, nil, leadform.SimulatedSubmitter{Delay: time.Hour})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec := env.doContext(ctx, http.MethodPost, submitPath("texas-land", testFormID), jsonBody(validLead()), jsonHeader())

		assert.Equal(t, statusClientClosedRequest, rec.Code)
		assert.Empty(t, env.store.ReadAll(context.Background(), "texas-land"))
	})

	t.Run("RequestDeadline", func(t *testing.T) {
		env := setupServer(t, nil, leadform.SimulatedSubmitter{Delay: time.Hour})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		rec := env.doContext(ctx, http.MethodPost, submitPath("texas-land", testFormID), jsonBody(validLead()), jsonHeader())

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Empty(t, env.store.ReadAll(context.Background(), "texas-land"))
	})

	t.Run("BackendTimeoutIsAFailure", func(t *testing.T) {
		timeout := leadform.SubmitterFunc(func(ctx context.Context, rec models.SubmissionRecord) (leadform.Ack, error) {
			return leadform.Ack{}, fmt.Errorf("publish: %w", context.DeadlineExceeded)
		})
		env := setupServer(t, nil, timeout)

		rec := env.postJSON(submitPath("texas-land", testFormID), validLead())
		require.Equal(t, http.StatusBadGateway, rec.Code)

		got := decode[submitFailedResponse](t, rec)
		assert.Equal(t, leadform.SubmitErrorMessage, got.Form.SubmitError)
	})
}

func TestSubmitDuringConfirmation(t *testing.T) {
	env := setupServer(t, nil, leadform.SimulatedSubmitter{})

	rec := env.postJSON(submitPath("texas-land", testFormID), validLead())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.postJSON(submitPath("texas-land", testFormID), validLead())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "just submitted")
	assert.Len(t, env.store.ReadAll(context.Background(), "texas-land"), 1)

	require.Eventually(t, func() bool {
		form, ok := env.sessions.Lookup("texas-land", testFormID)
		return ok && form.State() == leadform.StateEditing
	}, time.Second, 5*time.Millisecond)

	rec = env.postJSON(submitPath("texas-land", testFormID), validLead())
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	env := setupServer(t, nil, leadform.SimulatedSubmitter{})

	rec := env.postJSON(submitPath("texas-land", "not-a-uuid"), validLead())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postJSON(submitPath("ohio-land", testFormID), validLead())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitTurnstile(t *testing.T) {
	cfg := &config.Config{TurnstileSiteKey: "site", TurnstileSecretKey: "secret"}
	env := setupServer(t, cfg, leadform.SimulatedSubmitter{})

	var gotToken, gotSecret string
	env.leads.verifyCaptcha = func(ctx context.Context, token, secret, ip string) (bool, error) {
		gotToken, gotSecret = token, secret
		switch token {
		case "good":
			return true, nil
		case "down":
			return false, errors.New("siteverify unreachable")
		}
		return false, nil
	}

	t.Run("MissingToken", func(t *testing.T) {
		rec := env.postJSON(submitPath("texas-land", uuid.NewString()), validLead())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "complete the CAPTCHA")
	})

	t.Run("RejectedToken", func(t *testing.T) {
		for _, token := range []string{"bad", "down"} {
			header := jsonHeader()
			header.Set(TurnstileHeader, token)
			rec := env.doContext(context.Background(), http.MethodPost, submitPath("texas-land", uuid.NewString()), jsonBody(validLead()), header)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
		assert.Empty(t, env.store.ReadAll(context.Background(), "texas-land"))
	})

	t.Run("TokenInHeader", func(t *testing.T) {
		header := jsonHeader()
		header.Set(TurnstileHeader, "good")
		rec := env.doContext(context.Background(), http.MethodPost, submitPath("texas-land", uuid.NewString()), jsonBody(validLead()), header)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "secret", gotSecret)
	})

	t.Run("TokenInFormBody", func(t *testing.T) {
		form := url.Values{
			"firstName":    {"Jo"},
			"email":        {"jo@example.com"},
			TurnstileField: {"good"},
		}
		rec := env.do(http.MethodPost, submitPath("quick-offer", uuid.NewString()), strings.NewReader(form.Encode()),
			http.Header{echo.HeaderContentType: {echo.MIMEApplicationForm}})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "good", gotToken)

		got := decode[models.SubmissionRecord](t, rec)
		assert.NotContains(t, got.Fields, TurnstileField)
	})
}

func TestGetFormStateUntouched(t *testing.T) {
	env := setupServer(t, nil, leadform.SimulatedSubmitter{})

	rec := env.do(http.MethodGet, "/api/campaigns/texas-land/forms/"+uuid.NewString(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[leadform.Snapshot](t, rec)
	assert.Equal(t, leadform.StateEditing, state.State)
	assert.Equal(t, "asap", state.Values["timeframe"])
	assert.Equal(t, 0, env.sessions.Len(), "reading state does not create a form")

	rec = env.do(http.MethodGet, "/api/campaigns/texas-land/forms/xyz", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScalarString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{float64(40), "40"},
		{12.75, "12.75"},
		{true, "true"},
	}
	for _, tt := range tests {
		got, err := scalarString(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := scalarString(map[string]any{})
	assert.Error(t, err)
}
