package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"land_leads_app_go/config"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/leadform"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TurnstileField is the form field Cloudflare's widget writes its token to
const TurnstileField = "cf-turnstile-response"

// TurnstileHeader carries the token for JSON clients
const TurnstileHeader = "CF-Turnstile-Response"

// statusClientClosedRequest is logged when the visitor goes away before the lead is sent
const statusClientClosedRequest = 499

// CaptchaVerifier checks a Turnstile token
type CaptchaVerifier func(ctx context.Context, token, secretKey, ip string) (bool, error)

// LeadHandler serves the public lead form API
type LeadHandler struct {
	cfg      *config.Config
	registry *campaigns.Registry
	sessions *leadform.Sessions
	pipeline *leadform.Pipeline
	monitor  *services.SecurityMonitor
	logger   *zap.Logger

	verifyCaptcha CaptchaVerifier
}

// NewLeadHandler wires the form API to the campaign registry and submission pipeline
func NewLeadHandler(cfg *config.Config, registry *campaigns.Registry, sessions *leadform.Sessions, pipeline *leadform.Pipeline, monitor *services.SecurityMonitor, logger *zap.Logger) *LeadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if monitor == nil {
		monitor = services.NewSecurityMonitor(logger)
	}
	return &LeadHandler{
		cfg:           cfg,
		registry:      registry,
		sessions:      sessions,
		pipeline:      pipeline,
		monitor:       monitor,
		logger:        logger.Named("leads"),
		verifyCaptcha: services.VerifyTurnstileToken,
	}
}

type campaignResponse struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	State string `json:"state,omitempty"`
}

type fieldResponse struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	Required  bool     `json:"required"`
	MinLength int      `json:"min_length,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Values    []string `json:"values,omitempty"`
	Default   string   `json:"default,omitempty"`
}

type formResponse struct {
	Campaign         campaignResponse  `json:"campaign"`
	FormID           string            `json:"form_id"`
	Fields           []fieldResponse   `json:"fields"`
	Defaults         map[string]string `json:"defaults"`
	TurnstileSiteKey string            `json:"turnstile_site_key,omitempty"`
}

type validateResponse struct {
	Valid  bool                 `json:"valid"`
	Errors leadform.FieldErrors `json:"errors,omitempty"`
}

type validationFailedResponse struct {
	Message string               `json:"message"`
	Errors  leadform.FieldErrors `json:"errors"`
}

type submitFailedResponse struct {
	Message string            `json:"message"`
	Form    leadform.Snapshot `json:"form"`
}

func toCampaignResponse(c *campaigns.Campaign) campaignResponse {
	return campaignResponse{Slug: c.Slug, Title: c.Title, State: c.State}
}

func toFieldResponses(schema *leadform.Schema) []fieldResponse {
	fields := schema.Fields()
	out := make([]fieldResponse, 0, len(fields))
	for _, f := range fields {
		fr := fieldResponse{
			Name:      f.Name,
			Label:     f.Label,
			Type:      string(f.Type),
			Required:  f.Required,
			MinLength: f.MinLength,
			MaxLength: f.MaxLength,
			Values:    f.AllowedValues,
			Default:   f.Default,
		}
		if f.Pattern != nil {
			fr.Pattern = f.Pattern.String()
		}
		out = append(out, fr)
	}
	return out
}

// ListCampaigns returns every configured campaign
func (h *LeadHandler) ListCampaigns(c echo.Context) error {
	list := h.registry.List()
	out := make([]campaignResponse, 0, len(list))
	for _, camp := range list {
		out = append(out, toCampaignResponse(camp))
	}
	return c.JSON(http.StatusOK, out)
}

// GetForm returns the schema of a campaign form along with a fresh form id
func (h *LeadHandler) GetForm(c echo.Context) error {
	camp, err := h.campaign(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, formResponse{
		Campaign:         toCampaignResponse(camp),
		FormID:           uuid.NewString(),
		Fields:           toFieldResponses(camp.Schema),
		Defaults:         camp.Schema.Defaults(),
		TurnstileSiteKey: h.cfg.TurnstileSiteKey,
	})
}

// Validate checks values without submitting them.
// With ?field=name only that field is checked.
func (h *LeadHandler) Validate(c echo.Context) error {
	camp, err := h.campaign(c)
	if err != nil {
		return err
	}
	raw, _, err := readValues(c)
	if err != nil {
		return err
	}

	if name := c.QueryParam("field"); name != "" {
		if _, ok := camp.Schema.Field(name); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Unknown field %q", name))
		}
		if msg := leadform.ValidateField(camp.Schema, name, raw[name]); msg != "" {
			return c.JSON(http.StatusOK, validateResponse{Errors: leadform.FieldErrors{name: msg}})
		}
		return c.JSON(http.StatusOK, validateResponse{Valid: true})
	}

	_, errs := leadform.Validate(camp.Schema, raw)
	return c.JSON(http.StatusOK, validateResponse{Valid: errs == nil, Errors: errs})
}

// Submit runs the submission pipeline for one form instance
func (h *LeadHandler) Submit(c echo.Context) error {
	camp, err := h.campaign(c)
	if err != nil {
		return err
	}
	formID, err := formIDParam(c)
	if err != nil {
		return err
	}
	raw, token, err := readValues(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	// Validate Turnstile CAPTCHA (if configured)
	if h.cfg.TurnstileEnabled() {
		if token == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Please complete the CAPTCHA")
		}
		ok, err := h.verifyCaptcha(ctx, token, h.cfg.TurnstileSecretKey, c.RealIP())
		if err != nil || !ok {
			h.logger.Warn("turnstile verification failed", zap.String("campaign", camp.Slug), zap.Error(err))
			h.monitor.TrackFailure(c.RealIP(), services.FailureCaptcha)
			return echo.NewHTTPError(http.StatusBadRequest, "CAPTCHA verification failed")
		}
	}

	form := h.sessions.Form(camp.Slug, formID, camp.Schema)
	outcome := h.pipeline.Submit(ctx, form, camp.Slug, raw)

	switch outcome.Kind {
	case leadform.OutcomeSucceeded:
		c.Response().Header().Set("X-Lead-Reference", outcome.Ack.Reference)
		return c.JSON(http.StatusCreated, outcome.Record)
	case leadform.OutcomeValidationFailed:
		return c.JSON(http.StatusUnprocessableEntity, validationFailedResponse{
			Message: "Please correct the highlighted fields",
			Errors:  outcome.Errors,
		})
	case leadform.OutcomeRejected:
		if errors.Is(outcome.Err, leadform.ErrShowingConfirmation) {
			return echo.NewHTTPError(http.StatusConflict, "This form was just submitted")
		}
		return echo.NewHTTPError(http.StatusConflict, "This form is already being submitted")
	case leadform.OutcomeSubmissionFailed:
		return c.JSON(http.StatusBadGateway, submitFailedResponse{
			Message: leadform.SubmitErrorMessage,
			Form:    form.Snapshot(),
		})
	case leadform.OutcomeCancelled:
		if errors.Is(outcome.Err, context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, leadform.SubmitErrorMessage)
		}
		return c.NoContent(statusClientClosedRequest)
	}
	return echo.NewHTTPError(http.StatusInternalServerError)
}

// GetFormState returns what the form instance currently shows.
// A form id that was never submitted is an untouched form.
func (h *LeadHandler) GetFormState(c echo.Context) error {
	camp, err := h.campaign(c)
	if err != nil {
		return err
	}
	formID, err := formIDParam(c)
	if err != nil {
		return err
	}

	if form, ok := h.sessions.Lookup(camp.Slug, formID); ok {
		return c.JSON(http.StatusOK, form.Snapshot())
	}
	return c.JSON(http.StatusOK, leadform.Snapshot{
		State:  leadform.StateEditing,
		Values: camp.Schema.Defaults(),
	})
}

func (h *LeadHandler) campaign(c echo.Context) (*campaigns.Campaign, error) {
	camp, err := h.registry.Get(c.Param("campaign"))
	if err != nil {
		if errors.Is(err, campaigns.ErrUnknownCampaign) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Campaign not found")
		}
		return nil, err
	}
	return camp, nil
}

func formIDParam(c echo.Context) (string, error) {
	id, err := uuid.Parse(c.Param("formID"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid form id")
	}
	return id.String(), nil
}

// readValues accepts a flat JSON object or a urlencoded form and returns the field values
// and the Turnstile token, if any.
func readValues(c echo.Context) (map[string]string, string, error) {
	req := c.Request()
	token := req.Header.Get(TurnstileHeader)
	raw := make(map[string]string)

	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return nil, "", echo.NewHTTPError(http.StatusBadRequest, "Request body must be a JSON object")
		}
		for name, v := range body {
			s, err := scalarString(v)
			if err != nil {
				return nil, "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Field %q must be a string", name))
			}
			raw[name] = s
		}
	} else {
		params, err := c.FormParams()
		if err != nil {
			return nil, "", echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
		}
		for name, values := range params {
			if len(values) > 0 {
				raw[name] = values[0]
			}
		}
	}

	if t, ok := raw[TurnstileField]; ok {
		if token == "" {
			token = t
		}
		delete(raw, TurnstileField)
	}
	return raw, token, nil
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	}
	return "", fmt.Errorf("unsupported value %T", v)
}
