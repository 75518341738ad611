package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"land_leads_app_go/config"
	"land_leads_app_go/models"

	"github.com/resend/resend-go/v2"
)

//go:embed templates/emails/*
var emailTemplates embed.FS

// resendBaseURL points the client at another API host; tests use it
var resendBaseURL string

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// loadTemplate renders templates/emails/<name>.html and .txt with data
func loadTemplate(templateName string, data interface{}) (html string, text string, err error) {
	htmlPath := "templates/emails/" + templateName + ".html"
	htmlTmpl, err := htmltemplate.ParseFS(emailTemplates, htmlPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s: %w", htmlPath, err)
	}
	var htmlBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", htmlPath, err)
	}

	textPath := "templates/emails/" + templateName + ".txt"
	textTmpl, err := texttemplate.ParseFS(emailTemplates, textPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s: %w", textPath, err)
	}
	var textBuf bytes.Buffer
	if err := textTmpl.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", textPath, err)
	}

	return htmlBuf.String(), textBuf.String(), nil
}

// SendEmail sends an email using Resend API
func SendEmail(ctx context.Context, cfg *config.Config, email *Email) (string, error) {
	// In development mode, log the email instead of sending
	if cfg.EmailTestMode {
		logEmailToConsole(email)
		log.Printf("✅ Email logged successfully (development mode - not actually sent)")
		return "", nil
	}

	// Validate configuration
	if cfg.ResendAPIKey == "" {
		return "", fmt.Errorf("RESEND_API_KEY not configured")
	}
	if len(email.To) == 0 {
		return "", fmt.Errorf("email has no recipients")
	}

	client := resend.NewClient(cfg.ResendAPIKey)
	if resendBaseURL != "" {
		u, err := url.Parse(resendBaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid resend base url: %w", err)
		}
		client.BaseURL = u
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", cfg.EmailFromName, cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}

	// Validate we have at least one body
	if params.Html == "" && params.Text == "" {
		return "", fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	sent, err := client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to send email via Resend: %w", err)
	}

	log.Printf("Email sent successfully via Resend (ID: %s) to: %v", sent.Id, email.To)
	return sent.Id, nil
}

// logEmailToConsole logs email details to console in development mode
func logEmailToConsole(email *Email) {
	separator := strings.Repeat("=", 80)
	log.Printf("\n%s\n📧 EMAIL (Development Mode - Not Actually Sent)\n%s", separator, separator)
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("\n--- TEXT BODY ---\n%s", email.TextBody)
	log.Printf("\n--- HTML BODY (first 500 chars) ---\n%s...", truncate(email.HTMLBody, 500))
	log.Printf("%s\n", separator)
}

// truncate truncates a string to a maximum length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// LeadField is one labelled value in a lead notification
type LeadField struct {
	Label string
	Value string
}

// LeadNotificationEmailData contains data for the lead notification template
type LeadNotificationEmailData struct {
	CampaignTitle string
	RecordID      string
	SubmittedAt   string
	Fields        []LeadField
}

// BuildLeadNotificationEmail creates the email sent to the sales inbox for a new lead
func BuildLeadNotificationEmail(to []string, campaignTitle string, rec models.SubmissionRecord, fields []LeadField) (*Email, error) {
	data := LeadNotificationEmailData{
		CampaignTitle: campaignTitle,
		RecordID:      rec.ID,
		SubmittedAt:   rec.SubmittedAt.UTC().Format(time.RFC1123),
		Fields:        fields,
	}

	html, text, err := loadTemplate("lead_notification", data)
	if err != nil {
		return nil, err
	}

	return &Email{
		To:       append([]string(nil), to...),
		Subject:  fmt.Sprintf("New lead: %s", campaignTitle),
		HTMLBody: html,
		TextBody: text,
	}, nil
}
