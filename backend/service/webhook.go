package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/AnTengye/cvintake/backend/model"
)

// WebhookService notifies an external endpoint about each processed CV
type WebhookService struct {
	config     *config.WebhookConfig
	httpClient *http.Client
}

// WebhookPayload is the JSON body posted for each application
type WebhookPayload struct {
	CVData   WebhookCVData   `json:"cv_data"`
	Metadata WebhookMetadata `json:"metadata"`
}

type WebhookCVData struct {
	PersonalInfo   extract.PersonalInfo `json:"personal_info"`
	Education      []string             `json:"education"`
	Qualifications []string             `json:"qualifications"`
	Projects       []string             `json:"projects"`
	CVPublicLink   string               `json:"cv_public_link"`
}

type WebhookMetadata struct {
	ApplicantName      string `json:"applicant_name"`
	Email              string `json:"email"`
	Status             string `json:"status"` // prod, testing
	CVProcessed        bool   `json:"cv_processed"`
	ProcessedTimestamp string `json:"processed_timestamp"`
}

func NewWebhookService(cfg *config.WebhookConfig) *WebhookService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookService{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookService) Enabled() bool {
	return s != nil && s.config != nil && s.config.URL != ""
}

// Notify posts the application's extracted data to the configured URL
func (s *WebhookService) Notify(ctx context.Context, app *model.Application, production bool) error {
	payload := BuildWebhookPayload(app, production || s.config.Production, time.Now())

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.CandidateEmail != "" {
		req.Header.Set("X-Candidate-Email", s.config.CandidateEmail)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status: %d", resp.StatusCode)
	}
	return nil
}

// BuildWebhookPayload maps an application to the webhook body
func BuildWebhookPayload(app *model.Application, production bool, now time.Time) WebhookPayload {
	data := app.ExtractedData
	data.Normalize()

	status := "testing"
	if production {
		status = "prod"
	}

	return WebhookPayload{
		CVData: WebhookCVData{
			PersonalInfo:   data.PersonalInfo,
			Education:      data.Education,
			Qualifications: data.Qualifications,
			Projects:       data.Projects,
			CVPublicLink:   app.CVURL,
		},
		Metadata: WebhookMetadata{
			ApplicantName:      app.Name,
			Email:              app.Email,
			Status:             status,
			CVProcessed:        true,
			ProcessedTimestamp: now.UTC().Format(time.RFC3339),
		},
	}
}
