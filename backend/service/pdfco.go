package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/cvintake/backend/config"
)

// maxTextBytes bounds how much converted or fetched text is read into memory.
const maxTextBytes = 20 << 20

// PDFCoService converts stored documents into plain text through PDF.co
type PDFCoService struct {
	config     *config.PDFCoConfig
	httpClient *http.Client
}

// PDFCoConvertRequest is the body of a synchronous convert-to-text call
type PDFCoConvertRequest struct {
	URL    string `json:"url"`
	Inline bool   `json:"inline"`
	Async  bool   `json:"async"`
}

// PDFCoConvertResponse is returned by the convert endpoint. On success URL
// points at the converted text, which has to be fetched separately.
type PDFCoConvertResponse struct {
	URL       string `json:"url"`
	Error     bool   `json:"error"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Name      string `json:"name"`
	PageCount int    `json:"pageCount"`
}

func NewPDFCoService(cfg *config.PDFCoConfig) *PDFCoService {
	return &PDFCoService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Enabled reports whether an API key is configured
func (s *PDFCoService) Enabled() bool {
	return s != nil && s.config != nil && s.config.APIKey != ""
}

// ConvertToText submits documentURL for conversion and downloads the result
func (s *PDFCoService) ConvertToText(ctx context.Context, documentURL string) (string, error) {
	resultURL, err := s.createConversion(ctx, documentURL)
	if err != nil {
		return "", &RetrievalError{Stage: StageConvert, URL: documentURL, Err: err}
	}

	text, err := fetchText(ctx, s.httpClient, resultURL, maxTextBytes)
	if err != nil {
		return "", &RetrievalError{Stage: StageDownload, URL: resultURL, Err: err}
	}
	return text, nil
}

func (s *PDFCoService) createConversion(ctx context.Context, documentURL string) (string, error) {
	reqBody := PDFCoConvertRequest{
		URL:    documentURL,
		Inline: false,
		Async:  false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.APIURL, "/") + "/v1/pdf/convert/to/text"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result PDFCoConvertResponse
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := result.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("PDF.co API error: %s", msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse response: %w, body: %s", decodeErr, string(body))
	}
	if result.Error {
		return "", fmt.Errorf("PDF.co API error: %s", result.Message)
	}
	if result.URL == "" {
		return "", fmt.Errorf("PDF.co response has no result url")
	}

	return result.URL, nil
}
