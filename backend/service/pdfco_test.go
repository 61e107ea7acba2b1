package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnTengye/cvintake/backend/config"
)

// newPDFCoServer serves a convert endpoint that points at its own /result path
func newPDFCoServer(t *testing.T, resultText string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/pdf/convert/to/text":
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST, got %s", r.Method)
			}
			if r.Header.Get("x-api-key") != "test-key" {
				t.Error("Expected x-api-key header")
			}

			var reqBody PDFCoConvertRequest
			if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}
			if reqBody.URL != "http://blob.test/cv.pdf" {
				t.Errorf("Expected document url, got '%s'", reqBody.URL)
			}
			if reqBody.Inline || reqBody.Async {
				t.Error("Expected inline=false and async=false")
			}

			json.NewEncoder(w).Encode(PDFCoConvertResponse{
				URL:   server.URL + "/result",
				Error: false,
			})
		case "/result":
			w.Write([]byte(resultText))
		default:
			http.NotFound(w, r)
		}
	}))
	return server
}

func TestPDFCoServiceEnabled(t *testing.T) {
	if NewPDFCoService(&config.PDFCoConfig{}).Enabled() {
		t.Error("Expected service without key to be disabled")
	}
	if !NewPDFCoService(&config.PDFCoConfig{APIKey: "k"}).Enabled() {
		t.Error("Expected service with key to be enabled")
	}

	var nilSvc *PDFCoService
	if nilSvc.Enabled() {
		t.Error("Expected nil service to be disabled")
	}
}

func TestPDFCoServiceConvertToText(t *testing.T) {
	server := newPDFCoServer(t, "Education\nBSc Computer Science")
	defer server.Close()

	svc := NewPDFCoService(&config.PDFCoConfig{APIURL: server.URL + "/", APIKey: "test-key"})
	text, err := svc.ConvertToText(context.Background(), "http://blob.test/cv.pdf")

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != "Education\nBSc Computer Science" {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestPDFCoServiceErrorFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PDFCoConvertResponse{Error: true, Message: "file too large"})
	}))
	defer server.Close()

	svc := NewPDFCoService(&config.PDFCoConfig{APIURL: server.URL, APIKey: "test-key"})
	_, err := svc.ConvertToText(context.Background(), "http://blob.test/cv.pdf")

	if err == nil {
		t.Fatal("Expected error for error flag")
	}
	if !strings.Contains(err.Error(), "file too large") {
		t.Errorf("Expected service message in error, got %v", err)
	}

	var rerr *RetrievalError
	if !errors.As(err, &rerr) || rerr.Stage != StageConvert {
		t.Errorf("Expected convert RetrievalError, got %v", err)
	}
}

func TestPDFCoServiceHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"json message", `{"error":true,"message":"Invalid API key"}`, "Invalid API key"},
		{"non json body", `<html>oops</html>`, "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := NewPDFCoService(&config.PDFCoConfig{APIURL: server.URL, APIKey: "bad"})
			_, err := svc.ConvertToText(context.Background(), "http://blob.test/cv.pdf")

			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestPDFCoServiceResultDownloadFails(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/result" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(PDFCoConvertResponse{URL: server.URL + "/result"})
	}))
	defer server.Close()

	svc := NewPDFCoService(&config.PDFCoConfig{APIURL: server.URL, APIKey: "test-key"})
	_, err := svc.ConvertToText(context.Background(), "http://blob.test/cv.pdf")

	var rerr *RetrievalError
	if !errors.As(err, &rerr) || rerr.Stage != StageDownload {
		t.Errorf("Expected download RetrievalError, got %v", err)
	}
}

func TestPDFCoServiceNetworkError(t *testing.T) {
	svc := NewPDFCoService(&config.PDFCoConfig{
		APIURL: "http://invalid-host-that-does-not-exist:9999",
		APIKey: "test-key",
	})
	_, err := svc.ConvertToText(context.Background(), "http://example.com/test.pdf")

	if err == nil {
		t.Error("Expected error for network failure")
	}
}
