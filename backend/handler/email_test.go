package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AnTengye/cvintake/backend/service"
	"github.com/gin-gonic/gin"
)

type fakeDispatcher struct {
	results []service.EmailResult
	err     error
	calls   int
}

func (f *fakeDispatcher) DispatchDue(context.Context) ([]service.EmailResult, error) {
	f.calls++
	return f.results, f.err
}

func TestEmailHandlerSendScheduled(t *testing.T) {
	tests := []struct {
		name           string
		dispatcher     *fakeDispatcher
		expectedStatus int
		check          func(t *testing.T, body map[string]interface{})
	}{
		{
			name:           "nothing due",
			dispatcher:     &fakeDispatcher{},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["message"] != "No emails to send" {
					t.Errorf("Unexpected body: %v", body)
				}
			},
		},
		{
			name: "mixed results",
			dispatcher: &fakeDispatcher{results: []service.EmailResult{
				{ID: "e1", Status: service.EmailStatusSent, To: "a@example.com"},
				{ID: "e2", Status: service.EmailStatusError, To: "b@example.com", Error: "quota"},
			}},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["processed"] != float64(2) {
					t.Errorf("Expected processed 2, got %v", body["processed"])
				}
				results, _ := body["results"].([]interface{})
				if len(results) != 2 {
					t.Fatalf("Expected 2 results, got %v", body["results"])
				}
				second := results[1].(map[string]interface{})
				if second["status"] != "error" || second["error"] != "quota" {
					t.Errorf("Unexpected second result: %v", second)
				}
			},
		},
		{
			name:           "queue failure",
			dispatcher:     &fakeDispatcher{err: errBoom},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["error"] != "Failed to process scheduled emails" {
					t.Errorf("Unexpected body: %v", body)
				}
				if _, ok := body["results"]; ok {
					t.Errorf("Expected no results, got %v", body["results"])
				}
			},
		},
		{
			name: "interrupted after one send",
			dispatcher: &fakeDispatcher{
				results: []service.EmailResult{{ID: "e1", Status: service.EmailStatusSent, To: "a@example.com"}},
				err:     errBoom,
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["error"] != "Failed to process scheduled emails" {
					t.Errorf("Unexpected error: %v", body["error"])
				}
				if body["processed"] != float64(1) {
					t.Errorf("Expected processed 1, got %v", body["processed"])
				}
				results, _ := body["results"].([]interface{})
				if len(results) != 1 {
					t.Fatalf("Expected 1 result, got %v", body["results"])
				}
				first := results[0].(map[string]interface{})
				if first["id"] != "e1" || first["status"] != "sent" {
					t.Errorf("Unexpected result: %v", first)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEmailHandler(tt.dispatcher)
			router := gin.New()
			router.GET("/api/send-scheduled-emails", h.SendScheduled)
			router.POST("/api/send-scheduled-emails", h.SendScheduled)

			for _, method := range []string{"GET", "POST"} {
				req := httptest.NewRequest(method, "/api/send-scheduled-emails", nil)
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				if w.Code != tt.expectedStatus {
					t.Errorf("%s: Expected status %d, got %d", method, tt.expectedStatus, w.Code)
				}

				var body map[string]interface{}
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("Failed to parse response: %v", err)
				}
				tt.check(t, body)
			}
			if tt.dispatcher.calls != 2 {
				t.Errorf("Expected 2 dispatches, got %d", tt.dispatcher.calls)
			}
		})
	}
}
