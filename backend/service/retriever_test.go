package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/extract"
)

var _ extract.Retriever = (*DocumentRetriever)(nil)

func TestDocumentRetrieverPrimaryPath(t *testing.T) {
	server := newPDFCoServer(t, "converted text")
	defer server.Close()

	converter := NewPDFCoService(&config.PDFCoConfig{APIURL: server.URL, APIKey: "test-key"})
	r := NewDocumentRetriever(converter, &config.ExtractConfig{ConvertTimeout: 5 * time.Second, FetchTimeout: 5 * time.Second})

	text, err := r.RetrieveText(context.Background(), "http://blob.test/cv.pdf")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != "converted text" {
		t.Errorf("Expected converted text, got %q", text)
	}
}

func TestDocumentRetrieverFallback(t *testing.T) {
	converterServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer converterServer.Close()

	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw document text"))
	}))
	defer docServer.Close()

	converter := NewPDFCoService(&config.PDFCoConfig{APIURL: converterServer.URL, APIKey: "test-key"})
	r := NewDocumentRetriever(converter, &config.ExtractConfig{})

	text, err := r.RetrieveText(context.Background(), docServer.URL+"/cv.txt")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != "raw document text" {
		t.Errorf("Expected fallback text, got %q", text)
	}
}

func TestDocumentRetrieverWithoutConverter(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain"))
	}))
	defer docServer.Close()

	r := NewDocumentRetriever(NewPDFCoService(&config.PDFCoConfig{}), &config.ExtractConfig{})
	text, err := r.RetrieveText(context.Background(), docServer.URL)
	if err != nil || text != "plain" {
		t.Errorf("Expected direct fetch, got %q, %v", text, err)
	}
}

func TestDocumentRetrieverInvalidUTF8(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{'P', 'K', 0xff, 0xfe, 'x'})
	}))
	defer docServer.Close()

	r := NewDocumentRetriever(nil, &config.ExtractConfig{})
	text, err := r.RetrieveText(context.Background(), docServer.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if text != "PK�x" {
		t.Errorf("Expected replacement character, got %q", text)
	}
}

func TestDocumentRetrieverRejectsOversizedText(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer docServer.Close()

	r := NewDocumentRetriever(nil, &config.ExtractConfig{})
	r.maxBytes = 10
	text, err := r.RetrieveText(context.Background(), docServer.URL)
	if err != nil || text != "0123456789" {
		t.Fatalf("Expected text at the limit, got %q, %v", text, err)
	}

	r.maxBytes = 9
	text, err = r.RetrieveText(context.Background(), docServer.URL)
	if !errors.Is(err, ErrTextTooLarge) {
		t.Fatalf("Expected ErrTextTooLarge, got %v", err)
	}
	if !errors.Is(err, ErrTotalRetrieval) {
		t.Errorf("Expected ErrTotalRetrieval, got %v", err)
	}
	if text != "" {
		t.Errorf("Expected no partial text, got %q", text)
	}
}

func TestDocumentRetrieverTotalFailure(t *testing.T) {
	converterServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer converterServer.Close()

	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer docServer.Close()

	converter := NewPDFCoService(&config.PDFCoConfig{APIURL: converterServer.URL, APIKey: "test-key"})
	r := NewDocumentRetriever(converter, &config.ExtractConfig{})

	_, err := r.RetrieveText(context.Background(), docServer.URL)
	if !errors.Is(err, ErrTotalRetrieval) {
		t.Fatalf("Expected ErrTotalRetrieval, got %v", err)
	}

	var rerr *RetrievalError
	if !errors.As(err, &rerr) {
		t.Errorf("Expected RetrievalError in chain, got %v", err)
	}
}

func TestDocumentRetrieverFetchTimeout(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer docServer.Close()

	r := NewDocumentRetriever(nil, &config.ExtractConfig{FetchTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := r.RetrieveText(context.Background(), docServer.URL)
	if !errors.Is(err, ErrTotalRetrieval) {
		t.Errorf("Expected ErrTotalRetrieval, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected fetch to be cut short by timeout")
	}
}

func TestEngineWithRetrieverEndToEnd(t *testing.T) {
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer docServer.Close()

	engine := extract.NewEngine(NewDocumentRetriever(nil, &config.ExtractConfig{}))
	data := engine.Extract(context.Background(), docServer.URL)

	if len(data.Education) != 0 || data.RawText != "" || !data.PersonalInfo.IsEmpty() {
		t.Errorf("Expected empty record on total failure, got %+v", data)
	}
}
