package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
)

// Retrieval stages reported by RetrievalError
const (
	StageConvert  = "convert"
	StageDownload = "download"
	StageFallback = "fallback"
)

// ErrTotalRetrieval is returned when both the conversion service and the
// direct fetch failed.
var ErrTotalRetrieval = errors.New("text retrieval failed on all paths")

// ErrTextTooLarge is returned when a document body exceeds the read limit.
// Oversized text is rejected rather than cut short.
var ErrTextTooLarge = errors.New("document text exceeds size limit")

// RetrievalError describes one failed retrieval attempt
type RetrievalError struct {
	Stage string
	URL   string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// DocumentRetriever fetches document text, preferring PDF.co conversion and
// falling back to downloading the document and decoding its bytes.
type DocumentRetriever struct {
	converter      *PDFCoService
	httpClient     *http.Client
	convertTimeout time.Duration
	fetchTimeout   time.Duration
	maxBytes       int64
}

func NewDocumentRetriever(converter *PDFCoService, cfg *config.ExtractConfig) *DocumentRetriever {
	return &DocumentRetriever{
		converter:      converter,
		httpClient:     &http.Client{},
		convertTimeout: cfg.ConvertTimeout,
		fetchTimeout:   cfg.FetchTimeout,
		maxBytes:       maxTextBytes,
	}
}

// RetrieveText implements extract.Retriever
func (r *DocumentRetriever) RetrieveText(ctx context.Context, documentURL string) (string, error) {
	var primaryErr error
	if r.converter.Enabled() {
		cctx, cancel := withOptionalTimeout(ctx, r.convertTimeout)
		text, err := r.converter.ConvertToText(cctx, documentURL)
		cancel()
		if err == nil {
			return text, nil
		}
		primaryErr = err
		logger.Warn(ctx, "pdf.co conversion failed, falling back to direct fetch", "error", err)
	}

	fctx, cancel := withOptionalTimeout(ctx, r.fetchTimeout)
	defer cancel()

	text, err := fetchText(fctx, r.httpClient, documentURL, r.maxBytes)
	if err != nil {
		fallbackErr := &RetrievalError{Stage: StageFallback, URL: documentURL, Err: err}
		return "", fmt.Errorf("%w: %w", ErrTotalRetrieval, errors.Join(primaryErr, fallbackErr))
	}
	return text, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// fetchText GETs url and decodes the body as UTF-8, replacing invalid sequences.
// A body longer than limit bytes fails with ErrTextTooLarge.
func fetchText(ctx context.Context, client *http.Client, url string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTextTooLarge, limit)
	}

	if utf8.Valid(body) {
		return string(body), nil
	}
	return strings.ToValidUTF8(string(body), "�"), nil
}
