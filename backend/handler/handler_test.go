package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBlobs records uploads and removals
type fakeBlobs struct {
	mu       sync.Mutex
	uploaded []string
	body     []byte
	removed  []string
	err      error
}

func (f *fakeBlobs) StoreCV(_ context.Context, fileName, contentType string, r io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, fileName+"|"+contentType)
	f.body = data
	return "https://blobs.test/applications/cvs/" + fileName, nil
}

func (f *fakeBlobs) RemoveCV(_ context.Context, cvURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, cvURL)
	return nil
}

type fakeExtractor struct {
	data extract.ExtractedCVData
	urls []string
}

func (f *fakeExtractor) Extract(_ context.Context, url string) extract.ExtractedCVData {
	f.urls = append(f.urls, url)
	return f.data
}

type formFile struct {
	field       string
	name        string
	contentType string
	content     []byte
}

// newMultipartRequest builds a multipart POST with the given fields and optional file
func newMultipartRequest(t *testing.T, target string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.name+`"`)
		if file.contentType != "" {
			h.Set("Content-Type", file.contentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		part.Write(file.content)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var errBoom = errors.New("boom")
