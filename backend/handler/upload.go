package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	errNoFile        = errors.New("no file provided")
	errFileType      = errors.New("only PDF and DOCX files are allowed")
	errFileTooLarge  = errors.New("file too large")
	errInvalidFormat = errors.New("invalid file type")
)

// cvUpload is a validated CV file taken from a multipart form
type cvUpload struct {
	file        multipart.File
	fileName    string
	contentType string
	size        int64
}

func (u *cvUpload) Close() error {
	return u.file.Close()
}

// formOverhead is allowed on top of the file limit for the other form fields
const formOverhead = 1 << 20

// readCVUpload pulls field from the multipart form and checks extension, size
// and content type. PDF uploads with a suspicious declared type are sniffed.
func readCVUpload(c *gin.Context, field string, maxUploadMB int64) (*cvUpload, error) {
	maxBytes := maxUploadMB << 20
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)
	}

	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errFileTooLarge
		}
		return nil, errNoFile
	}

	upload := &cvUpload{file: file, fileName: header.Filename, size: header.Size}
	if err := upload.validate(header.Header.Get("Content-Type"), maxBytes); err != nil {
		file.Close()
		return nil, err
	}
	return upload, nil
}

func (u *cvUpload) validate(declared string, maxBytes int64) error {
	if maxBytes > 0 && u.size > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", errFileTooLarge, u.size, maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(u.fileName))
	switch ext {
	case ".pdf":
		u.contentType = contentTypePDF
	case ".docx":
		u.contentType = contentTypeDOCX
		return nil
	default:
		return errFileType
	}

	if declared == "" || declared == "application/octet-stream" || strings.Contains(declared, "pdf") {
		return nil
	}

	buffer := make([]byte, 512)
	n, err := u.file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read file: %w", err)
	}
	if _, err := u.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind file: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	if !strings.Contains(detected, "pdf") && detected != "application/octet-stream" {
		return errInvalidFormat
	}
	return nil
}

// uploadErrorResponse maps a readCVUpload failure to a status and message
func uploadErrorResponse(err error, maxUploadMB int64) (int, string) {
	switch {
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "No file provided"
	case errors.Is(err, errFileType):
		return http.StatusBadRequest, "Only PDF and DOCX files are allowed"
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("File size must be %dMB or less", maxUploadMB)
	case errors.Is(err, errInvalidFormat):
		return http.StatusBadRequest, "Invalid file type"
	default:
		return http.StatusBadRequest, "Failed to read file"
	}
}
