package handler

import (
	"net/http"
	"strings"

	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
	"github.com/AnTengye/cvintake/backend/service"
	"github.com/gin-gonic/gin"
)

type ExtractHandler struct {
	blobs       service.BlobStore
	extractor   service.Extractor
	maxUploadMB int64
}

func NewExtractHandler(blobs service.BlobStore, extractor service.Extractor, maxUploadMB int64) *ExtractHandler {
	return &ExtractHandler{
		blobs:       blobs,
		extractor:   extractor,
		maxUploadMB: maxUploadMB,
	}
}

// ExtractCV uploads the CV, runs extraction over the stored document and
// returns the structured data. Empty name, email and phone are filled from
// the form.
func (h *ExtractHandler) ExtractCV(c *gin.Context) {
	ctx := c.Request.Context()

	upload, err := readCVUpload(c, "file", h.maxUploadMB)
	if err != nil {
		status, msg := uploadErrorResponse(err, h.maxUploadMB)
		logger.Warn(ctx, "cv extraction rejected", "error", err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	defer upload.Close()

	logger.Info(ctx, "extracting cv",
		"file_name", upload.fileName,
		"file_type", upload.contentType,
		"file_size", upload.size,
	)

	docURL, err := h.blobs.StoreCV(ctx, upload.fileName, upload.contentType, upload.file, upload.size)
	if err != nil {
		logger.Error(ctx, "cv upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to extract CV data",
			"details": err.Error(),
		})
		return
	}

	data := h.extractor.Extract(ctx, docURL)
	data.PersonalInfo.SetIfEmpty(extract.FieldName, strings.TrimSpace(c.PostForm("name")))
	data.PersonalInfo.SetIfEmpty(extract.FieldEmail, strings.TrimSpace(c.PostForm("email")))
	data.PersonalInfo.SetIfEmpty(extract.FieldPhone, strings.TrimSpace(c.PostForm("phone")))

	logger.Info(ctx, "cv extracted",
		"education", len(data.Education),
		"qualifications", len(data.Qualifications),
		"projects", len(data.Projects),
	)

	c.JSON(http.StatusOK, data)
}
