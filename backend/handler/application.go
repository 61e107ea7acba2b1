package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AnTengye/cvintake/backend/model"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
	"github.com/AnTengye/cvintake/backend/service"
	"github.com/gin-gonic/gin"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Submitter runs the intake pipeline for one form submission
type Submitter interface {
	Submit(ctx context.Context, in service.SubmissionInput) (*service.SubmissionResult, error)
}

// Exporter renders all applications as a workbook
type Exporter interface {
	ExportXLSX(ctx context.Context) ([]byte, error)
}

type ApplicationHandler struct {
	submitter   Submitter
	store       service.ApplicationStore
	exporter    Exporter
	blobs       service.BlobRemover
	maxUploadMB int64
}

// ApplicationDeps wires the handler. Blobs may be nil, then deletes keep the CV file.
type ApplicationDeps struct {
	Submitter   Submitter
	Store       service.ApplicationStore
	Exporter    Exporter
	Blobs       service.BlobRemover
	MaxUploadMB int64
}

func NewApplicationHandler(deps ApplicationDeps) *ApplicationHandler {
	return &ApplicationHandler{
		submitter:   deps.Submitter,
		store:       deps.Store,
		exporter:    deps.Exporter,
		blobs:       deps.Blobs,
		maxUploadMB: deps.MaxUploadMB,
	}
}

// Submit handles the public application form
func (h *ApplicationHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	upload, err := readCVUpload(c, "cv", h.maxUploadMB)
	if err != nil {
		if errors.Is(err, errNoFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		status, msg := uploadErrorResponse(err, h.maxUploadMB)
		logger.Warn(ctx, "application rejected", "error", err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	defer upload.Close()

	result, err := h.submitter.Submit(ctx, service.SubmissionInput{
		Name:              c.PostForm("name"),
		Email:             c.PostForm("email"),
		Phone:             c.PostForm("phone"),
		FileName:          upload.fileName,
		ContentType:       upload.contentType,
		Size:              upload.size,
		File:              upload.file,
		ExtractedDataJSON: c.PostForm("extractedData"),
		Production:        c.PostForm("isProduction") == "true",
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingFields) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		if errors.Is(err, service.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
			return
		}
		logger.Error(ctx, "application submission failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit application"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// List returns every application, newest first, without extracted data
func (h *ApplicationHandler) List(c *gin.Context) {
	apps, err := h.store.List(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list applications", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list applications"})
		return
	}

	result := make([]gin.H, len(apps))
	for i, app := range apps {
		result[i] = gin.H{
			"id":          app.ID,
			"name":        app.Name,
			"email":       app.Email,
			"phone":       app.Phone,
			"cvUrl":       app.CVURL,
			"fileName":    app.FileName,
			"status":      app.Status,
			"submittedAt": app.SubmittedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"applications": result})
}

// Get returns a single application with its extracted data
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Failed to load application")
		return
	}

	c.JSON(http.StatusOK, app)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus moves an application through the review workflow
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !model.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	ctx := logger.WithApplicationID(c.Request.Context(), c.Param("id"))
	if err := h.store.UpdateStatus(ctx, c.Param("id"), req.Status); err != nil {
		h.storeError(c, err, "Failed to update status")
		return
	}

	logger.Info(ctx, "application status updated", "status", req.Status)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": c.Param("id"), "status": req.Status})
}

// Delete removes an application and, when possible, its stored CV
func (h *ApplicationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx := logger.WithApplicationID(c.Request.Context(), id)

	app, err := h.store.Get(ctx, id)
	if err != nil {
		h.storeError(c, err, "Failed to delete application")
		return
	}

	if err := h.store.Delete(ctx, id); err != nil {
		h.storeError(c, err, "Failed to delete application")
		return
	}

	if h.blobs != nil && app.CVURL != "" {
		if err := h.blobs.RemoveCV(ctx, app.CVURL); err != nil {
			logger.Warn(ctx, "failed to remove cv file", "error", err)
		}
	}

	logger.Info(ctx, "application deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Application deleted"})
}

// Export streams all applications as an xlsx workbook
func (h *ApplicationHandler) Export(c *gin.Context) {
	data, err := h.exporter.ExportXLSX(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export applications"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+service.ExportFileName(time.Now())+`"`)
	c.Data(http.StatusOK, contentTypeXLSX, data)
}

func (h *ApplicationHandler) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found"})
		return
	}
	logger.Error(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
