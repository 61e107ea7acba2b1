package handler

import (
	"context"
	"net/http"

	"github.com/AnTengye/cvintake/backend/pkg/logger"
	"github.com/AnTengye/cvintake/backend/service"
	"github.com/gin-gonic/gin"
)

// Dispatcher sends whatever follow-up e-mails are due
type Dispatcher interface {
	DispatchDue(ctx context.Context) ([]service.EmailResult, error)
}

type EmailHandler struct {
	dispatcher Dispatcher
}

func NewEmailHandler(dispatcher Dispatcher) *EmailHandler {
	return &EmailHandler{dispatcher: dispatcher}
}

// SendScheduled is triggered by a scheduler to flush due follow-up e-mails
func (h *EmailHandler) SendScheduled(c *gin.Context) {
	ctx := c.Request.Context()

	results, err := h.dispatcher.DispatchDue(ctx)
	if err != nil {
		logger.Error(ctx, "failed to process scheduled emails", "error", err, "processed", len(results))
		resp := gin.H{"error": "Failed to process scheduled emails"}
		// Emails already handled before the failure are still reported.
		if len(results) > 0 {
			resp["processed"] = len(results)
			resp["results"] = results
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	if len(results) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No emails to send"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": len(results),
		"results":   results,
	})
}
