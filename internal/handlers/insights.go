package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/services"
)

type InsightsHandler struct {
	insightsService services.InsightsService
}

func NewInsightsHandler(insightsService services.InsightsService) *InsightsHandler {
	return &InsightsHandler{insightsService: insightsService}
}

func (ih *InsightsHandler) Summary(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	summary, err := ih.insightsService.Summary(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "insights_failed", err)
		return
	}
	RespondOK(c, summary)
}

// Threshold takes an optional batch_id query param; absent means the latest
// batch.
func (ih *InsightsHandler) Threshold(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	batchID := uuid.Nil
	if raw := c.Query("batch_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_batch_id", err)
			return
		}
		batchID = parsed
	}
	rng, err := ih.insightsService.Threshold(c.Request.Context(), userID, batchID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "threshold_failed", err)
		return
	}
	RespondOK(c, gin.H{"threshold": rng})
}

// Carryover takes an optional RFC3339 "at" query param; absent means now.
func (ih *InsightsHandler) Carryover(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	at := time.Time{}
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_at", fmt.Errorf("at must be RFC3339: %w", err))
			return
		}
		at = parsed
	}
	result, err := ih.insightsService.Carryover(c.Request.Context(), userID, at)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "carryover_failed", err)
		return
	}
	RespondOK(c, gin.H{"carryover": result})
}

func (ih *InsightsHandler) Patterns(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	detected, err := ih.insightsService.Patterns(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "patterns_failed", err)
		return
	}
	RespondOK(c, gin.H{"patterns": detected})
}
