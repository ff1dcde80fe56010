package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/services"
)

type CheckInHandler struct {
	doseService services.DoseService
}

func NewCheckInHandler(doseService services.DoseService) *CheckInHandler {
	return &CheckInHandler{doseService: doseService}
}

func (ch *CheckInHandler) LogCheckIn(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		DoseEventID *uuid.UUID `json:"dose_event_id"`
		RecordedAt  time.Time  `json:"timestamp"`
		Energy      int        `json:"energy"`
		Clarity     int        `json:"clarity"`
		Stability   int        `json:"stability"`
		BodyMap     []string   `json:"body_map"`
		Note        string     `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	checkIn := &domain.CheckIn{
		UserID:      userID,
		DoseEventID: req.DoseEventID,
		RecordedAt:  req.RecordedAt,
		Energy:      req.Energy,
		Clarity:     req.Clarity,
		Stability:   req.Stability,
		Note:        req.Note,
	}
	if len(req.BodyMap) > 0 {
		raw, err := json.Marshal(req.BodyMap)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body_map", err)
			return
		}
		checkIn.BodyMap = datatypes.JSON(raw)
	}
	created, err := ch.doseService.LogCheckIn(c.Request.Context(), checkIn)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_check_in", err)
		return
	}
	RespondCreated(c, created)
}

func (ch *CheckInHandler) ListCheckIns(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	checkIns, err := ch.doseService.ListCheckIns(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, checkIns)
}
