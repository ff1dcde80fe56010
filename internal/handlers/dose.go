package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evelark/doseline-backend/internal/domain"
	"github.com/evelark/doseline-backend/internal/engine"
	"github.com/evelark/doseline-backend/internal/repos"
	"github.com/evelark/doseline-backend/internal/services"
)

type DoseHandler struct {
	doseService services.DoseService
}

func NewDoseHandler(doseService services.DoseService) *DoseHandler {
	return &DoseHandler{doseService: doseService}
}

func (dh *DoseHandler) CreateBatch(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Substance     string  `json:"substance"`
		Unit          string  `json:"unit"`
		ReferenceDose float64 `json:"reference_dose"`
		HalfLifeHours float64 `json:"half_life_hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	batch, err := dh.doseService.CreateBatch(c.Request.Context(), &domain.DoseBatch{
		UserID:        userID,
		Substance:     req.Substance,
		Unit:          req.Unit,
		ReferenceDose: req.ReferenceDose,
		HalfLifeHours: req.HalfLifeHours,
	})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_batch", err)
		return
	}
	RespondCreated(c, batch)
}

func (dh *DoseHandler) ListBatches(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	batches, err := dh.doseService.ListBatches(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, batches)
}

func (dh *DoseHandler) LogDose(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		BatchID           uuid.UUID `json:"batch_id"`
		Amount            float64   `json:"amount"`
		Unit              string    `json:"unit"`
		TakenAt           time.Time `json:"timestamp"`
		FoodState         *string   `json:"food_state"`
		SleepQuality      *int      `json:"sleep_quality"`
		Environment       *string   `json:"environment"`
		CaffeineOffsetMin *int      `json:"caffeine_offset_min"`
		ExternalLoad      *int      `json:"external_load"`
		CycleDay          *int      `json:"cycle_day"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	event, err := dh.doseService.LogDose(c.Request.Context(), &domain.DoseEvent{
		UserID:            userID,
		BatchID:           req.BatchID,
		Amount:            req.Amount,
		Unit:              req.Unit,
		TakenAt:           req.TakenAt,
		FoodState:         req.FoodState,
		SleepQuality:      req.SleepQuality,
		Environment:       req.Environment,
		CaffeineOffsetMin: req.CaffeineOffsetMin,
		ExternalLoad:      req.ExternalLoad,
		CycleDay:          req.CycleDay,
	})
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_dose", err)
		return
	}
	RespondCreated(c, event)
}

func (dh *DoseHandler) ListDoses(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	doses, err := dh.doseService.ListDoses(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, doses)
}

// ImportHistory backfills a batch's dose and check-in history from an export.
func (dh *DoseHandler) ImportHistory(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		BatchID  uuid.UUID              `json:"batch_id"`
		Doses    []engine.RawDoseRow    `json:"doses"`
		CheckIns []engine.RawCheckInRow `json:"check_ins"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := dh.doseService.ImportHistory(c.Request.Context(), userID, req.BatchID, req.Doses, req.CheckIns)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "import_failed", err)
		return
	}
	RespondOK(c, result)
}

// CompleteScores is the single allowed post-dose mutation. A second attempt
// comes back 409.
func (dh *DoseHandler) CompleteScores(c *gin.Context) {
	userID, ok := authedUserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		Signal        *int                  `json:"signal"`
		Texture       *int                  `json:"texture"`
		Interference  *int                  `json:"interference"`
		ThresholdFeel *domain.ThresholdFeel `json:"threshold_feel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	event, err := dh.doseService.CompleteScores(c.Request.Context(), userID, eventID, services.CompleteScoresInput{
		Signal:        req.Signal,
		Texture:       req.Texture,
		Interference:  req.Interference,
		ThresholdFeel: req.ThresholdFeel,
	})
	if err != nil {
		if err == repos.ErrScoresAlreadyCompleted {
			RespondError(c, http.StatusConflict, "scores_completed", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "invalid_scores", err)
		return
	}
	RespondOK(c, event)
}
