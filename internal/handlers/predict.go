package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/darshan-hindocha/plexe-technical/internal/modelerr"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/services"
)

type PredictHandler struct {
	log       *logger.Logger
	predictor services.PredictorService
}

func NewPredictHandler(log *logger.Logger, predictor services.PredictorService) *PredictHandler {
	return &PredictHandler{
		log:       log.With("handler", "PredictHandler"),
		predictor: predictor,
	}
}

// POST /api/v1/models/:id/predict
// body: { "features": { "<name>": <number>, ... } }
func (h *PredictHandler) Predict(c *gin.Context) {
	id, ok := parseModelID(c)
	if !ok {
		return
	}
	var req struct {
		Features map[string]float64 `json:"features"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Features) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("features are required"))
		return
	}

	res, err := h.predictor.Predict(c.Request.Context(), id, req.Features)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, res)
}

// POST /api/v1/models/:id/predict/batch
// body: { "features": [ {..}, {..} ] }
// Slots are positional; a failed item carries its own error envelope and the
// rest of the batch still succeeds.
func (h *PredictHandler) PredictBatch(c *gin.Context) {
	id, ok := parseModelID(c)
	if !ok {
		return
	}
	var req struct {
		Features []map[string]float64 `json:"features"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Features) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("features list is required"))
		return
	}

	items, err := h.predictor.PredictBatch(c.Request.Context(), id, req.Features)
	if err != nil {
		RespondFromError(c, err)
		return
	}

	slots := make([]any, len(items))
	for i, item := range items {
		if item.Err != nil {
			slots[i] = ErrorEnvelope{Error: APIError{
				Message: item.Err.Error(),
				Code:    modelerr.Code(item.Err),
			}}
			continue
		}
		slots[i] = item.Result
	}
	RespondOK(c, gin.H{"predictions": slots, "model_id": id, "total": len(slots)})
}

// POST /api/v1/models/:id/validate
// Dry-run feature check; never loads the model.
func (h *PredictHandler) Validate(c *gin.Context) {
	id, ok := parseModelID(c)
	if !ok {
		return
	}
	var req struct {
		Features map[string]float64 `json:"features"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := h.predictor.ValidateFeatures(c.Request.Context(), id, req.Features)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"valid":            res.Valid,
		"missing_features": res.Missing,
		"extra_features":   res.Extra,
		"model_id":         id,
	})
}
