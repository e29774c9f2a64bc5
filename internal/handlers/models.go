package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/services"
)

type ModelHandler struct {
	log      *logger.Logger
	registry services.RegistryService
}

func NewModelHandler(log *logger.Logger, registry services.RegistryService) *ModelHandler {
	return &ModelHandler{
		log:      log.With("handler", "ModelHandler"),
		registry: registry,
	}
}

// POST /api/v1/models/upload
// multipart: file, name, description?, parent_model_id?
func (h *ModelHandler) Upload(c *gin.Context) {
	data, filename, ok := readArtifactFile(c)
	if !ok {
		return
	}

	in := services.RegisterInput{
		Name:        strings.TrimSpace(c.PostForm("name")),
		Description: c.PostForm("description"),
		Filename:    filename,
		Data:        data,
	}
	if raw := c.PostForm("parent_model_id"); raw != "" {
		parentID, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid parent_model_id: %w", err))
			return
		}
		in.ParentID = &parentID
	}
	if in.Name == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("name is required"))
		return
	}

	rec, err := h.registry.Register(c.Request.Context(), in)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondCreated(c, rec)
}

// POST /api/v1/models/preview
// Inspect an artifact without registering it, for the upload form.
func (h *ModelHandler) Preview(c *gin.Context) {
	data, filename, ok := readArtifactFile(c)
	if !ok {
		return
	}

	preview, err := h.registry.Preview(data, filename)
	if err != nil {
		RespondFromError(c, err)
		return
	}

	available, err := h.registry.List(c.Request.Context(), true)
	if err != nil {
		RespondFromError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"model_info": gin.H{
			"model_kind":    preview.Info.Kind,
			"objective":     preview.Info.Objective,
			"feature_names": preview.Info.FeatureNames,
			"n_features":    preview.Info.NumFeatures,
			"n_classes":     preview.Info.NumClasses,
			"file_size":     preview.FileSize,
			"filename":      filename,
		},
		"suggested_name":   preview.SuggestedName,
		"available_models": available,
	})
}

// GET /api/v1/models?latest_only=
func (h *ModelHandler) List(c *gin.Context) {
	latestOnly := c.Query("latest_only") == "true"
	records, err := h.registry.List(c.Request.Context(), latestOnly)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"models": records, "total": len(records)})
}

// GET /api/v1/models/:id
func (h *ModelHandler) Get(c *gin.Context) {
	id, ok := parseModelID(c)
	if !ok {
		return
	}
	rec, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, rec)
}

// GET /api/v1/models/:id/versions
// Every version of the family the record belongs to, oldest first.
func (h *ModelHandler) GetVersions(c *gin.Context) {
	id, ok := parseModelID(c)
	if !ok {
		return
	}
	rec, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	versions, err := h.registry.GetVersions(c.Request.Context(), rec.Name)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"model_name": rec.Name, "versions": versions, "total": len(versions)})
}

// DELETE /api/v1/models/:id
func (h *ModelHandler) Delete(c *gin.Context) {
	id, ok := parseModelID(c)
	if !ok {
		return
	}
	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		RespondFromError(c, err)
		return
	}
	h.log.Info("deleted model", "model_id", id)
	RespondOK(c, gin.H{"message": fmt.Sprintf("model %s deleted", id)})
}

func parseModelID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid model id: %w", err))
		return uuid.Nil, false
	}
	return id, true
}

// readArtifactFile pulls the uploaded artifact out of the multipart form.
// The request body size cap is enforced by the router middleware, not here.
func readArtifactFile(c *gin.Context) (data []byte, filename string, ok bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("file is required: %w", err))
		return nil, "", false
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("open upload: %w", err))
		return nil, "", false
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("read upload: %w", err))
		return nil, "", false
	}
	return data, fileHeader.Filename, true
}
