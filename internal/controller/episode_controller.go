package controller

import (
	"io"
	"net/http"

	"order-workflow-service/internal/dto"
	"order-workflow-service/internal/model"
	"order-workflow-service/internal/service"

	"github.com/gin-gonic/gin"
)

// EpisodeController exposes the admin-side episode workflow. All routes
// sit behind the admin middleware; the actor comes from the auth context.
type EpisodeController struct {
	Service *service.EpisodeStatusService
}

func NewEpisodeController(s *service.EpisodeStatusService) *EpisodeController {
	return &EpisodeController{Service: s}
}

// POST /admin/episodes
func (ctl *EpisodeController) CreateEpisode(c *gin.Context) {
	var req dto.CreateEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := ctl.Service.CreateEpisode(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, e)
}

// GET /admin/episodes — optional ?status= filter
func (ctl *EpisodeController) ListEpisodes(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		episodes, err := ctl.Service.GetByStatus(c.Request.Context(), model.EpisodeStatus(status))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, episodes)
		return
	}

	episodes, err := ctl.Service.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, episodes)
}

// GET /admin/episodes/:episodeId
func (ctl *EpisodeController) GetEpisode(c *gin.Context) {
	e, err := ctl.Service.GetByID(c.Request.Context(), c.Param("episodeId"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

// GET /admin/episodes/:episodeId/audit — newest first
func (ctl *EpisodeController) GetEpisodeAudit(c *gin.Context) {
	trail, err := ctl.Service.AuditTrail(c.Request.Context(), c.Param("episodeId"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trail)
}

// POST /admin/episodes/:episodeId/provider-completed
func (ctl *EpisodeController) MarkProviderCompleted(c *gin.Context) {
	var req dto.ProviderCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := ctl.Service.MarkProviderCompleted(c.Request.Context(), c.Param("episodeId"), req.IVRSubmissionID, c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

// POST /admin/episodes/:episodeId/review
func (ctl *EpisodeController) Review(c *gin.Context) {
	e, err := ctl.Service.Review(c.Request.Context(), c.Param("episodeId"), c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

// POST /admin/episodes/:episodeId/send-to-manufacturer
func (ctl *EpisodeController) SendToManufacturer(c *gin.Context) {
	var req dto.SendToManufacturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := ctl.Service.SendToManufacturer(c.Request.Context(), c.Param("episodeId"), req.Recipients, req.Notes, c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

// POST /admin/episodes/:episodeId/tracking
func (ctl *EpisodeController) AddTracking(c *gin.Context) {
	var req dto.AddTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := ctl.Service.AddTracking(c.Request.Context(), c.Param("episodeId"), req.Carrier, req.TrackingNumber, req.EstimatedDelivery, c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

// POST /admin/episodes/:episodeId/complete
func (ctl *EpisodeController) MarkCompleted(c *gin.Context) {
	e, err := ctl.Service.MarkCompleted(c.Request.Context(), c.Param("episodeId"), c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

// POST /admin/episodes/:episodeId/documents — multipart: file + type
func (ctl *EpisodeController) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docType := model.DocumentType(c.PostForm("type"))
	if docType == "" {
		docType = model.DocOther
	}

	doc, err := ctl.Service.UploadDocument(c.Request.Context(), c.Param("episodeId"), service.UploadDocumentInput{
		Name:     fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Type:     docType,
		Content:  content,
	}, c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// DELETE /admin/episodes/:episodeId/documents/:documentId
// Deleting an unknown document id is not an error.
func (ctl *EpisodeController) DeleteDocument(c *gin.Context) {
	err := ctl.Service.DeleteDocument(c.Request.Context(), c.Param("episodeId"), c.Param("documentId"), c.GetString("userID"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document removed"})
}
