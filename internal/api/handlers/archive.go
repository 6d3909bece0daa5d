package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfair/internal/archive"
	"github.com/orrn/printfair/internal/db"
)

type ArchiveHandler struct {
	store    *db.Store
	archiver *archive.Archiver
}

func NewArchiveHandler(store *db.Store, archiver *archive.Archiver) *ArchiveHandler {
	return &ArchiveHandler{store: store, archiver: archiver}
}

func (h *ArchiveHandler) ListArchivedJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	jobs, err := h.store.Archive.ListArchivedJobs(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list archived jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (h *ArchiveHandler) RunArchive(c *gin.Context) {
	moved, err := h.archiver.RunArchive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive pass failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"archived": moved})
}

func (h *ArchiveHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/archive", h.ListArchivedJobs)
	admin.POST("/archive/run", h.RunArchive)
}
