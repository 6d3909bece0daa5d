package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfair/internal/core"
	"github.com/orrn/printfair/internal/db"
)

type CreateJobRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
	FileRef string `json:"file_ref"`
}

type ApproveJobRequest struct {
	RawCost          float64 `json:"raw_cost" binding:"required"`
	EstimatedMinutes int     `json:"estimated_minutes" binding:"required"`
	AdminNotes       string  `json:"admin_notes"`
	IsPaid           bool    `json:"is_paid"`
}

type RejectJobRequest struct {
	AdminNotes string `json:"admin_notes"`
}

type CompleteJobRequest struct {
	ActualMinutes int   `json:"actual_minutes"`
	IsPaid        *bool `json:"is_paid"`
}

type FailJobRequest struct {
	AdminNotes string `json:"admin_notes"`
}

type ListJobsQuery struct {
	UserID   string `form:"user_id"`
	Status   string `form:"status"`
	FromDate string `form:"from_date"`
	ToDate   string `form:"to_date"`
	Limit    int    `form:"limit" binding:"max=100"`
	Offset   int    `form:"offset"`
}

type QueueEntry struct {
	Position      int       `json:"position"`
	JobID         int64     `json:"job_id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	PriorityScore float64   `json:"priority_score"`
	EstimatedMin  int       `json:"estimated_minutes"`
	CreatedAt     time.Time `json:"created_at"`
}

type JobStatsResponse struct {
	PendingReview int64 `json:"pending_review"`
	Queued        int64 `json:"queued"`
	Printing      int64 `json:"printing"`
	Completed     int64 `json:"completed"`
	Rejected      int64 `json:"rejected"`
	Failed        int64 `json:"failed"`
	Total         int64 `json:"total"`
}

type JobHandler struct {
	store     *db.Store
	lifecycle *core.Lifecycle
}

func NewJobHandler(store *db.Store, lifecycle *core.Lifecycle) *JobHandler {
	return &JobHandler{
		store:     store,
		lifecycle: lifecycle,
	}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.lifecycle.Submit(c.Request.Context(), core.SubmitInput{
		UserID:  req.UserID,
		Title:   req.Title,
		FileRef: req.FileRef,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if query.Limit <= 0 {
		query.Limit = 50
	}

	filter := db.JobFilter{
		UserID: query.UserID,
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}

	if query.FromDate != "" {
		if t, err := time.Parse("2006-01-02", query.FromDate); err == nil {
			filter.FromDate = &t
		}
	}
	if query.ToDate != "" {
		if t, err := time.Parse("2006-01-02", query.ToDate); err == nil {
			endOfDay := t.Add(24*time.Hour - time.Second)
			filter.ToDate = &endOfDay
		}
	}

	jobs, err := h.store.Jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  query.Limit,
		"offset": query.Offset,
		"count":  len(jobs),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.store.Jobs.GetJobByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetQueue returns the queued jobs in execution order: highest priority
// score first, earlier submission winning ties.
func (h *JobHandler) GetQueue(c *gin.Context) {
	jobs, err := h.store.Jobs.ListQueued(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list queue"})
		return
	}

	entries := make([]QueueEntry, 0, len(jobs))
	for i, job := range jobs {
		entries = append(entries, QueueEntry{
			Position:      i + 1,
			JobID:         job.ID,
			UserID:        job.UserID,
			Title:         job.Title,
			PriorityScore: job.PriorityScore,
			EstimatedMin:  job.EstimatedMinutes,
			CreatedAt:     job.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"queue": entries, "count": len(entries)})
}

func (h *JobHandler) ApproveJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	var req ApproveJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.lifecycle.Approve(c.Request.Context(), id, core.ApproveInput{
		RawCost:          req.RawCost,
		EstimatedMinutes: req.EstimatedMinutes,
		AdminNotes:       req.AdminNotes,
		IsPaid:           req.IsPaid,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "job_approved", id, gin.H{"raw_cost": req.RawCost, "estimated_minutes": req.EstimatedMinutes})
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) RejectJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	var req RejectJobRequest
	c.ShouldBindJSON(&req)

	job, err := h.lifecycle.Reject(c.Request.Context(), id, req.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "job_rejected", id, gin.H{"admin_notes": req.AdminNotes})
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) StartJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.lifecycle.Start(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "job_started", id, nil)
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) CompleteJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	var req CompleteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.lifecycle.Complete(c.Request.Context(), id, core.CompleteInput{
		ActualMinutes: req.ActualMinutes,
		IsPaid:        req.IsPaid,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "job_completed", id, gin.H{"actual_minutes": req.ActualMinutes})
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) FailJob(c *gin.Context) {
	id, ok := parseJobID(c)
	if !ok {
		return
	}

	var req FailJobRequest
	c.ShouldBindJSON(&req)

	job, err := h.lifecycle.Fail(c.Request.Context(), id, req.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit(c, "job_failed", id, gin.H{"admin_notes": req.AdminNotes})
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) GetJobStats(c *gin.Context) {
	counts, err := h.store.Jobs.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count jobs"})
		return
	}

	resp := JobStatsResponse{
		PendingReview: counts[string(core.StatusPendingReview)],
		Queued:        counts[string(core.StatusQueued)],
		Printing:      counts[string(core.StatusPrinting)],
		Completed:     counts[string(core.StatusCompleted)],
		Rejected:      counts[string(core.StatusRejected)],
		Failed:        counts[string(core.StatusFailed)],
	}
	for _, count := range counts {
		resp.Total += count
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) audit(c *gin.Context, action string, jobID int64, details gin.H) {
	detailsJSON := "{}"
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			detailsJSON = string(data)
		}
	}

	entry := &db.AuditLog{
		Action:      action,
		EntityType:  "print_job",
		EntityID:    jobID,
		DetailsJSON: detailsJSON,
		IPAddress:   c.ClientIP(),
	}
	if err := h.store.Audit.CreateAuditLog(c.Request.Context(), entry); err != nil {
		log.Printf("[api] failed to write audit log for %s on job %d: %v", action, jobID, err)
	}
}

func parseJobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return 0, false
	}
	return id, true
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup, admin *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs", h.CreateJob)
	r.GET("/jobs/queue", h.GetQueue)
	r.GET("/jobs/stats", h.GetJobStats)
	r.GET("/jobs/:id", h.GetJob)

	admin.POST("/jobs/:id/approve", h.ApproveJob)
	admin.POST("/jobs/:id/reject", h.RejectJob)
	admin.POST("/jobs/:id/start", h.StartJob)
	admin.POST("/jobs/:id/complete", h.CompleteJob)
	admin.POST("/jobs/:id/fail", h.FailJob)
}
