package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jhyoong/bearmemori/pkg/models"
)

// Search handles GET /search?q=&owner=&pinned=&limit=&offset=.
func (s *Server) Search(c *gin.Context) {
	owner, ok := queryOwner(c)
	if !ok {
		respondBadRequest(c, "owner is required")
		return
	}
	pinned := c.Query("pinned") == "true"
	offset, _ := strconv.Atoi(c.Query("offset"))

	results, err := s.svc.Search.Search(c.Request.Context(), owner, c.Query("q"), pinned, queryLimit(c), offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	c.JSON(http.StatusOK, results)
}

func paramUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		return 0, false
	}
	return userID, true
}

// GetSettings handles GET /settings/:user_id.
func (s *Server) GetSettings(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		respondBadRequest(c, "invalid user id")
		return
	}
	settings, err := s.svc.Settings.Get(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpsertSettings handles PUT /settings/:user_id.
func (s *Server) UpsertSettings(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		respondBadRequest(c, "invalid user id")
		return
	}
	var req models.UpsertSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	settings, err := s.svc.Settings.Upsert(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// QueryAudit handles GET /audit.
func (s *Server) QueryAudit(c *gin.Context) {
	offset, _ := strconv.Atoi(c.Query("offset"))
	params := models.AuditQueryParams{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
		Actor:      c.Query("actor"),
		Limit:      queryLimit(c),
		Offset:     offset,
	}
	records, err := s.svc.Audit.Query(c.Request.Context(), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if records == nil {
		records = []models.AuditRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// CreateJob handles POST /llm_jobs.
func (s *Server) CreateJob(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	job, err := s.svc.Jobs.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// ListJobs handles GET /llm_jobs?status=&job_type=.
func (s *Server) ListJobs(c *gin.Context) {
	var status *models.JobStatus
	if raw := c.Query("status"); raw != "" {
		st := models.JobStatus(raw)
		status = &st
	}
	jobs, err := s.svc.Jobs.List(c.Request.Context(), status, c.Query("job_type"), queryLimit(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if jobs == nil {
		jobs = []models.LLMJob{}
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJob handles GET /llm_jobs/:id.
func (s *Server) GetJob(c *gin.Context) {
	job, err := s.svc.Jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// UpdateJob handles PATCH /llm_jobs/:id.
func (s *Server) UpdateJob(c *gin.Context) {
	var req models.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	job, err := s.svc.Jobs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// RequestBackup handles POST /backup/:user_id.
func (s *Server) RequestBackup(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		respondBadRequest(c, "invalid user id")
		return
	}
	job, err := s.svc.Backups.Request(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// BackupStatus handles GET /backup/status/:user_id.
func (s *Server) BackupStatus(c *gin.Context) {
	userID, ok := paramUserID(c)
	if !ok {
		respondBadRequest(c, "invalid user id")
		return
	}
	// Latest run for the user; 404 when none exists.
	jobs, err := s.svc.Backups.ListByUser(c.Request.Context(), userID, 1)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if len(jobs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	c.JSON(http.StatusOK, jobs[0])
}
