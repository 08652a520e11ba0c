package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jhyoong/bearmemori/pkg/models"
)

func queryOwner(c *gin.Context) (int64, bool) {
	raw := c.Query("owner_user_id")
	if raw == "" {
		raw = c.Query("owner")
	}
	owner, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || owner == 0 {
		return 0, false
	}
	return owner, true
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return limit
}

// CreateTask handles POST /tasks.
func (s *Server) CreateTask(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	t, err := s.svc.Tasks.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ListTasks handles GET /tasks?owner_user_id=&state=.
func (s *Server) ListTasks(c *gin.Context) {
	owner, ok := queryOwner(c)
	if !ok {
		respondBadRequest(c, "owner_user_id is required")
		return
	}
	var state *models.TaskState
	if raw := c.Query("state"); raw != "" {
		st := models.TaskState(raw)
		state = &st
	}
	tasks, err := s.svc.Tasks.List(c.Request.Context(), owner, state, queryLimit(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTask handles GET /tasks/:id.
func (s *Server) GetTask(c *gin.Context) {
	t, err := s.svc.Tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// UpdateTask handles PATCH /tasks/:id.
func (s *Server) UpdateTask(c *gin.Context) {
	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	t, err := s.svc.Tasks.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteTask handles DELETE /tasks/:id.
func (s *Server) DeleteTask(c *gin.Context) {
	if err := s.svc.Tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
