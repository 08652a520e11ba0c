package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jhyoong/bearmemori/pkg/models"
)

// CreateEvent handles POST /events.
func (s *Server) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	e, err := s.svc.Events.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// ListEvents handles GET /events?owner_user_id=&status=.
func (s *Server) ListEvents(c *gin.Context) {
	owner, ok := queryOwner(c)
	if !ok {
		respondBadRequest(c, "owner_user_id is required")
		return
	}
	var status *models.EventStatus
	if raw := c.Query("status"); raw != "" {
		st := models.EventStatus(raw)
		status = &st
	}
	events, err := s.svc.Events.List(c.Request.Context(), owner, status, queryLimit(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetEvent handles GET /events/:id.
func (s *Server) GetEvent(c *gin.Context) {
	e, err := s.svc.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// UpdateEvent handles PATCH /events/:id.
func (s *Server) UpdateEvent(c *gin.Context) {
	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	e, err := s.svc.Events.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// DeleteEvent handles DELETE /events/:id.
func (s *Server) DeleteEvent(c *gin.Context) {
	if err := s.svc.Events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
