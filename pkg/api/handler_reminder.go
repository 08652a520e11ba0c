package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jhyoong/bearmemori/pkg/models"
)

// CreateReminder handles POST /reminders.
func (s *Server) CreateReminder(c *gin.Context) {
	var req models.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	r, err := s.svc.Reminders.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListReminders handles GET /reminders?owner_user_id=&fired=&upcoming_only=.
func (s *Server) ListReminders(c *gin.Context) {
	owner, ok := queryOwner(c)
	if !ok {
		respondBadRequest(c, "owner_user_id is required")
		return
	}
	params := models.ListRemindersParams{
		OwnerUserID: owner,
		Limit:       queryLimit(c),
	}
	if raw := c.Query("fired"); raw != "" {
		fired, err := strconv.ParseBool(raw)
		if err != nil {
			respondBadRequest(c, "fired must be a boolean")
			return
		}
		params.Fired = &fired
	}
	if raw := c.Query("upcoming_only"); raw == "" {
		raw = c.Query("upcoming")
		params.UpcomingOnly = raw == "true"
	} else {
		params.UpcomingOnly = raw == "true"
	}

	reminders, err := s.svc.Reminders.List(c.Request.Context(), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

// GetReminder handles GET /reminders/:id.
func (s *Server) GetReminder(c *gin.Context) {
	r, err := s.svc.Reminders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// UpdateReminder handles PATCH /reminders/:id.
func (s *Server) UpdateReminder(c *gin.Context) {
	var req models.UpdateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	r, err := s.svc.Reminders.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// DeleteReminder handles DELETE /reminders/:id.
func (s *Server) DeleteReminder(c *gin.Context) {
	if err := s.svc.Reminders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
