package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jhyoong/bearmemori/pkg/models"
)

// CreateMemory handles POST /memories.
func (s *Server) CreateMemory(c *gin.Context) {
	var req models.CreateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	m, err := s.svc.Memories.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// GetMemory handles GET /memories/:id.
func (s *Server) GetMemory(c *gin.Context) {
	m, err := s.svc.Memories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// UpdateMemory handles PATCH /memories/:id.
func (s *Server) UpdateMemory(c *gin.Context) {
	var req models.UpdateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	m, err := s.svc.Memories.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteMemory handles DELETE /memories/:id.
func (s *Server) DeleteMemory(c *gin.Context) {
	if err := s.svc.Memories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTags handles GET /memories/:id/tags.
func (s *Server) ListTags(c *gin.Context) {
	tags, err := s.svc.Memories.Tags(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// AddTags handles POST /memories/:id/tags.
func (s *Server) AddTags(c *gin.Context) {
	var req models.AddTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	tags, err := s.svc.Tags.AddTags(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tags)
}

// DeleteTag handles DELETE /memories/:id/tags/:tag.
func (s *Server) DeleteTag(c *gin.Context) {
	if err := s.svc.Tags.DeleteTag(c.Request.Context(), c.Param("id"), c.Param("tag")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
