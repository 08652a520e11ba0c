// Package api exposes the core REST surface over the service layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/metrics"
	"github.com/jhyoong/bearmemori/pkg/services"
	"github.com/jhyoong/bearmemori/pkg/streams"
	"github.com/jhyoong/bearmemori/pkg/version"
)

// Services bundles the service layer handed to the server.
type Services struct {
	Memories  *services.MemoryService
	Tags      *services.TagService
	Tasks     *services.TaskService
	Reminders *services.ReminderService
	Events    *services.EventService
	Settings  *services.SettingsService
	Jobs      *services.JobService
	Backups   *services.BackupService
	Search    *services.SearchService
	Audit     *services.AuditService
}

// Server is the core REST server.
type Server struct {
	db     *database.Client
	broker *streams.Client
	svc    Services
}

// NewServer creates the REST server over the service layer.
func NewServer(db *database.Client, broker *streams.Client, svc Services) *Server {
	return &Server{db: db, broker: broker, svc: svc}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())

	r.GET("/health", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/memories", s.CreateMemory)
	r.GET("/memories/:id", s.GetMemory)
	r.PATCH("/memories/:id", s.UpdateMemory)
	r.DELETE("/memories/:id", s.DeleteMemory)
	r.GET("/memories/:id/tags", s.ListTags)
	r.POST("/memories/:id/tags", s.AddTags)
	r.DELETE("/memories/:id/tags/:tag", s.DeleteTag)

	r.POST("/tasks", s.CreateTask)
	r.GET("/tasks", s.ListTasks)
	r.GET("/tasks/:id", s.GetTask)
	r.PATCH("/tasks/:id", s.UpdateTask)
	r.DELETE("/tasks/:id", s.DeleteTask)

	r.POST("/reminders", s.CreateReminder)
	r.GET("/reminders", s.ListReminders)
	r.GET("/reminders/:id", s.GetReminder)
	r.PATCH("/reminders/:id", s.UpdateReminder)
	r.DELETE("/reminders/:id", s.DeleteReminder)

	r.POST("/events", s.CreateEvent)
	r.GET("/events", s.ListEvents)
	r.GET("/events/:id", s.GetEvent)
	r.PATCH("/events/:id", s.UpdateEvent)
	r.DELETE("/events/:id", s.DeleteEvent)

	r.GET("/search", s.Search)

	r.GET("/settings/:user_id", s.GetSettings)
	r.PUT("/settings/:user_id", s.UpsertSettings)

	r.GET("/audit", s.QueryAudit)

	r.POST("/llm_jobs", s.CreateJob)
	r.GET("/llm_jobs", s.ListJobs)
	r.GET("/llm_jobs/:id", s.GetJob)
	r.PATCH("/llm_jobs/:id", s.UpdateJob)

	r.POST("/backup/:user_id", s.RequestBackup)
	r.GET("/backup/status/:user_id", s.BackupStatus)

	return r
}

// Health reports store and broker connectivity.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth := database.Health(ctx, s.db)
	brokerOK := true
	if err := s.broker.Ping(ctx); err != nil {
		brokerOK = false
	}

	status := http.StatusOK
	state := "healthy"
	if !dbHealth.Connected || !brokerOK {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":   state,
		"version":  version.Version,
		"database": dbHealth,
		"broker":   brokerOK,
	})
}
