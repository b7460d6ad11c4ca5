// Package httpapi is the gin-based client-facing HTTP surface: a thin
// gin layer over internal/client, with a "follow=true" query parameter
// switching a read-all endpoint into a live SSE stream.
package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fluxwork/durable/internal/client"
	"github.com/fluxwork/durable/internal/httpapi/middleware"
	"github.com/fluxwork/durable/internal/platform/logger"
)

func NewRouter(c *client.Client, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("durable"))
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.Default())

	h := &Handlers{client: c, log: log}

	r.GET("/healthz", h.Health)

	v1 := r.Group("/v1")
	{
		v1.POST("/programs", h.RegisterProgram)
		v1.POST("/tasks", h.LaunchTask)
		v1.GET("/tasks/:id", h.GetTask)
		v1.GET("/tasks/:id/events", h.TaskEvents)
		v1.GET("/tasks/:id/logs", h.TaskLogs)
		v1.GET("/tasks/:id/wait", h.WaitTask)
		v1.POST("/tasks/:id/notifications", h.NotifyTask)
	}

	return r
}
