package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/client"
	"github.com/fluxwork/durable/internal/httpapi/response"
	"github.com/fluxwork/durable/internal/platform/logger"
)

type Handlers struct {
	client *client.Client
	log    *logger.Logger
}

func (h *Handlers) Health(c *gin.Context) {
	response.RespondOK(c, gin.H{"status": "ok"})
}

type registerProgramRequest struct {
	Name   string `json:"name" binding:"required"`
	Module []byte `json:"module" binding:"required"`
}

func (h *Handlers) RegisterProgram(c *gin.Context) {
	var req registerProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	program, err := h.client.RegisterProgram(c.Request.Context(), req.Name, req.Module)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "register_program_failed", err)
		return
	}
	response.RespondCreated(c, program)
}

type launchTaskRequest struct {
	Name      string `json:"name" binding:"required"`
	ProgramID int64  `json:"program_id" binding:"required"`
	// Module is optional: include it to let the launch re-register and
	// retry transparently if program_id has since been GC'd.
	Module []byte `json:"module"`
	Data   []byte `json:"data"`
}

func (h *Handlers) LaunchTask(c *gin.Context) {
	var req launchTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	task, err := h.client.LaunchTask(c.Request.Context(), req.Name, req.ProgramID, req.Module, req.Data)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "launch_task_failed", err)
		return
	}
	response.RespondCreated(c, task)
}

func (h *Handlers) GetTask(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_task_id", err)
		return
	}
	task, err := h.client.Task(id).Get(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	response.RespondOK(c, task)
}

func (h *Handlers) TaskEvents(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_task_id", err)
		return
	}
	from := fromParam(c)
	task := h.client.Task(id)

	if c.Query("follow") != "true" {
		events, err := task.Events(c.Request.Context(), from)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"events": events})
		return
	}

	streamSSE(c, func(ctx cancelCtx) {
		for e := range task.FollowEvents(ctx, from) {
			writeSSE(c, "event", e)
		}
	})
}

func (h *Handlers) TaskLogs(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_task_id", err)
		return
	}
	from := fromParam(c)
	task := h.client.Task(id)

	if c.Query("follow") != "true" {
		logs, err := task.Logs(c.Request.Context(), from)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"logs": logs})
		return
	}

	streamSSE(c, func(ctx cancelCtx) {
		for l := range task.FollowLogs(ctx, from) {
			writeSSE(c, "log", l)
		}
	})
}

func (h *Handlers) WaitTask(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_task_id", err)
		return
	}
	task, err := h.client.Task(id).Wait(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	response.RespondOK(c, task)
}

type notifyTaskRequest struct {
	Event string `json:"event" binding:"required"`
	Data  []byte `json:"data"`
}

func (h *Handlers) NotifyTask(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_task_id", err)
		return
	}
	var req notifyTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	n, err := h.client.Notify(c.Request.Context(), id, req.Event, req.Data)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "notify_failed", err)
		return
	}
	response.RespondCreated(c, n)
}

func taskIDParam(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func fromParam(c *gin.Context) int64 {
	v, err := strconv.ParseInt(c.Query("from"), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
}
