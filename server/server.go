// Package server exposes a tool registry, and optionally an agent, over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/toolmesh/agent"
	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/session"
	"github.com/hupe1980/toolmesh/tool"
)

// RequestIDHeader carries the per-request id, generated when absent.
const RequestIDHeader = "X-Request-ID"

// Options configure the HTTP handler.
type Options struct {
	// DefaultUserID is used when a request carries no user_id.
	DefaultUserID string

	// Agent enables POST /chat when set.
	Agent *agent.Agent

	// Sessions keeps /chat transcripts for requests carrying a session_id.
	// Defaults to an in-memory store bounded to 50 contents per session.
	Sessions core.SessionStore

	// RequestTimeout bounds a single tool call or chat run.
	RequestTimeout time.Duration

	Logger logging.Logger
}

type callRequest struct {
	UserID    string          `json:"user_id"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

type handler struct {
	registry *tool.Registry
	opts     Options
}

// New returns a gin engine serving:
//
//	GET  /healthz
//	GET  /tools
//	POST /tools/:name   {"user_id": "...", "arguments": {...}}
//	POST /chat          {"user_id": "...", "session_id": "...", "message": "..."}
//	DELETE /chat/:session_id
//
// The chat routes exist only when Options.Agent is set.
func New(registry *tool.Registry, optFns ...func(o *Options)) *gin.Engine {
	opts := Options{
		RequestTimeout: 2 * time.Minute,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore(50)
	}

	h := &handler{registry: registry, opts: opts}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(opts.Logger))

	r.GET("/healthz", h.health)
	r.GET("/tools", h.listTools)
	r.POST("/tools/:name", h.callTool)

	if opts.Agent != nil {
		r.POST("/chat", h.chat)
		r.DELETE("/chat/:session_id", h.endChat)
	}

	return r
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.registry.Definitions()})
}

func (h *handler) callTool(c *gin.Context) {
	name := c.Param("name")

	var req callRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
	defer cancel()

	runCtx := core.NewRunContext(ctx, h.userID(req.UserID), c.GetString(requestIDKey), 0, h.opts.Logger)
	toolCtx := core.NewToolContext(runCtx, "call_"+core.NewID())

	result, err := h.registry.Call(toolCtx, name, req.Arguments)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"tool": name, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tool": name, "result": result})
}

func (h *handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
	defer cancel()

	var history []core.Content

	if req.SessionID != "" {
		loaded, err := h.opts.Sessions.Load(ctx, req.SessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		history = loaded
	}

	history = append(history, core.NewTextContent(core.RoleUser, req.Message))

	res, err := h.opts.Agent.RunContents(ctx, h.userID(req.UserID), history)
	if err != nil {
		h.opts.Logger.Error("server.chat.error", "run", res.RunID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"run_id": res.RunID, "error": err.Error()})
		return
	}

	if req.SessionID != "" {
		if err := h.opts.Sessions.Save(ctx, req.SessionID, res.Contents); err != nil {
			h.opts.Logger.Error("server.chat.session_save", "session_id", req.SessionID, "error", err.Error())
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      res.RunID,
		"session_id":  req.SessionID,
		"reply":       res.Text,
		"model_calls": res.ModelCalls,
	})
}

func (h *handler) endChat(c *gin.Context) {
	if err := h.opts.Sessions.Delete(c.Request.Context(), c.Param("session_id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) userID(id string) string {
	if id == "" {
		return h.opts.DefaultUserID
	}
	return id
}

func statusFor(err error) int {
	var toolErr *tool.ToolError
	if !errors.As(err, &toolErr) {
		return http.StatusInternalServerError
	}

	switch toolErr.Code {
	case tool.CodeNotFound:
		return http.StatusNotFound
	case tool.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
