package webapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"legal-ease-backend/internal/orchestrator"
	"legal-ease-backend/internal/session"
	"legal-ease-backend/internal/shared/server/middleware"
	"legal-ease-backend/internal/shared/server/respond"
	"legal-ease-backend/internal/shared/util"
	"legal-ease-backend/internal/usage"
)

// multipartOverhead leaves room for boundaries and form fields around the file part.
const multipartOverhead = 1 << 20

// Orchestrator is the subset of the orchestrator the web channel drives.
type Orchestrator interface {
	Upload(ctx context.Context, req orchestrator.UploadRequest) (orchestrator.Result, error)
	Ask(ctx context.Context, req orchestrator.QuestionRequest) (orchestrator.Result, error)
	Reset(ctx context.Context, req orchestrator.ResetRequest) (orchestrator.Result, error)
	Describe(ctx context.Context, owner string) (session.Session, error)
	Stats() session.Stats
}

// ActivitySummarizer reports ledger totals for the stats endpoint.
type ActivitySummarizer interface {
	Summary(ctx context.Context, since time.Time) (usage.Summary, error)
}

// Options configures the web handler.
type Options struct {
	AIProvider  string
	MaxFileSize int64
	StatsWindow time.Duration
	Now         func() time.Time
}

// Handler wires HTTP handlers to the orchestrator.
type Handler struct {
	Svc      Orchestrator
	Activity ActivitySummarizer
	opts     Options
}

// NewHandler constructs a Handler. activity may be nil.
func NewHandler(svc Orchestrator, activity ActivitySummarizer, opts Options) *Handler {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 10 << 20
	}
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Handler{Svc: svc, Activity: activity, opts: opts}
}

// RegisterPublicRoutes attaches routes that need no web session.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.health)
	rg.GET("/stats", h.stats)
}

// RegisterRoutes attaches session-scoped routes. The group must run the identity middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/question", h.question)
	rg.POST("/reset", h.reset)
	rg.GET("/session", h.session)
}

func (h *Handler) health(c *gin.Context) {
	respond.OK(c, gin.H{
		"status":     "healthy",
		"aiProvider": h.opts.AIProvider,
		"sessions":   h.Svc.Stats().Total,
	})
}

func (h *Handler) analyze(c *gin.Context) {
	owner := middleware.OwnerFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxFileSize+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, orchestrator.CodeFileTooLarge,
				"File too large. Maximum size is "+util.FormatSize(h.opts.MaxFileSize), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, orchestrator.CodeInvalidFile, "No file provided", nil)
		return
	}
	if fileHeader.Size > h.opts.MaxFileSize {
		respond.Error(c, http.StatusRequestEntityTooLarge, orchestrator.CodeFileTooLarge,
			"File too large. Maximum size is "+util.FormatSize(h.opts.MaxFileSize), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, orchestrator.CodeInvalidFile, "Unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.opts.MaxFileSize+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, orchestrator.CodeInvalidFile, "Unable to read file", nil)
		return
	}

	res, err := h.Svc.Upload(c.Request.Context(), orchestrator.UploadRequest{
		Owner:    owner,
		Channel:  orchestrator.ChannelWeb,
		Filename: fileHeader.Filename,
		Data:     data,
	})
	h.write(c, res, err)
}

type questionRequest struct {
	Question string `json:"question"`
}

func (h *Handler) question(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, orchestrator.CodeInvalidQuestion, "Invalid request body", nil)
		return
	}

	res, err := h.Svc.Ask(c.Request.Context(), orchestrator.QuestionRequest{
		Owner:    middleware.OwnerFromContext(c),
		Channel:  orchestrator.ChannelWeb,
		Question: req.Question,
	})
	h.write(c, res, err)
}

func (h *Handler) reset(c *gin.Context) {
	res, err := h.Svc.Reset(c.Request.Context(), orchestrator.ResetRequest{
		Owner:   middleware.OwnerFromContext(c),
		Channel: orchestrator.ChannelWeb,
	})
	h.write(c, res, err)
}

func (h *Handler) session(c *gin.Context) {
	sess, err := h.Svc.Describe(c.Request.Context(), middleware.OwnerFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			respond.Error(c, http.StatusNotFound, "document_not_found", "No active document session", nil)
		default:
			respond.Error(c, http.StatusServiceUnavailable, "session_unavailable", "Session store unavailable", nil)
		}
		return
	}
	respond.OK(c, toSessionResponse(middleware.SessionIDFromContext(c), sess))
}

func (h *Handler) stats(c *gin.Context) {
	payload := gin.H{"sessions": h.Svc.Stats()}
	if h.Activity != nil {
		summary, err := h.Activity.Summary(c.Request.Context(), h.opts.Now().Add(-h.opts.StatsWindow))
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load activity summary", nil)
			return
		}
		payload["activity"] = summary
	}
	respond.OK(c, payload)
}

func (h *Handler) write(c *gin.Context, res orchestrator.Result, err error) {
	if err != nil {
		middleware.SetOutcome(c, "store_error")
		respond.Error(c, http.StatusServiceUnavailable, "session_unavailable", "Session store unavailable", nil)
		return
	}
	middleware.SetOutcome(c, string(res.Outcome()))

	reply := orchestrator.Render[httpReply](replies{sessionID: middleware.SessionIDFromContext(c)}, res)
	if reply.retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(reply.retryAfter))
	}
	if reply.code != "" {
		respond.Error(c, reply.status, reply.code, reply.message, reply.details)
		return
	}
	respond.JSON(c, reply.status, reply.body)
}
