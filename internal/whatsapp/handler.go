package whatsapp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legal-ease-backend/internal/shared/server/middleware"
	"legal-ease-backend/internal/shared/server/respond"
)

// Submitter queues inbound messages for asynchronous handling.
type Submitter interface {
	Submit(m Message) error
}

// Handler serves the Twilio webhook.
type Handler struct {
	Queue Submitter
}

// NewHandler constructs a Handler.
func NewHandler(queue Submitter) *Handler {
	return &Handler{Queue: queue}
}

// RegisterRoutes attaches the webhook routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/whatsapp", h.verify)
	rg.POST("/whatsapp", h.receive)
}

func (h *Handler) verify(c *gin.Context) {
	respond.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) receive(c *gin.Context) {
	m := Message{
		From:             strings.TrimSpace(c.PostForm("From")),
		Body:             c.PostForm("Body"),
		NumMedia:         parseNumMedia(c.PostForm("NumMedia")),
		MediaURL:         strings.TrimSpace(c.PostForm("MediaUrl0")),
		MediaContentType: strings.TrimSpace(c.PostForm("MediaContentType0")),
	}
	if m.From == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "From is required", nil)
		return
	}
	middleware.SetOwner(c, m.From)

	if err := h.Queue.Submit(m); err != nil {
		code := "busy"
		if errors.Is(err, ErrDispatcherStopped) {
			code = "shutting_down"
		}
		c.Header("Retry-After", "5")
		respond.Error(c, http.StatusServiceUnavailable, code, "Message queue is full, please retry", nil)
		return
	}
	respond.OK(c, gin.H{"status": "accepted"})
}
