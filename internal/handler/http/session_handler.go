package http

import (
	"context"
	"io"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/dto"
	"github.com/yokitheyo/imageeditor/internal/session"
)

type SessionService interface {
	OpenSession(ctx context.Context, imageID string) (*session.Session, error)
	Session(id string) (*session.Session, error)
	CloseSession(id string) error
	SetDraft(id string, field domain.DraftField, value any) (domain.DraftState, error)
	Undo(id string) (domain.DraftState, bool, error)
	Redo(id string) (domain.DraftState, bool, error)
	Enqueue(id string, d domain.Descriptor) (int, error)
	Queue(id string) ([]domain.Descriptor, error)
	ClearQueue(id string) error
	CommitSession(ctx context.Context, id string) (domain.Image, error)
	CancelSession(id string) (bool, error)
}

type SessionHandler struct {
	service SessionService
}

func NewSessionHandler(service SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

func (h *SessionHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.POST("/sessions", h.Open)
	engine.GET("/sessions/:sid", h.Get)
	engine.DELETE("/sessions/:sid", h.Close)
	engine.PATCH("/sessions/:sid/draft", h.SetDraft)
	engine.POST("/sessions/:sid/undo", h.Undo)
	engine.POST("/sessions/:sid/redo", h.Redo)
	engine.POST("/sessions/:sid/queue", h.Enqueue)
	engine.GET("/sessions/:sid/queue", h.ListQueue)
	engine.DELETE("/sessions/:sid/queue", h.ClearQueue)
	engine.POST("/sessions/:sid/commit", h.Commit)
	engine.POST("/sessions/:sid/cancel", h.Cancel)
}

// Open POST /sessions
func (h *SessionHandler) Open(c *ginext.Context) {
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "image_id is required")
		return
	}

	s, err := h.service.OpenSession(c.Request.Context(), req.ImageID)
	if err != nil {
		respondError(c, err, "failed to open session")
		return
	}
	c.JSON(http.StatusCreated, dto.MapSession(s, baseURL(c)))
}

// Get GET /sessions/:sid
func (h *SessionHandler) Get(c *ginext.Context) {
	s, err := h.service.Session(c.Param("sid"))
	if err != nil {
		respondError(c, err, "failed to get session")
		return
	}
	c.JSON(http.StatusOK, dto.MapSession(s, baseURL(c)))
}

// Close DELETE /sessions/:sid
func (h *SessionHandler) Close(c *ginext.Context) {
	if err := h.service.CloseSession(c.Param("sid")); err != nil {
		respondError(c, err, "failed to close session")
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDraft PATCH /sessions/:sid/draft
func (h *SessionHandler) SetDraft(c *ginext.Context) {
	var req dto.DraftChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "field and value are required")
		return
	}
	value, err := req.DecodeValue()
	if err != nil {
		badRequest(c, "value is not valid JSON")
		return
	}

	draft, err := h.service.SetDraft(c.Param("sid"), domain.DraftField(req.Field), value)
	if err != nil {
		respondError(c, err, "failed to change draft")
		return
	}
	c.JSON(http.StatusOK, ginext.H{"draft": draft})
}

// Undo POST /sessions/:sid/undo
func (h *SessionHandler) Undo(c *ginext.Context) {
	h.step(c, h.service.Undo)
}

// Redo POST /sessions/:sid/redo
func (h *SessionHandler) Redo(c *ginext.Context) {
	h.step(c, h.service.Redo)
}

func (h *SessionHandler) step(c *ginext.Context, move func(string) (domain.DraftState, bool, error)) {
	draft, moved, err := move(c.Param("sid"))
	if err != nil {
		respondError(c, err, "failed to move through history")
		return
	}
	c.JSON(http.StatusOK, ginext.H{"draft": draft, "moved": moved})
}

// Enqueue POST /sessions/:sid/queue. An empty body queues the current draft.
func (h *SessionHandler) Enqueue(c *ginext.Context) {
	var d domain.Descriptor
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}
	if len(body) > 0 {
		if err := d.UnmarshalJSON(body); err != nil {
			respondError(c, err, "invalid descriptor")
			return
		}
	}

	n, err := h.service.Enqueue(c.Param("sid"), d)
	if err != nil {
		respondError(c, err, "failed to enqueue")
		return
	}
	c.JSON(http.StatusCreated, ginext.H{"length": n})
}

// ListQueue GET /sessions/:sid/queue
func (h *SessionHandler) ListQueue(c *ginext.Context) {
	steps, err := h.service.Queue(c.Param("sid"))
	if err != nil {
		respondError(c, err, "failed to list queue")
		return
	}
	if steps == nil {
		steps = []domain.Descriptor{}
	}
	c.JSON(http.StatusOK, dto.QueueResponse{Transformations: steps, Length: len(steps)})
}

// ClearQueue DELETE /sessions/:sid/queue
func (h *SessionHandler) ClearQueue(c *ginext.Context) {
	if err := h.service.ClearQueue(c.Param("sid")); err != nil {
		respondError(c, err, "failed to clear queue")
		return
	}
	c.Status(http.StatusNoContent)
}

// Commit POST /sessions/:sid/commit. It blocks until the commit finishes.
func (h *SessionHandler) Commit(c *ginext.Context) {
	image, err := h.service.CommitSession(c.Request.Context(), c.Param("sid"))
	if err != nil {
		respondError(c, err, "commit failed")
		return
	}
	c.JSON(http.StatusOK, dto.MapImageToResponse(&image, baseURL(c)))
}

// Cancel POST /sessions/:sid/cancel
func (h *SessionHandler) Cancel(c *ginext.Context) {
	cancelled, err := h.service.CancelSession(c.Param("sid"))
	if err != nil {
		respondError(c, err, "failed to cancel commit")
		return
	}
	c.JSON(http.StatusOK, ginext.H{"cancelled": cancelled})
}
