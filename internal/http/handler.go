package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aai-storage/mining-dashboard/internal/models"
	"github.com/aai-storage/mining-dashboard/internal/service"
)

// Handler serves the session and mining endpoints
type Handler struct {
	sessions      *service.SessionService
	toggleLimiter *RateLimiter
}

// NewHandler creates a handler; toggles are limited per session by toggleLimiter
func NewHandler(sessions *service.SessionService, toggleLimiter *RateLimiter) *Handler {
	return &Handler{
		sessions:      sessions,
		toggleLimiter: toggleLimiter,
	}
}

// ==================== Session Handlers ====================

// CreateSession opens a dashboard session
func (h *Handler) CreateSession(c *gin.Context) {
	ctrl := h.sessions.Create()
	c.JSON(http.StatusCreated, models.CreateSessionResponse{SessionID: ctrl.ID()})
}

// GetSession returns the current view of a session
func (h *Handler) GetSession(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// CloseSession closes a session; requests still in flight are discarded
func (h *Handler) CloseSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Close(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	h.toggleLimiter.Forget(id)
	c.Status(http.StatusNoContent)
}

// ==================== Mining Handlers ====================

// LoadStats loads the provider and mining record of a wallet into the session
func (h *Handler) LoadStats(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	var req models.LoadStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := ctrl.LoadStats(c.Request.Context(), req.WalletAddress)
	if err != nil {
		h.fail(c, ctrl, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleMining starts or stops mining for the loaded provider. The rate
// limit is applied per session, after the session is known to exist.
func (h *Handler) ToggleMining(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	if !h.toggleLimiter.Allow(ctrl.ID()) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded, please try again later",
		})
		return
	}

	view, err := ctrl.ToggleMining(c.Request.Context())
	if err != nil {
		h.fail(c, ctrl, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ReconcileProvider writes the session's mining state back to the provider record
func (h *Handler) ReconcileProvider(c *gin.Context) {
	ctrl, ok := h.session(c)
	if !ok {
		return
	}

	view, err := ctrl.ReconcileProvider(c.Request.Context())
	if err != nil {
		h.fail(c, ctrl, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) session(c *gin.Context) (*service.MiningController, bool) {
	ctrl, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return ctrl, true
}

// fail reports err together with the session view. Load and toggle
// failures carry the message the session recorded for them.
func (h *Handler) fail(c *gin.Context, ctrl *service.MiningController, err error) {
	status := statusFor(err)
	if errors.Is(err, service.ErrSessionClosed) {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	view := ctrl.Snapshot()
	msg := err.Error()
	if !errors.Is(err, service.ErrBusy) && !errors.Is(err, service.ErrNothingLoaded) && view.Error != "" {
		msg = view.Error
	}
	c.JSON(status, gin.H{"error": msg, "view": view})
}

func statusFor(err error) int {
	var (
		validation *service.ValidationError
		notFound   *service.NotFoundError
		integrity  *service.DataIntegrityError
		remote     *service.RemoteError
		conflict   *service.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &integrity):
		return http.StatusUnprocessableEntity
	case errors.As(err, &conflict), errors.Is(err, service.ErrBusy), errors.Is(err, service.ErrNothingLoaded):
		return http.StatusConflict
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusGone
	case errors.As(err, &remote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
