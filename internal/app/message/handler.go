package message

import (
	"net/http"

	"messenger/internal/errs"
	"messenger/internal/httputil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	Send(c *gin.Context)
	Reply(c *gin.Context)
}

type handler struct {
	service Service
	logger  *zap.SugaredLogger
}

func NewHandler(service Service, logger *zap.Logger) Handler {
	return &handler{
		service: service,
		logger:  logger.Sugar(),
	}
}

// @Summary Compose and send a message
// @Description Stores a new thread and/or notifies its recipients. Sending to all users requires an admin token.
// @Tags Message
// @Accept json
// @Produce json
// @Param request body SendRequest true "Message"
// @Success 201 {object} Result
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/messages [post]
func (h *handler) Send(c *gin.Context) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return
	}
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ToAll && !httputil.IsAdmin(c) {
		h.logger.Warnw("Send: broadcast refused", "user_id", userID)
		httputil.RespondError(c, &errs.ForbiddenError{Action: "broadcast"})
		return
	}

	draft := h.service.New().
		WithSubject(req.Subject).
		WithBody(req.Body).
		WithLink(req.Link).
		WithLinks(req.Links...).
		WithCategory(req.Category).
		WithSender(userID).
		Notify(req.Notify)
	if req.ToAll {
		draft.ToAll()
	} else {
		draft.To(req.Recipients...)
	}
	if req.Store != nil && !*req.Store {
		draft.Unstore()
	}

	result, err := draft.Send(c.Request.Context(), Fields{})
	if err != nil {
		h.logger.Warnw("Send: rejected", "user_id", userID, "error", err)
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// @Summary Reply to a thread
// @Tags Message
// @Accept json
// @Produce json
// @Param id path int true "Thread ID"
// @Param request body ReplyRequest true "Reply"
// @Success 201 {object} ReplyResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id}/messages [post]
func (h *handler) Reply(c *gin.Context) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return
	}
	threadID, ok := httputil.ParamUint64(c, "id")
	if !ok {
		return
	}
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.service.Reply(c.Request.Context(), threadID, Sender{ID: userID, Admin: httputil.IsAdmin(c)}, req.Body, req.Notify)
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
