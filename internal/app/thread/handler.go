package thread

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"messenger/internal/errs"
	"messenger/internal/httputil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	Inbox(c *gin.Context)
	Unread(c *gin.Context)
	Search(c *gin.Context)
	Between(c *gin.Context)
	GetThread(c *gin.Context)
	DeleteThread(c *gin.Context)
	UnreadMessages(c *gin.Context)
	MarkRead(c *gin.Context)
	Participants(c *gin.Context)
	AddParticipants(c *gin.Context)
	RemoveParticipant(c *gin.Context)
}

type handler struct {
	service Service
	tracker Tracker
	logger  *zap.SugaredLogger
}

func NewHandler(service Service, tracker Tracker, logger *zap.Logger) Handler {
	return &handler{
		service: service,
		tracker: tracker,
		logger:  logger.Sugar(),
	}
}

// @Summary List the caller's threads
// @Description Syncs broadcast membership first. Each summary carries its unread flag and latest message.
// @Tags Thread
// @Produce json
// @Success 200 {array} Summary
// @Router /api/threads [get]
func (h *handler) Inbox(c *gin.Context) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return
	}
	summaries, err := h.service.Inbox(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorw("Inbox: failed", "user_id", userID, "error", err)
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": summaries})
}

// @Summary List the caller's unread thread ids
// @Tags Thread
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/threads/unread [get]
func (h *handler) Unread(c *gin.Context) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.service.SyncBroadcastMembership(ctx, userID); err != nil {
		h.logger.Warnw("Unread: broadcast sync failed", "user_id", userID, "error", err)
	}

	ids, err := h.tracker.UnreadThreadIDs(ctx, userID)
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ids), "thread_ids": ids})
}

// @Summary Search the caller's threads by subject
// @Tags Thread
// @Produce json
// @Param subject query string true "Subject substring"
// @Success 200 {array} Thread
// @Failure 400 {object} map[string]string
// @Router /api/threads/search [get]
func (h *handler) Search(c *gin.Context) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return
	}
	threads, err := h.service.FindBySubject(c.Request.Context(), userID, c.Query("subject"))
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// @Summary List threads the caller shares with the given users
// @Tags Thread
// @Produce json
// @Param user_ids query string true "Comma separated user ids"
// @Success 200 {array} Thread
// @Failure 400 {object} map[string]string
// @Router /api/threads/between [get]
func (h *handler) Between(c *gin.Context) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return
	}
	var ids []uint64
	for _, raw := range strings.Split(c.Query("user_ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_ids"})
			return
		}
		ids = append(ids, id)
	}

	threads, err := h.service.Between(c.Request.Context(), userID, ids)
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// loadVisible returns the thread when the caller is a member of it; other threads are
// reported as not found.
func (h *handler) loadVisible(c *gin.Context) (*Thread, uint64, bool) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return nil, 0, false
	}
	threadID, ok := httputil.ParamUint64(c, "id")
	if !ok {
		return nil, 0, false
	}

	ctx := c.Request.Context()
	thread, err := h.service.GetThread(ctx, threadID)
	if err != nil {
		httputil.RespondError(c, err)
		return nil, 0, false
	}
	member, err := h.service.HasParticipant(ctx, thread, userID)
	if err != nil {
		httputil.RespondError(c, err)
		return nil, 0, false
	}
	if !member {
		httputil.RespondError(c, &errs.NotFoundError{Resource: "thread", ThreadID: threadID})
		return nil, 0, false
	}
	return thread, userID, true
}

// requireOwner lets admins through. Broadcast threads are admin-only; directed threads
// also admit their creator.
func (h *handler) requireOwner(c *gin.Context, thread *Thread, userID uint64, action string) bool {
	if httputil.IsAdmin(c) {
		return true
	}
	forbidden := &errs.ForbiddenError{Action: action, ThreadID: thread.ID}
	if thread.ToAll {
		h.logger.Warnw("Broadcast thread change refused", "thread_id", thread.ID, "user_id", userID, "action", action)
		httputil.RespondError(c, forbidden)
		return false
	}
	creator, err := h.service.Creator(c.Request.Context(), thread.ID)
	if err != nil {
		httputil.RespondError(c, err)
		return false
	}
	if creator != userID {
		h.logger.Warnw("Thread change refused", "thread_id", thread.ID, "user_id", userID, "creator_id", creator, "action", action)
		httputil.RespondError(c, forbidden)
		return false
	}
	return true
}

// @Summary Get a thread with its messages and participants
// @Tags Thread
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id} [get]
func (h *handler) GetThread(c *gin.Context) {
	thread, userID, ok := h.loadVisible(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	messages, err := h.service.Messages(ctx, thread.ID)
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	unread, err := h.tracker.IsUnread(ctx, thread, userID)
	if err != nil && !errs.IsNotFound(err) {
		httputil.RespondError(c, err)
		return
	}
	participants, err := h.service.ParticipantUserIDs(ctx, thread.ID, false)
	if err != nil {
		httputil.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread":       thread,
		"messages":     messages,
		"participants": participants,
		"unread":       unread,
	})
}

// @Summary Delete a thread for every participant
// @Description Allowed for the thread's creator; broadcast threads require an admin token.
// @Tags Thread
// @Param id path int true "Thread ID"
// @Success 204 "No Content"
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id} [delete]
func (h *handler) DeleteThread(c *gin.Context) {
	thread, userID, ok := h.loadVisible(c)
	if !ok {
		return
	}
	if !h.requireOwner(c, thread, userID, "delete") {
		return
	}
	if err := h.service.DeleteThread(c.Request.Context(), thread.ID); err != nil {
		httputil.RespondError(c, err)
		return
	}
	h.logger.Infow("DeleteThread: deleted", "thread_id", thread.ID, "user_id", userID)
	c.Status(http.StatusNoContent)
}

// @Summary List the caller's unread messages in a thread
// @Tags Thread
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id}/unread [get]
func (h *handler) UnreadMessages(c *gin.Context) {
	thread, userID, ok := h.loadVisible(c)
	if !ok {
		return
	}
	messages, err := h.tracker.UnreadMessages(c.Request.Context(), thread, userID)
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(messages), "messages": messages})
}

// @Summary Mark a thread as read
// @Tags Thread
// @Produce json
// @Param id path int true "Thread ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id}/read [post]
func (h *handler) MarkRead(c *gin.Context) {
	thread, userID, ok := h.loadVisible(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if thread.ToAll {
		if _, err := h.service.SyncBroadcastMembership(ctx, userID); err != nil {
			h.logger.Warnw("MarkRead: broadcast sync failed", "user_id", userID, "error", err)
		}
	}

	marked, err := h.tracker.MarkReadQuietly(ctx, thread, userID, time.Now().UTC())
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// @Summary List a thread's participant user ids
// @Tags Thread
// @Produce json
// @Param id path int true "Thread ID"
// @Param include_removed query bool false "Include removed participants"
// @Success 200 {object} map[string][]uint64
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id}/participants [get]
func (h *handler) Participants(c *gin.Context) {
	thread, _, ok := h.loadVisible(c)
	if !ok {
		return
	}
	includeRemoved := c.Query("include_removed") == "true"
	ids, err := h.service.ParticipantUserIDs(c.Request.Context(), thread.ID, includeRemoved)
	if err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_ids": ids})
}

// @Summary Add or restore participants
// @Description Allowed for the thread's creator. Broadcast threads have implicit membership.
// @Tags Thread
// @Accept json
// @Param id path int true "Thread ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/threads/{id}/participants [post]
func (h *handler) AddParticipants(c *gin.Context) {
	thread, userID, ok := h.loadVisible(c)
	if !ok {
		return
	}
	if !h.requireOwner(c, thread, userID, "add participants to") {
		return
	}
	var req struct {
		UserIDs []uint64 `json:"user_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.AddParticipants(c.Request.Context(), thread.ID, req.UserIDs); err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Remove a participant
// @Description Participants may leave a directed thread; removing anyone else is allowed for the creator.
// @Tags Thread
// @Param id path int true "Thread ID"
// @Param user_id path int true "User ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/threads/{id}/participants/{user_id} [delete]
func (h *handler) RemoveParticipant(c *gin.Context) {
	thread, userID, ok := h.loadVisible(c)
	if !ok {
		return
	}
	target, ok := httputil.ParamUint64(c, "user_id")
	if !ok {
		return
	}
	if target != userID && !h.requireOwner(c, thread, userID, "remove participants from") {
		return
	}
	if err := h.service.RemoveParticipant(c.Request.Context(), thread.ID, target); err != nil {
		httputil.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
