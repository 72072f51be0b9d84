package notification

import (
	"net/http"

	"messenger/internal/httputil"

	"github.com/gin-gonic/gin"
)

type Handler interface {
	GetToken(c *gin.Context)
}

type handler struct {
	tokens  *Tokens
	channel string
}

func NewHandler(tokens *Tokens, channel string) Handler {
	return &handler{tokens: tokens, channel: channel}
}

// @Summary Get the caller's gateway room token
// @Description Returns the token the caller logs in to the socket gateway with, and the pub/sub channel name.
// @Tags Notification
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/notifications/token [get]
func (h *handler) GetToken(c *gin.Context) {
	userID, ok := httputil.MustUserID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":   h.tokens.Token(userID),
		"channel": h.channel,
	})
}
