package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	session SyncSession
}

func NewSyncHandler(session SyncSession) *SyncHandler {
	return &SyncHandler{session: session}
}

// Now requests an immediate poll cycle. It answers 503 while the initial
// reconciliation is still running.
func (h *SyncHandler) Now(c *gin.Context) {
	if h.session == nil || !h.session.TriggerNow() {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeNotPolling, errors.New("sync is not polling yet"))
		return
	}

	c.PureJSON(http.StatusAccepted, ControlPlaneResponse{Code: CodeOk})
}
