package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/themesync/internal/theme"
	"github.com/openmined/themesync/internal/version"
)

type StatusResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"ts"`
	Version   string      `json:"version"`
	Revision  string      `json:"revision"`
	BuildDate string      `json:"buildDate"`
	Theme     theme.Theme `json:"theme"`
	Root      string      `json:"root"`
	Sync      *SyncInfo   `json:"sync"`
}

type SyncInfo struct {
	State     string    `json:"state"`
	Cycles    int64     `json:"cycles"`
	Baseline  int       `json:"baseline"`
	LastError string    `json:"lastError,omitempty"`
	LastSync  time.Time `json:"lastSync"`
	LastCycle time.Time `json:"lastCycle"`
}

// StatusHandler handles status-related endpoints
type StatusHandler struct {
	session SyncSession
	theme   theme.Theme
	root    string
}

func NewStatusHandler(session SyncSession, t theme.Theme, root string) *StatusHandler {
	return &StatusHandler{
		session: session,
		theme:   t,
		root:    root,
	}
}

// Status returns the version and the poller state of the running session.
func (h *StatusHandler) Status(c *gin.Context) {
	if h.session == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeUnknownError, errors.New("sync session not initialized"))
		return
	}

	st := h.session.Status()

	c.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		Theme:     h.theme,
		Root:      h.root,
		Sync: &SyncInfo{
			State:     string(st.State),
			Cycles:    st.Cycles,
			Baseline:  st.Baseline,
			LastError: st.LastError,
			LastSync:  st.LastSync,
			LastCycle: st.LastCycle,
		},
	})
}
