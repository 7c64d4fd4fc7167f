package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/themesync/internal/client/sync"
	"github.com/openmined/themesync/internal/theme"
	"github.com/openmined/themesync/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	status    sync.Status
	polling   bool
	triggered int
}

func (f *fakeSession) Status() sync.Status { return f.status }

func (f *fakeSession) TriggerNow() bool {
	if !f.polling {
		return false
	}
	f.triggered++
	return true
}

func setupRouter(session SyncSession) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	statusH := NewStatusHandler(session, theme.Theme{ID: 7, Name: "Dawn"}, "/tmp/dawn")
	syncH := NewSyncHandler(session)
	r.GET("/v1/status", statusH.Status)
	r.POST("/v1/sync/now", syncH.Now)
	return r
}

func TestStatusHandler_Status(t *testing.T) {
	lastSync := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	session := &fakeSession{status: sync.Status{
		State:     sync.StateIdle,
		Cycles:    3,
		Baseline:  12,
		LastError: "fetch checksums: offline",
		LastSync:  lastSync,
	}}
	r := setupRouter(session)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, version.Version, resp.Version)
	assert.Equal(t, int64(7), resp.Theme.ID)
	assert.Equal(t, "/tmp/dawn", resp.Root)
	require.NotNil(t, resp.Sync)
	assert.Equal(t, "idle", resp.Sync.State)
	assert.Equal(t, int64(3), resp.Sync.Cycles)
	assert.Equal(t, 12, resp.Sync.Baseline)
	assert.Equal(t, "fetch checksums: offline", resp.Sync.LastError)
	assert.True(t, lastSync.Equal(resp.Sync.LastSync))
}

func TestStatusHandler_NoSession(t *testing.T) {
	r := setupRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSyncHandler_Now(t *testing.T) {
	session := &fakeSession{}
	r := setupRouter(session)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/sync/now", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), ErrCodeNotPolling)

	session.polling = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/sync/now", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"code":"OK"}`, w.Body.String())
	assert.Equal(t, 1, session.triggered)
}
