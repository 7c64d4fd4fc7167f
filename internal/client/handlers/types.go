package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/openmined/themesync/internal/client/sync"
)

const (
	CodeOk              string = "OK"
	ErrCodeNotPolling   string = "ERR_NOT_POLLING"
	ErrCodeUnknownError string = "ERR_UNKNOWN_ERROR"
)

// SyncSession is the part of a sync session exposed over the control plane.
type SyncSession interface {
	Status() sync.Status
	TriggerNow() bool
}

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}
