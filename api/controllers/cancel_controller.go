package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/transfer"
)

type CancelController struct {
	state *transfer.ServerState
}

func NewCancelController(state *transfer.ServerState) *CancelController {
	return &CancelController{state: state}
}

// HandleCancelV1 aborts the outgoing session unconditionally; v1 has no
// session id to check against.
func (ctrl *CancelController) HandleCancelV1(c *gin.Context) {
	ctrl.state.Lock()
	session := ctrl.state.SendSession
	ctrl.state.SendSession = nil
	ctrl.state.Unlock()

	if session == nil {
		abortWithError(c, transfer.ErrNoPermission)
		return
	}
	if err := session.CancelByReceiver(); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// HandleCancelV2 aborts the outgoing session when the caller presents the
// session id we negotiated with it.
func (ctrl *CancelController) HandleCancelV2(c *gin.Context) {
	remoteSessionID := c.Query("sessionId")
	if remoteSessionID == "" {
		abortWithError(c, transfer.ErrNoPermission)
		return
	}
	tool.DefaultLogger.Debugf("remote sessionId: %s", remoteSessionID)

	ctrl.state.Lock()
	if session := ctrl.state.SendSession; session != nil && session.RemoteSessionID != remoteSessionID {
		ctrl.state.Unlock()
		abortWithError(c, transfer.ErrNoPermission)
		return
	}
	session := ctrl.state.SendSession
	ctrl.state.SendSession = nil
	ctrl.state.Unlock()

	if session == nil {
		abortWithError(c, transfer.ErrNoPermission)
		return
	}
	if err := session.CancelByReceiver(); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
