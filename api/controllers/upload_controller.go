package controllers

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/transfer"
	"github.com/nekoha/localsend-cli/types"
)

type UploadController struct {
	state *transfer.ServerState
}

func NewUploadController(state *transfer.ServerState) *UploadController {
	return &UploadController{state: state}
}

// HandlePrepareUpload serves the v2 prepare-upload endpoint. The response
// carries the session id plus a token per accepted file.
func (ctrl *UploadController) HandlePrepareUpload(c *gin.Context) {
	ctrl.prepareUpload(c, types.V2)
}

// HandlePrepareUploadV1 serves the legacy send-request endpoint. The v1
// response is the bare token map, no session id.
func (ctrl *UploadController) HandlePrepareUploadV1(c *gin.Context) {
	ctrl.prepareUpload(c, types.V1)
}

func (ctrl *UploadController) prepareUpload(c *gin.Context, version types.Version) {
	body, err := c.GetRawData()
	if err != nil {
		tool.DefaultLogger.Errorf("Failed to read prepare-upload request body: %v", err)
		abortWithError(c, transfer.ErrInvalidParameters)
		return
	}
	var request types.PrepareUploadRequest
	if err := sonic.Unmarshal(body, &request); err != nil {
		tool.DefaultLogger.Errorf("Failed to parse prepare-upload request: %v", err)
		abortWithError(c, transfer.ErrInvalidParameters)
		return
	}

	tool.DefaultLogger.Infof("[PrepareUpload] %s offers %d files", request.Info.Alias, len(request.Files))

	response, err := transfer.PrepareUpload(ctrl.state, c.RemoteIP(), &request)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if version == types.V1 {
		c.JSON(http.StatusOK, response.Files)
		return
	}
	c.JSON(http.StatusOK, response)
}

// HandleUpload serves the v2 upload endpoint.
func (ctrl *UploadController) HandleUpload(c *gin.Context) {
	ctrl.upload(c, types.V2)
}

// HandleUploadV1 serves the legacy send endpoint, which has no sessionId
// parameter.
func (ctrl *UploadController) HandleUploadV1(c *gin.Context) {
	ctrl.upload(c, types.V1)
}

func (ctrl *UploadController) upload(c *gin.Context, version types.Version) {
	query := transfer.UploadQuery{
		SessionID: c.Query("sessionId"),
		FileID:    c.Query("fileId"),
		Token:     c.Query("token"),
	}
	err := transfer.SaveUpload(ctrl.state, c.RemoteIP(), query, c.Request.Body, version)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// abortWithError writes the protocol status code with a plain text body.
// Internal failures never leak their message.
func abortWithError(c *gin.Context, err error) {
	status := transfer.HTTPStatus(err)
	switch status {
	case http.StatusInternalServerError:
		c.String(status, "Internal server error")
	case http.StatusNoContent:
		c.Status(status)
	default:
		c.String(status, err.Error())
	}
}
