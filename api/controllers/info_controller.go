package controllers

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/nekoha/localsend-cli/share"
	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/types"
)

type InfoController struct {
	self *types.Device
}

func NewInfoController(self *types.Device) *InfoController {
	return &InfoController{self: self}
}

// see https://github.com/localsend/protocol/blob/main/README.md
func (ctrl *InfoController) HandleInfoV1(c *gin.Context) {
	c.JSON(http.StatusOK, types.V1InfoResponse{
		Alias:       ctrl.self.Alias,
		Version:     ctrl.self.Version,
		DeviceModel: ctrl.self.DeviceModel,
		DeviceType:  string(ctrl.self.DeviceType),
	})
}

func (ctrl *InfoController) HandleInfoV2(c *gin.Context) {
	c.JSON(http.StatusOK, types.V2InfoResponse{
		Alias:       ctrl.self.Alias,
		Version:     ctrl.self.Version,
		DeviceModel: ctrl.self.DeviceModel,
		DeviceType:  string(ctrl.self.DeviceType),
		Fingerprint: ctrl.self.Fingerprint,
		Download:    ctrl.self.Download,
	})
}

// HandleRegister answers the HTTP discovery fallback: store the caller and
// reply with our own descriptor.
func (ctrl *InfoController) HandleRegister(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	var dto types.RegisterDto
	if err := sonic.Unmarshal(body, &dto); err != nil {
		tool.DefaultLogger.Debugf("Failed to parse register request: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	if dto.Fingerprint != "" && dto.Fingerprint != ctrl.self.Fingerprint {
		share.SetDevice(dto.ToDevice(c.RemoteIP(), types.DefaultPort, false))
	}
	c.JSON(http.StatusOK, types.NewRegisterDto(ctrl.self))
}

// HandleDevices lists the peers currently in the discovery cache. Local
// clients use it to pick a target.
func (ctrl *InfoController) HandleDevices(c *gin.Context) {
	c.JSON(http.StatusOK, share.ListDevices())
}
