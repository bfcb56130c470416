package types

// refer to https://github.com/localsend/protocol/blob/main/README.md#1-defaults
const (
	ProtocolVersion2        = "2.0"
	ProtocolVersion1        = "1.0"
	FallbackProtocolVersion = ProtocolVersion1

	DefaultMulticastAddress = "224.0.0.167"
	DefaultPort             = 53317 // UDP & HTTP
	DefaultHTTPPort         = DefaultPort + 1
)

// DeviceType is the advertised device class. Unknown values degrade to desktop.
type DeviceType string

const (
	DeviceTypeMobile   DeviceType = "mobile"
	DeviceTypeDesktop  DeviceType = "desktop"
	DeviceTypeWeb      DeviceType = "web"
	DeviceTypeHeadless DeviceType = "headless"
	DeviceTypeServer   DeviceType = "server"
)

// ParseDeviceType maps a wire string to a DeviceType, falling back to desktop.
func ParseDeviceType(s string) DeviceType {
	switch DeviceType(s) {
	case DeviceTypeMobile, DeviceTypeDesktop, DeviceTypeWeb, DeviceTypeHeadless, DeviceTypeServer:
		return DeviceType(s)
	default:
		return DeviceTypeDesktop
	}
}

type ProtocolType string

const (
	ProtocolHTTP  ProtocolType = "http"
	ProtocolHTTPS ProtocolType = "https"
)

// Device is a resolved peer: wire DTO fields plus the transport-derived
// address. Identity is the fingerprint.
type Device struct {
	IP          string     `json:"ip"`
	Version     string     `json:"version"`
	Port        int        `json:"port"`
	HTTPS       bool       `json:"https"`
	Fingerprint string     `json:"fingerprint"`
	Alias       string     `json:"alias"`
	DeviceModel string     `json:"deviceModel,omitempty"`
	DeviceType  DeviceType `json:"deviceType"`
	Download    bool       `json:"download"`
}

// Protocol returns the URL scheme for this device.
func (d *Device) Protocol() ProtocolType {
	if d.HTTPS {
		return ProtocolHTTPS
	}
	return ProtocolHTTP
}
