package types

import "fmt"

// Version selects the protocol generation used for routes and response
// shapes. Unknown version strings degrade to v1.
type Version int

const (
	V1 Version = iota
	V2
)

// ParseVersion maps a dotted version string to a Version.
func ParseVersion(s string) Version {
	if s == ProtocolVersion2 {
		return V2
	}
	return V1
}

func (v Version) String() string {
	if v == V2 {
		return ProtocolVersion2
	}
	return ProtocolVersion1
}

// ApiRoute names one of the three protocol operations.
type ApiRoute int

const (
	RoutePrepareUpload ApiRoute = iota
	RouteUpload
	RouteCancel
)

func (r ApiRoute) pathV1() string {
	switch r {
	case RoutePrepareUpload:
		return "send-request"
	case RouteUpload:
		return "send"
	default:
		return "cancel"
	}
}

func (r ApiRoute) pathV2() string {
	switch r {
	case RoutePrepareUpload:
		return "prepare-upload"
	case RouteUpload:
		return "upload"
	default:
		return r.pathV1()
	}
}

// Route returns the absolute URL path for the operation under the given
// protocol generation, e.g. /api/localsend/v2/prepare-upload.
func (r ApiRoute) Route(v Version) string {
	if v == V1 {
		return fmt.Sprintf("/api/localsend/v1/%s", r.pathV1())
	}
	return fmt.Sprintf("/api/localsend/v2/%s", r.pathV2())
}

// Target builds the full URL of the operation on a peer. The scheme follows
// the peer's https flag; the route follows its protocol version.
func (r ApiRoute) Target(device *Device) string {
	return r.TargetRaw(device.IP, device.Port, device.HTTPS, device.Version)
}

func (r ApiRoute) TargetRaw(ip string, port int, https bool, version string) string {
	return fmt.Sprintf("%s://%s:%d%s", protocolScheme(https), ip, port, r.Route(ParseVersion(version)))
}

// RegisterRoute is the HTTP discovery fallback endpoint (v2 only; v1 peers
// answer on the same path).
func RegisterRoute(v Version) string {
	return fmt.Sprintf("/api/localsend/%s/register", versionSegment(v))
}

// InfoRoute returns the device info endpoint path.
func InfoRoute(v Version) string {
	return fmt.Sprintf("/api/localsend/%s/info", versionSegment(v))
}

// RegisterTarget builds the full register URL on a peer address.
func RegisterTarget(ip string, port int, https bool) string {
	return fmt.Sprintf("%s://%s:%d%s", protocolScheme(https), ip, port, RegisterRoute(V2))
}

func versionSegment(v Version) string {
	if v == V1 {
		return "v1"
	}
	return "v2"
}

func protocolScheme(https bool) ProtocolType {
	if https {
		return ProtocolHTTPS
	}
	return ProtocolHTTP
}
