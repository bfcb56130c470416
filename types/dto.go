package types

// FileType is the coarse category transmitted with each file.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypePdf   FileType = "pdf"
	FileTypeText  FileType = "text"
	FileTypeApk   FileType = "apk"
	FileTypeOther FileType = "other"
)

// FileDto describes one offered file. The id is unique inside a session.
type FileDto struct {
	ID       string   `json:"id"`
	FileName string   `json:"fileName"`
	Size     int64    `json:"size"`
	FileType FileType `json:"fileType"`
	Hash     *string  `json:"hash,omitempty"`
	Preview  *string  `json:"preview,omitempty"`
}

/*
 UDP multicast message example

{
  "alias": "Nice Orange",
  "version": "2.0",
  "deviceModel": "Samsung",
  "deviceType": "mobile",
  "fingerprint": "random string",
  "port": 53317,
  "protocol": "https",
  "download": true,
  "announce": true
}
*/

// MulticastDto is the UDP announce payload. v1 peers populate `announcement`,
// v2 peers populate `announce`; announcers set both so mixed networks see us.
type MulticastDto struct {
	Alias        string        `json:"alias"`
	Version      *string       `json:"version,omitempty"` // v2, format: major.minor
	DeviceModel  *string       `json:"deviceModel,omitempty"`
	DeviceType   *DeviceType   `json:"deviceType,omitempty"`
	Fingerprint  string        `json:"fingerprint"`
	Port         *int          `json:"port,omitempty"`     // v2
	Protocol     *ProtocolType `json:"protocol,omitempty"` // v2
	Download     *bool         `json:"download,omitempty"` // v2
	Announcement *bool         `json:"announcement,omitempty"` // v1
	Announce     *bool         `json:"announce,omitempty"`     // v2
}

// RegisterDto is the device descriptor embedded in prepare-upload requests
// and in announce replies. Same as MulticastDto minus the announce flags.
type RegisterDto struct {
	Alias       string        `json:"alias"`
	Version     *string       `json:"version,omitempty"`
	DeviceModel *string       `json:"deviceModel,omitempty"`
	DeviceType  *DeviceType   `json:"deviceType,omitempty"`
	Fingerprint string        `json:"fingerprint"`
	Port        *int          `json:"port,omitempty"`
	Protocol    *ProtocolType `json:"protocol,omitempty"`
	Download    *bool         `json:"download,omitempty"`
}

type PrepareUploadRequest struct {
	Info  RegisterDto        `json:"info"`
	Files map[string]FileDto `json:"files"`
}

// PrepareUploadResponse is the v2 envelope. The v1 response body is the inner
// Files map alone, with no session id.
type PrepareUploadResponse struct {
	SessionID string            `json:"sessionId"`
	Files     map[string]string `json:"files"`
}

// NewMulticastDto builds our own announce payload. Both announce flags are
// set so both v1 and v2 listeners recognize it.
func NewMulticastDto(device *Device, announce bool) *MulticastDto {
	dto := &MulticastDto{
		Alias:        device.Alias,
		Version:      ptr(ProtocolVersion2),
		Fingerprint:  device.Fingerprint,
		Port:         ptr(device.Port),
		Protocol:     ptr(device.Protocol()),
		Download:     ptr(device.Download),
		Announcement: ptr(announce),
		Announce:     ptr(announce),
	}
	if device.DeviceModel != "" {
		dto.DeviceModel = ptr(device.DeviceModel)
	}
	if device.DeviceType != "" {
		dto.DeviceType = ptr(device.DeviceType)
	}
	return dto
}

// NewRegisterDto converts our own device into the request descriptor.
func NewRegisterDto(device *Device) RegisterDto {
	dto := RegisterDto{
		Alias:       device.Alias,
		Version:     ptr(device.Version),
		Fingerprint: device.Fingerprint,
		Port:        ptr(device.Port),
		Protocol:    ptr(device.Protocol()),
		Download:    ptr(device.Download),
	}
	if device.DeviceModel != "" {
		dto.DeviceModel = ptr(device.DeviceModel)
	}
	if device.DeviceType != "" {
		dto.DeviceType = ptr(device.DeviceType)
	}
	return dto
}

// ToDevice resolves the DTO against the transport source address. Missing
// fields fall back to v1 semantics: version 1.0, desktop, plain http.
func (dto *RegisterDto) ToDevice(ip string, ownPort int, ownHTTPS bool) Device {
	device := Device{
		IP:          ip,
		Version:     FallbackProtocolVersion,
		Port:        ownPort,
		HTTPS:       ownHTTPS,
		Fingerprint: dto.Fingerprint,
		Alias:       dto.Alias,
		DeviceType:  DeviceTypeDesktop,
	}
	if dto.Version != nil {
		device.Version = *dto.Version
	}
	if dto.Port != nil {
		device.Port = *dto.Port
	}
	if dto.Protocol != nil {
		device.HTTPS = *dto.Protocol == ProtocolHTTPS
	}
	if dto.DeviceModel != nil {
		device.DeviceModel = *dto.DeviceModel
	}
	if dto.DeviceType != nil {
		device.DeviceType = ParseDeviceType(string(*dto.DeviceType))
	}
	if dto.Download != nil {
		device.Download = *dto.Download
	}
	return device
}

// ToDevice is the multicast variant of RegisterDto.ToDevice; the announce
// flags carry no device information.
func (dto *MulticastDto) ToDevice(ip string, ownPort int, ownHTTPS bool) Device {
	reg := RegisterDto{
		Alias:       dto.Alias,
		Version:     dto.Version,
		DeviceModel: dto.DeviceModel,
		DeviceType:  dto.DeviceType,
		Fingerprint: dto.Fingerprint,
		Port:        dto.Port,
		Protocol:    dto.Protocol,
		Download:    dto.Download,
	}
	return reg.ToDevice(ip, ownPort, ownHTTPS)
}

// IsAnnouncement reports whether either protocol generation marked the
// datagram as an announcement.
func (dto *MulticastDto) IsAnnouncement() bool {
	return (dto.Announce != nil && *dto.Announce) || (dto.Announcement != nil && *dto.Announcement)
}

func ptr[T any](v T) *T { return &v }
