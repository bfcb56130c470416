package types

import (
	"testing"

	"github.com/bytedance/sonic"
)

func TestRegisterDtoToDeviceFallbacks(t *testing.T) {
	dto := RegisterDto{
		Alias:       "Legacy Phone",
		Fingerprint: "abc",
	}
	device := dto.ToDevice("192.168.1.5", 53317, false)

	if device.Version != ProtocolVersion1 {
		t.Errorf("expected fallback version %s, got %s", ProtocolVersion1, device.Version)
	}
	if device.Port != 53317 {
		t.Errorf("expected fallback port 53317, got %d", device.Port)
	}
	if device.HTTPS {
		t.Error("expected http fallback")
	}
	if device.DeviceType != DeviceTypeDesktop {
		t.Errorf("expected desktop fallback, got %s", device.DeviceType)
	}
	if device.IP != "192.168.1.5" {
		t.Errorf("unexpected ip %s", device.IP)
	}
}

func TestRegisterDtoToDeviceExplicitFields(t *testing.T) {
	version := ProtocolVersion2
	port := 40000
	protocol := ProtocolHTTPS
	deviceType := DeviceTypeMobile
	dto := RegisterDto{
		Alias:       "Phone",
		Version:     &version,
		Fingerprint: "abc",
		Port:        &port,
		Protocol:    &protocol,
		DeviceType:  &deviceType,
	}
	device := dto.ToDevice("10.0.0.2", 53317, false)

	if device.Version != ProtocolVersion2 {
		t.Errorf("unexpected version %s", device.Version)
	}
	if device.Port != 40000 {
		t.Errorf("unexpected port %d", device.Port)
	}
	if !device.HTTPS {
		t.Error("expected https")
	}
	if device.DeviceType != DeviceTypeMobile {
		t.Errorf("unexpected device type %s", device.DeviceType)
	}
}

func TestMulticastDtoIsAnnouncement(t *testing.T) {
	yes := true
	no := false

	cases := []struct {
		name string
		dto  MulticastDto
		want bool
	}{
		{"none", MulticastDto{}, false},
		{"v1 flag", MulticastDto{Announcement: &yes}, true},
		{"v2 flag", MulticastDto{Announce: &yes}, true},
		{"both false", MulticastDto{Announcement: &no, Announce: &no}, false},
	}
	for _, tc := range cases {
		if got := tc.dto.IsAnnouncement(); got != tc.want {
			t.Errorf("%s: IsAnnouncement() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewMulticastDtoSetsBothFlags(t *testing.T) {
	device := Device{
		Alias:       "Nice Orange",
		Fingerprint: "fp",
		Port:        53317,
		DeviceType:  DeviceTypeHeadless,
	}
	dto := NewMulticastDto(&device, true)
	if dto.Announce == nil || !*dto.Announce {
		t.Error("announce flag not set")
	}
	if dto.Announcement == nil || !*dto.Announcement {
		t.Error("announcement flag not set")
	}

	payload, err := sonic.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var parsed MulticastDto
	if err := sonic.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if parsed.Alias != "Nice Orange" || !parsed.IsAnnouncement() {
		t.Errorf("roundtrip lost fields: %+v", parsed)
	}
}

func TestApiRouteTargets(t *testing.T) {
	device := Device{
		IP:      "192.168.1.7",
		Port:    53317,
		Version: ProtocolVersion2,
	}
	if got := RoutePrepareUpload.Target(&device); got != "http://192.168.1.7:53317/api/localsend/v2/prepare-upload" {
		t.Errorf("unexpected v2 target: %s", got)
	}

	device.Version = ProtocolVersion1
	device.HTTPS = true
	if got := RouteUpload.Target(&device); got != "https://192.168.1.7:53317/api/localsend/v1/send" {
		t.Errorf("unexpected v1 target: %s", got)
	}
	if got := RouteCancel.Route(V1); got != "/api/localsend/v1/cancel" {
		t.Errorf("unexpected cancel route: %s", got)
	}
	if got := RouteCancel.Route(V2); got != "/api/localsend/v2/cancel" {
		t.Errorf("unexpected cancel route: %s", got)
	}
}

func TestParseVersion(t *testing.T) {
	if ParseVersion("2.0") != V2 {
		t.Error("2.0 should parse as v2")
	}
	if ParseVersion("1.0") != V1 {
		t.Error("1.0 should parse as v1")
	}
	if ParseVersion("") != V1 {
		t.Error("unknown versions degrade to v1")
	}
}
