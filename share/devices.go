// Package share holds the cross-package device cache populated by discovery.
package share

import (
	"fmt"
	"sort"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/nekoha/localsend-cli/notify"
	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/types"
)

const (
	DefaultTTL = 300 * time.Second
)

// Devices maps fingerprint to the last resolved descriptor. Entries expire
// so departed peers fall out on their own.
var Devices = ttlworker.NewCache[string, types.Device](DefaultTTL)

// SetDevice stores a discovered peer and pushes a notification when it is
// new or its descriptor changed.
func SetDevice(device types.Device) {
	if device.Fingerprint == "" {
		return
	}
	existing, exists := GetDevice(device.Fingerprint)
	isNew := !exists
	isChanged := exists && existing != device

	Devices.Set(device.Fingerprint, device)
	tool.DefaultLogger.Debugf("Set device: %s", device.Fingerprint)

	if !isNew && !isChanged {
		return
	}
	eventType := types.NotifyTypeDeviceUpdated
	title := "Device Updated"
	if isNew {
		eventType = types.NotifyTypeDeviceDiscovered
		title = "Device Discovered"
		tool.DefaultLogger.Infof("New device discovered: %s (%s) at %s", device.Alias, device.Fingerprint, device.IP)
	} else {
		tool.DefaultLogger.Infof("Device info updated: %s (%s) at %s", device.Alias, device.Fingerprint, device.IP)
	}
	notify.Broadcast(types.Notification{
		Type:    eventType,
		Title:   title,
		Message: fmt.Sprintf("%s at %s", device.Alias, device.IP),
		Data: map[string]any{
			"fingerprint": device.Fingerprint,
			"alias":       device.Alias,
			"ip":          device.IP,
			"port":        device.Port,
			"version":     device.Version,
			"deviceType":  device.DeviceType,
			"deviceModel": device.DeviceModel,
			"isNew":       isNew,
		},
	})
}

func GetDevice(fingerprint string) (types.Device, bool) {
	device := Devices.Get(fingerprint)
	return device, device.Fingerprint != ""
}

// ListDevices returns the cached peers ordered by alias for stable display.
func ListDevices() []types.Device {
	devices := make([]types.Device, 0)
	err := Devices.Range(func(k string, v types.Device) error {
		devices = append(devices, v)
		return nil
	})
	if err != nil {
		return nil
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Alias != devices[j].Alias {
			return devices[i].Alias < devices[j].Alias
		}
		return devices[i].Fingerprint < devices[j].Fingerprint
	})
	return devices
}
