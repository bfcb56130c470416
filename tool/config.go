package tool

import (
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/nekoha/localsend-cli/types"
)

const DefaultConfigName = "config.yaml"

// DefaultAppConfig builds a fresh identity with a random alias and
// fingerprint.
func DefaultAppConfig() *types.AppConfig {
	return &types.AppConfig{
		Alias:            NameGenerator(),
		DeviceModel:      runtime.GOOS,
		DeviceType:       string(types.DeviceTypeHeadless),
		Fingerprint:      GenerateRandomFingerprint(),
		Port:             types.DefaultPort,
		HTTPPort:         types.DefaultPort,
		MulticastAddress: types.DefaultMulticastAddress,
		Protocol:         string(types.ProtocolHTTP),
	}
}

// LoadAppConfig reads the config file, creating it with defaults on first
// run. Missing fields are backfilled and persisted.
func LoadAppConfig(path string) (*types.AppConfig, error) {
	if path == "" {
		path = DefaultConfigName
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultAppConfig()
		if err := SaveAppConfig(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := &types.AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if fillConfigDefaults(cfg) {
		if err := SaveAppConfig(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func SaveAppConfig(path string, cfg *types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func fillConfigDefaults(cfg *types.AppConfig) bool {
	changed := false
	if cfg.Alias == "" {
		cfg.Alias = NameGenerator()
		changed = true
	}
	if cfg.DeviceModel == "" {
		cfg.DeviceModel = runtime.GOOS
		changed = true
	}
	if cfg.DeviceType == "" {
		cfg.DeviceType = string(types.DeviceTypeHeadless)
		changed = true
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = GenerateRandomFingerprint()
		changed = true
	}
	if cfg.Port == 0 {
		cfg.Port = types.DefaultPort
		changed = true
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = cfg.Port
		changed = true
	}
	if cfg.MulticastAddress == "" {
		cfg.MulticastAddress = types.DefaultMulticastAddress
		changed = true
	}
	if cfg.Protocol == "" {
		cfg.Protocol = string(types.ProtocolHTTP)
		changed = true
	}
	return changed
}
