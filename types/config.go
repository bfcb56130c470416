package types

// AppConfig is the persisted device identity, stored as config.yaml next to
// the binary unless overridden.
type AppConfig struct {
	Alias            string `yaml:"alias"`
	DeviceModel      string `yaml:"device_model"`
	DeviceType       string `yaml:"device_type"`
	Fingerprint      string `yaml:"fingerprint"`
	Port             int    `yaml:"port"`      // multicast port
	HTTPPort         int    `yaml:"http_port"` // api server port
	MulticastAddress string `yaml:"multicast_address"`
	Protocol         string `yaml:"protocol"` // http | https
}

// Settings are the per-run receive options handed to the transfer engine.
type Settings struct {
	Destination string
	QuickSave   bool
}
