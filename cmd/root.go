// Package cmd implements the command line interface.
package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nekoha/localsend-cli/api"
	"github.com/nekoha/localsend-cli/boardcast"
	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/transfer"
	"github.com/nekoha/localsend-cli/types"
)

var (
	flagAlias     string
	flagMultiaddr string
	flagPort      int
	flagHTTPPort  int
	flagProtocol  string
	flagLogLevel  string
	flagConfig    string
	flagNoNerd    bool
)

var rootCmd = &cobra.Command{
	Use:   "localsend-cli",
	Short: "Share files with LocalSend devices on the local network",
	Long: `localsend-cli sends and receives files over the LocalSend protocol.
Devices find each other via UDP multicast on the local network; transfers
run over plain HTTP or HTTPS between the two peers, with no server in
between.`,
}

// Execute runs the CLI. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAlias, "alias", "", "device alias shown to peers (env LOCALSEND_ALIAS)")
	pf.StringVar(&flagMultiaddr, "multiaddr", "", "multicast group address (env LOCALSEND_MULTIADDR)")
	pf.IntVar(&flagPort, "port", 0, "multicast port (env LOCALSEND_PORT)")
	pf.IntVar(&flagHTTPPort, "http-port", 0, "port of the transfer server (env LOCALSEND_HTTP_PORT)")
	pf.StringVar(&flagProtocol, "protocol", "", "transfer protocol, http or https")
	pf.StringVar(&flagLogLevel, "log", "", "log level: debug, info, warn, error (env LOCALSEND_LOG)")
	pf.StringVar(&flagConfig, "config", "", "config file path (env LOCALSEND_CONFIG)")
	pf.BoolVar(&flagNoNerd, "no-nerd", false, "plain progress output without nerd font icons")
}

// appContext bundles everything a subcommand needs.
type appContext struct {
	cfg     *types.AppConfig
	device  *types.Device
	state   *transfer.ServerState
	server  *api.Server
	scanner *boardcast.Scanner
}

// setup loads config, applies flag and environment overrides, and prepares
// the server and scanner. The server is not started yet.
func setup(settings types.Settings) (*appContext, error) {
	tool.InitLogger()
	if level := firstOf(flagLogLevel, os.Getenv("LOCALSEND_LOG")); level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
		tool.DefaultLogger.SetLevel(parsed)
	}

	configPath := firstOf(flagConfig, os.Getenv("LOCALSEND_CONFIG"))
	cfg, err := tool.LoadAppConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if alias := firstOf(flagAlias, os.Getenv("LOCALSEND_ALIAS")); alias != "" {
		cfg.Alias = alias
	}
	if cfg.Alias == "" {
		if hostname, err := os.Hostname(); err == nil {
			cfg.Alias = hostname
		} else {
			cfg.Alias = tool.NameGenerator()
		}
	}
	if addr := firstOf(flagMultiaddr, os.Getenv("LOCALSEND_MULTIADDR")); addr != "" {
		cfg.MulticastAddress = addr
	}
	if port := firstIntOf(flagPort, os.Getenv("LOCALSEND_PORT")); port != 0 {
		cfg.Port = port
	}
	if port := firstIntOf(flagHTTPPort, os.Getenv("LOCALSEND_HTTP_PORT")); port != 0 {
		cfg.HTTPPort = port
	}
	if flagProtocol != "" {
		cfg.Protocol = flagProtocol
	}
	if fingerprint := os.Getenv("LOCALSEND_FINGERPRINT"); fingerprint != "" {
		cfg.Fingerprint = fingerprint
	}
	if cfg.DeviceModel == "" {
		cfg.DeviceModel = runtime.GOOS
	}

	device := &types.Device{
		Version:     types.ProtocolVersion2,
		Port:        cfg.HTTPPort,
		Fingerprint: cfg.Fingerprint,
		Alias:       cfg.Alias,
		DeviceModel: cfg.DeviceModel,
		DeviceType:  types.ParseDeviceType(cfg.DeviceType),
	}
	if ips := tool.GetLocalIPv4Set(); len(ips) > 0 {
		device.IP = ips[0].String()
	}

	state := transfer.NewServerState(settings)
	server, err := api.NewServer(device, state, cfg.Protocol, cfg.HTTPPort)
	if err != nil {
		return nil, err
	}
	scanner, err := boardcast.NewScanner(device, cfg.MulticastAddress, cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to join multicast group: %w", err)
	}
	return &appContext{
		cfg:     cfg,
		device:  device,
		state:   state,
		server:  server,
		scanner: scanner,
	}, nil
}

// startServer runs the API server in the background. Listen errors after
// startup are fatal because nothing can reach us without it.
func (app *appContext) startServer() {
	go func() {
		if err := app.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			tool.DefaultLogger.Fatalf("API server stopped: %v", err)
		}
	}()
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstIntOf(flag int, env string) int {
	if flag != 0 {
		return flag
	}
	if env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			return n
		}
	}
	return 0
}
