package tool

import (
	"context"
	"net"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// RejectUnsupportNetworkInterface filters out interfaces that cannot carry
// LAN traffic: down, loopback, and the usual virtual adapters.
func RejectUnsupportNetworkInterface(iface net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 {
		return true
	}
	if iface.Flags&net.FlagLoopback != 0 {
		return true
	}
	name := strings.ToLower(iface.Name)
	for _, prefix := range []string{"docker", "br-", "veth", "virbr", "vmnet", "tailscale", "zt", "tun", "wg"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// GetLocalIPv4Set returns every usable IPv4 address of this host.
func GetLocalIPv4Set() []net.IP {
	var out []net.IP
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		if RejectUnsupportNetworkInterface(iface) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			out = append(out, ip4)
		}
	}
	return out
}

// GenerateNetworkIPs expands the /24 around each local address, skipping the
// network and broadcast addresses and the host itself.
func GenerateNetworkIPs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, local := range GetLocalIPv4Set() {
		base := local.Mask(net.CIDRMask(24, 32))
		for i := 1; i < 255; i++ {
			candidate := net.IPv4(base[0], base[1], base[2], byte(i))
			if candidate.Equal(local) {
				continue
			}
			s := candidate.String()
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// QuickICMPProbe reports whether the host answers a single ping within the
// timeout. Uses unprivileged UDP ping so it works without CAP_NET_RAW.
func QuickICMPProbe(ctx context.Context, ip string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return false
	}
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Timeout = timeout
	if err := pinger.RunWithContext(ctx); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
