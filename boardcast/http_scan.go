package boardcast

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/types"
)

const (
	icmpProbeTimeout = 500 * time.Millisecond
	httpScanTimeout  = 3 * time.Second
	httpScanWorkers  = 32
)

// probeLimiter paces the subnet sweep so a /24 does not arrive as one burst.
var probeLimiter = rate.NewLimiter(rate.Limit(128), 16)

// ScanHTTP sweeps the local /24 networks over HTTP, for networks where
// multicast is filtered. Each reachable host gets a register call; peers
// answer with their own descriptor.
func ScanHTTP(ctx context.Context, self *types.Device, port int) []types.Device {
	payload, err := sonic.Marshal(types.NewRegisterDto(self))
	if err != nil {
		tool.DefaultLogger.Errorf("Failed to encode register payload: %v", err)
		return nil
	}
	ips := tool.GenerateNetworkIPs()
	tool.DefaultLogger.Infof("HTTP scan over %d addresses", len(ips))

	client := tool.NewHTTPClient(httpScanTimeout)

	var mu sync.Mutex
	var devices []types.Device
	seen := make(map[string]struct{})

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < httpScanWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range jobs {
				device, ok := scanOneIP(ctx, ip, port, payload, client)
				if !ok || device.Fingerprint == self.Fingerprint {
					continue
				}
				mu.Lock()
				if _, dup := seen[device.Fingerprint]; !dup {
					seen[device.Fingerprint] = struct{}{}
					devices = append(devices, device)
				}
				mu.Unlock()
			}
		}()
	}
	for _, ip := range ips {
		if err := probeLimiter.Wait(ctx); err != nil {
			break
		}
		jobs <- ip
	}
	close(jobs)
	wg.Wait()
	return devices
}

// scanOneIP probes reachability first, then posts the register payload. It
// tries https and falls back to plain http when the peer is not serving TLS.
func scanOneIP(ctx context.Context, ip string, port int, payload []byte, client *http.Client) (types.Device, bool) {
	if !tool.QuickICMPProbe(ctx, ip, icmpProbeTimeout) {
		return types.Device{}, false
	}
	for _, https := range []bool{true, false} {
		device, ok, retry := registerOn(ctx, ip, port, https, payload, client)
		if ok {
			return device, true
		}
		if !retry {
			break
		}
	}
	return types.Device{}, false
}

func registerOn(ctx context.Context, ip string, port int, https bool, payload []byte, client *http.Client) (types.Device, bool, bool) {
	url := types.RegisterTarget(ip, port, https)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.Device{}, false, false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		// A plain-http peer resets the TLS handshake; retry without it.
		retry := https && (strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "reset") || strings.Contains(err.Error(), "tls"))
		return types.Device{}, false, retry
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return types.Device{}, false, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Device{}, false, false
	}
	var dto types.RegisterDto
	if err := sonic.Unmarshal(body, &dto); err != nil {
		return types.Device{}, false, false
	}
	if dto.Fingerprint == "" {
		return types.Device{}, false, false
	}
	device := dto.ToDevice(ip, port, https)
	tool.DefaultLogger.Infof("Discovered device %s at %s", device.Alias, ip)
	return device, true, false
}
