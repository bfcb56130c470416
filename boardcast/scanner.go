// Package boardcast implements peer discovery: UDP multicast announcements
// with an HTTP subnet sweep as fallback for networks that filter multicast.
package boardcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/types"
)

const (
	readBufferSize = 1024 * 8
	pollInterval   = 100 * time.Millisecond
	scanDuration   = 2 * time.Second
)

// announceDelays is the burst cadence of the announce loop.
var announceDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2000 * time.Millisecond,
}

// Scanner owns the multicast membership. One instance serves both roles:
// Scan for the sending side, Listen plus AnnounceLoop for the receiving side.
type Scanner struct {
	conn  *net.UDPConn
	group *net.UDPAddr
	self  *types.Device

	announceMsg []byte
	responseMsg []byte
}

// NewScanner joins the multicast group on all interfaces and pre-encodes
// both datagram payloads.
func NewScanner(self *types.Device, multiaddr string, port int) (*Scanner, error) {
	group := &net.UDPAddr{IP: net.ParseIP(multiaddr), Port: port}
	if group.IP == nil {
		return nil, fmt.Errorf("invalid multicast address: %s", multiaddr)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, err
	}
	if err := conn.SetReadBuffer(readBufferSize); err != nil {
		tool.DefaultLogger.Errorf("Failed to set read buffer: %v", err)
	}

	announceMsg, err := sonic.Marshal(types.NewMulticastDto(self, true))
	if err != nil {
		conn.Close()
		return nil, err
	}
	responseMsg, err := sonic.Marshal(types.NewMulticastDto(self, false))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Scanner{
		conn:        conn,
		group:       group,
		self:        self,
		announceMsg: announceMsg,
		responseMsg: responseMsg,
	}, nil
}

func (s *Scanner) Close() error {
	return s.conn.Close()
}

// SendAnnouncement multicasts our presence and asks peers to answer.
func (s *Scanner) SendAnnouncement() error {
	return s.sendDatagram(s.announceMsg)
}

func (s *Scanner) sendResponse() error {
	return s.sendDatagram(s.responseMsg)
}

func (s *Scanner) sendDatagram(payload []byte) error {
	conn, err := net.DialUDP("udp4", nil, s.group)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(payload)
	return err
}

// HandleDatagram parses one multicast payload and resolves it to a device.
// It returns false for malformed payloads and for our own datagrams.
func HandleDatagram(self *types.Device, data []byte, fromIP string) (types.Device, bool) {
	var dto types.MulticastDto
	if err := sonic.Unmarshal(data, &dto); err != nil {
		tool.DefaultLogger.Debugf("Failed to parse UDP message: %v", err)
		return types.Device{}, false
	}
	if dto.Fingerprint == "" || dto.Fingerprint == self.Fingerprint {
		return types.Device{}, false
	}
	return dto.ToDevice(fromIP, types.DefaultPort, false), true
}

// Scan announces once, then collects answers. It runs for at least the scan
// window and keeps going until at least one device answered or the context
// ends.
func (s *Scanner) Scan(ctx context.Context) ([]types.Device, error) {
	if err := s.SendAnnouncement(); err != nil {
		tool.DefaultLogger.Errorf("Failed to send announcement: %v", err)
	}

	var devices []types.Device
	seen := make(map[string]struct{})
	buf := make([]byte, readBufferSize)
	deadline := time.Now().Add(scanDuration)

	for time.Now().Before(deadline) || len(devices) == 0 {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		s.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return devices, err
		}
		device, ok := HandleDatagram(s.self, buf[:n], addr.IP.String())
		if !ok {
			continue
		}
		if _, dup := seen[device.Fingerprint]; dup {
			continue
		}
		seen[device.Fingerprint] = struct{}{}
		tool.DefaultLogger.Debugf("Found device %s at %s", device.Alias, device.IP)
		devices = append(devices, device)
	}
	return devices, nil
}

// Listen consumes multicast datagrams until the context ends, reporting each
// resolved peer and answering announcements so senders can find us.
func (s *Scanner) Listen(ctx context.Context, onDevice func(types.Device)) error {
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return err
		}

		var dto types.MulticastDto
		if err := sonic.Unmarshal(buf[:n], &dto); err != nil {
			continue
		}
		if dto.Fingerprint == "" || dto.Fingerprint == s.self.Fingerprint {
			continue
		}
		if onDevice != nil {
			onDevice(dto.ToDevice(addr.IP.String(), types.DefaultPort, false))
		}
		if dto.IsAnnouncement() {
			if err := s.sendResponse(); err != nil {
				tool.DefaultLogger.Debugf("Failed to answer announcement: %v", err)
			}
		}
	}
}

// AnnounceLoop repeats the announce burst until the context ends.
func (s *Scanner) AnnounceLoop(ctx context.Context) {
	for {
		for _, delay := range announceDelays {
			if ctx.Err() != nil {
				return
			}
			if err := s.SendAnnouncement(); err != nil {
				tool.DefaultLogger.Errorf("Failed to send announcement: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
