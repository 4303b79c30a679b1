package device

import (
	"fmt"
	"net"
	"time"

	"github.com/go-ping/ping"
)

// ProbeAttacher treats the host's existing network as the attachment and
// verifies it by probing the ingestion host with ICMP. On hardware the
// attacher drives the radio; on a host the network is already joined and
// only reachability is in question.
type ProbeAttacher struct {
	target  string
	timeout time.Duration
}

// NewProbeAttacher probes target (the ingestion service host) to decide
// whether the network is usable.
func NewProbeAttacher(target string, timeout time.Duration) *ProbeAttacher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeAttacher{target: target, timeout: timeout}
}

// Connect records nothing; the host network is joined out of band. The
// credentials are accepted for interface compatibility.
func (p *ProbeAttacher) Connect(ssid, password string) error {
	return nil
}

// IsConnected sends one ICMP probe at the target.
func (p *ProbeAttacher) IsConnected() bool {
	pinger, err := ping.NewPinger(p.target)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

// IPAddr returns the first non-loopback IPv4 address of the host.
func (p *ProbeAttacher) IPAddr() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}
