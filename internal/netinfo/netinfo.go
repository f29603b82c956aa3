// Package netinfo publishes hostname, bridge IP addresses, and
// per-interface link status. Interface enumeration
// uses the standard library's net package, and link speed/carrier are
// read from their sysfs files the same way internal/adc reads IIO sysfs
// attributes: this is kernel ABI, not an ecosystem library's concern.
package netinfo

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/linux-automation/tacd/internal/model"
)

// Collector gathers a snapshot of the host's network state.
type Collector struct {
	sysClassNet string // default "/sys/class/net", overridable in tests
	bridgeName  string
}

func New(bridgeName string) *Collector {
	return &Collector{sysClassNet: "/sys/class/net", bridgeName: bridgeName}
}

// Hostname returns the OS hostname.
func (c *Collector) Hostname() (string, error) {
	return os.Hostname()
}

// BridgeAddrs returns the IPv4/IPv6 addresses currently assigned to the
// configured bridge interface.
func (c *Collector) BridgeAddrs() ([]string, error) {
	iface, err := net.InterfaceByName(c.bridgeName)
	if err != nil {
		return nil, fmt.Errorf("netinfo: bridge %q: %w", c.bridgeName, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out, nil
}

// LinkStatus reads speed/carrier for one interface from sysfs.
func (c *Collector) LinkStatus(ifName string) (model.LinkStatus, error) {
	speedRaw, err := os.ReadFile(c.sysClassNet + "/" + ifName + "/speed")
	if err != nil {
		return model.LinkStatus{}, err
	}
	speed, _ := strconv.Atoi(strings.TrimSpace(string(speedRaw)))
	if speed < 0 {
		speed = 0 // sysfs reports -1 when the link is down
	}

	carrierRaw, err := os.ReadFile(c.sysClassNet + "/" + ifName + "/carrier")
	carrier := false
	if err == nil {
		carrier = strings.TrimSpace(string(carrierRaw)) == "1"
	}

	return model.LinkStatus{SpeedMbps: speed, Carrier: carrier}, nil
}
