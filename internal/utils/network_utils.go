package utils

import (
	"net"
	"strings"
)

// cgnatBlock is 100.64.0.0/10, used by carrier-grade NAT, Tailscale and
// Cloudflare WARP.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

// tunnelNames are interface name fragments of VPN and virtual adapters.
var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp"}

// ShouldForceRelay reports whether the host is likely behind a VPN or
// CGNAT, where direct paths rarely work and a TURN relay should be used.
func ShouldForceRelay() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			addrs = nil
		}
		if needsRelay(iface.Name, addrIPs(addrs)) {
			return true
		}
	}
	return false
}

func needsRelay(name string, ips []net.IP) bool {
	name = strings.ToLower(name)
	for _, fragment := range tunnelNames {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	for _, ip := range ips {
		if cgnatBlock.Contains(ip) {
			return true
		}
	}
	return false
}

func addrIPs(addrs []net.Addr) []net.IP {
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		switch v := addr.(type) {
		case *net.IPNet:
			ips = append(ips, v.IP)
		case *net.IPAddr:
			ips = append(ips, v.IP)
		}
	}
	return ips
}
