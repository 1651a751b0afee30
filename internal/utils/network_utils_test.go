package utils

import (
	"net"
	"testing"
)

func TestNeedsRelay(t *testing.T) {
	tests := []struct {
		name  string
		iface string
		ips   []string
		want  bool
	}{
		{"ethernet", "eth0", []string{"192.168.1.20"}, false},
		{"wireguard", "wg0", []string{"10.8.0.2"}, true},
		{"openvpn", "TUN1", nil, true},
		{"cgnat address", "en0", []string{"100.72.4.9"}, true},
		{"cgnat boundary", "en0", []string{"100.128.0.1"}, false},
		{"ipv6", "en0", []string{"2001:db8::1"}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var ips []net.IP
			for _, s := range test.ips {
				ips = append(ips, net.ParseIP(s))
			}
			if got := needsRelay(test.iface, ips); got != test.want {
				t.Errorf("needsRelay(%q, %v) = %v, want %v", test.iface, test.ips, got, test.want)
			}
		})
	}
}

func TestAddrIPs(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("10.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPAddr{IP: net.ParseIP("::1")},
		&net.TCPAddr{IP: net.ParseIP("10.0.0.2"), Port: 80},
	}
	if got := addrIPs(addrs); len(got) != 2 {
		t.Errorf("addrIPs = %v, want 2 addresses", got)
	}
}
