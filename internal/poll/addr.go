package poll

import (
	"net"
	"net/netip"
	"strconv"
)

// inetString formats a raw IPv4/IPv6 address and port as host:port.
func inetString(ip []byte, port int) string {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return net.JoinHostPort(net.IP(ip).String(), strconv.Itoa(port))
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)).String()
}
