package config

import (
	"fmt"
	"net"
)

// pickIP selects a usable, non-loopback IPv4 address matching mode
// ("private" or "public").
func pickIP(mode string) (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue
			}

			if mode == "private" && isPrivateIP(ip) {
				return ip, nil
			}
			if mode == "public" && !isPrivateIP(ip) {
				return ip, nil
			}
		}
	}
	return nil, fmt.Errorf("no suitable %s interface found", mode)
}

// isPrivateIP reports whether ip falls within an RFC1918 private block.
func isPrivateIP(ip net.IP) bool {
	privateBlocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}
	for _, block := range privateBlocks {
		_, cidr, _ := net.ParseCIDR(block)
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Listen opens a TCP listener for this node, resolving Host/Port (and
// auto-selecting a host matching Mode when Host is empty), and returns
// the listener along with the address that should be advertised to
// peers if NodeConfig.Addr was left unset.
func (cfg *NodeConfig) Listen() (net.Listener, string, error) {
	host := cfg.Host
	if host == "" {
		ip, err := pickIP(cfg.Mode)
		if err != nil {
			return nil, "", err
		}
		host = ip.String()
	} else {
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, "", fmt.Errorf("invalid IP address: %s", host)
		}
		if cfg.Mode == "private" && !isPrivateIP(ip) {
			return nil, "", fmt.Errorf("host %s is not private but mode=private", host)
		}
		if cfg.Mode == "public" && isPrivateIP(ip) {
			return nil, "", fmt.Errorf("host %s is private but mode=public", host)
		}
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	advertise := cfg.Addr
	if advertise == "" {
		advertise = addr
	}
	return lis, advertise, nil
}
