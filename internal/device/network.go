package device

import (
	"net"
	"strings"

	"github.com/fisaks/voldisp/internal/config"
)

// Link reports whether the configured network interface is associated. On
// Linux the OS (wpa_supplicant/NetworkManager) owns the association, so an
// interface that is up with an IPv4 address counts as joined.
type Link struct {
	iface      string
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

func NewLink(cfg config.NetworkConfig) *Link {
	return &Link{
		iface:      strings.TrimSpace(cfg.Interface),
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

func (l *Link) Associated() bool {
	ifs, err := l.interfaces()
	if err != nil {
		return false
	}
	for _, i := range ifs {
		if l.iface != "" && i.Name != l.iface {
			continue
		}
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := l.addrs(i)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.To4() != nil && !ipn.IP.IsLinkLocalUnicast() {
				return true
			}
		}
	}
	return false
}
