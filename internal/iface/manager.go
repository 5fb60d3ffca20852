// Package iface adapts Linux network interfaces to the NIB's opaque
// per-interface PIDs, and mirrors confirmed neighbor-cache entries into
// the kernel neighbor table.
package iface

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/hostinger/ipnib/internal/logger"
	"github.com/vishvananda/netlink"
)

// Manager resolves interface names to the NIB's PID space and pushes
// confirmed neighbor entries down into the kernel.
type Manager struct {
	byName map[string]uint16
	byPID  map[uint16]string
}

// NewManager builds a Manager by enumerating the host's links.
func NewManager() (*Manager, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("iface: listing links: %w", err)
	}
	m := &Manager{byName: make(map[string]uint16), byPID: make(map[uint16]string)}
	for _, link := range links {
		idx := uint16(link.Attrs().Index)
		m.byName[link.Attrs().Name] = idx
		m.byPID[idx] = link.Attrs().Name
	}
	return m, nil
}

// PID returns the NIB interface identifier for a named link.
func (m *Manager) PID(name string) (uint16, error) {
	pid, ok := m.byName[name]
	if !ok {
		return 0, fmt.Errorf("iface: unknown interface %q", name)
	}
	return pid, nil
}

// Name returns the link name for a NIB interface identifier.
func (m *Manager) Name(pid uint16) (string, error) {
	name, ok := m.byPID[pid]
	if !ok {
		return "", fmt.Errorf("iface: unknown pid %d", pid)
	}
	return name, nil
}

// MirrorNeighbor pushes a confirmed (addr, l2addr, iface) neighbor-cache
// entry into the kernel neighbor table.
func (m *Manager) MirrorNeighbor(pid uint16, addr netip.Addr, l2addr []byte) error {
	name, err := m.Name(pid)
	if err != nil {
		return err
	}
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("iface: link %s: %w", name, err)
	}

	neigh := &netlink.Neigh{
		LinkIndex:    link.Attrs().Index,
		IP:           net.IP(addr.AsSlice()),
		HardwareAddr: net.HardwareAddr(l2addr),
		State:        netlink.NUD_REACHABLE,
		Family:       netlink.FAMILY_V6,
	}
	if err := netlink.NeighSet(neigh); err != nil {
		return fmt.Errorf("iface: setting neighbor %s on %s: %w", addr, name, err)
	}
	logger.Debug("[Iface] Mirrored neighbor %s -> %x on %s", addr, l2addr, name)
	return nil
}

// IsUp reports whether the named link is administratively up.
func (m *Manager) IsUp(name string) (bool, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return false, err
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}
