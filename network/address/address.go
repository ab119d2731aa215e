// Package address defines the network identity of a Kademlia peer: its key and
// the IP address and port it can be reached on.
package address

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/key"
)

var (
	ErrInvalidIP            = errors.New("invalid ip address")
	ErrUnsupportedMultiaddr = errors.New("multiaddr has no ip and port component")
)

// PeerAddress is the network identity of a peer. It is immutable once
// constructed. Two addresses carrying the same key identify the same peer,
// regardless of their ip and port.
type PeerAddress[K kad.Key[K]] struct {
	key  K
	ip   netip.Addr
	port uint16
}

var _ kad.NodeID[key.Key8] = (*PeerAddress[key.Key8])(nil)

// New returns the address of the peer identified by k, reachable on ip and port.
// IPv4-mapped IPv6 addresses are unmapped.
func New[K kad.Key[K]](k K, ip netip.Addr, port uint16) (*PeerAddress[K], error) {
	if !ip.IsValid() {
		return nil, ErrInvalidIP
	}
	return &PeerAddress[K]{
		key:  k,
		ip:   ip.Unmap(),
		port: port,
	}, nil
}

// FromUDPAddr returns the address of the peer identified by k, reachable on addr.
func FromUDPAddr[K kad.Key[K]](k K, addr *net.UDPAddr) (*PeerAddress[K], error) {
	if addr == nil {
		return nil, ErrInvalidIP
	}
	ip, ok := netip.AddrFromSlice(addr.IP)
	if !ok {
		return nil, ErrInvalidIP
	}
	if addr.Port < 0 || addr.Port > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, addr.Port)
	}
	return New(k, ip, uint16(addr.Port))
}

// FromMultiaddr returns the address of the peer identified by k from a multiaddr
// of the form /ip4/<ip>/udp/<port>. ip6 and tcp components are also accepted.
func FromMultiaddr[K kad.Key[K]](k K, m ma.Multiaddr) (*PeerAddress[K], error) {
	ipStr, err := m.ValueForProtocol(ma.P_IP4)
	if err != nil {
		if ipStr, err = m.ValueForProtocol(ma.P_IP6); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMultiaddr, m)
		}
	}
	portStr, err := m.ValueForProtocol(ma.P_UDP)
	if err != nil {
		if portStr, err = m.ValueForProtocol(ma.P_TCP); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMultiaddr, m)
		}
	}

	ip, err := netip.ParseAddr(ipStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIP, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("parse port: %w", err)
	}
	return New(k, ip, uint16(port))
}

// Key returns the Kademlia key of the peer.
func (a *PeerAddress[K]) Key() K {
	return a.key
}

func (a *PeerAddress[K]) IP() netip.Addr {
	return a.ip
}

func (a *PeerAddress[K]) Port() uint16 {
	return a.port
}

// AddrPort returns the ip and port the peer is reachable on.
func (a *PeerAddress[K]) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.ip, a.port)
}

func (a *PeerAddress[K]) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(a.AddrPort())
}

// Multiaddr returns the udp multiaddr the peer is reachable on.
func (a *PeerAddress[K]) Multiaddr() (ma.Multiaddr, error) {
	proto := "ip4"
	if a.ip.Is6() {
		proto = "ip6"
	}
	return ma.NewMultiaddr(fmt.Sprintf("/%s/%s/udp/%d", proto, a.ip, a.port))
}

// Equal reports whether both addresses identify the same peer.
func (a *PeerAddress[K]) Equal(o *PeerAddress[K]) bool {
	if a == nil || o == nil {
		return a == o
	}
	return key.Equal(a.key, o.key)
}

// SameEndpoint reports whether both addresses carry the same ip and port.
func (a *PeerAddress[K]) SameEndpoint(o *PeerAddress[K]) bool {
	return a.ip == o.ip && a.port == o.port
}

// String returns the hexadecimal representation of the peer's key.
func (a *PeerAddress[K]) String() string {
	return key.HexString(a.key)
}
