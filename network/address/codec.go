package address

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/netip"

	"github.com/plprobelab/go-kadtable/kad"
)

var (
	ErrNotIPv4         = errors.New("address is not an ipv4 address")
	ErrInvalidPort     = errors.New("port out of range")
	ErrKeyNotMarshaler = errors.New("key does not implement encoding.BinaryMarshaler")
	ErrTrailingBytes   = errors.New("trailing bytes after peer address")
)

const (
	ipv4Len = 4
	portLen = 4
)

// EncodedLen returns the length in bytes of the binary form of a peer address using key type K.
func EncodedLen[K kad.Key[K]]() int {
	var k K
	return keyLen(k) + ipv4Len + portLen
}

func keyLen[K kad.Key[K]](k K) int {
	return (k.BitLen() + 7) / 8
}

// MarshalBinary returns the binary form of the address: the key bytes, followed
// by the 4 byte IPv4 address and the port as a 4 byte big-endian integer.
// Peers that are only reachable over IPv6 cannot be encoded.
func (a *PeerAddress[K]) MarshalBinary() ([]byte, error) {
	km, ok := any(a.key).(encoding.BinaryMarshaler)
	if !ok {
		return nil, ErrKeyNotMarshaler
	}
	if !a.ip.Is4() {
		return nil, fmt.Errorf("%w: %s", ErrNotIPv4, a.ip)
	}

	kb, err := km.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	buf := make([]byte, 0, len(kb)+ipv4Len+portLen)
	buf = append(buf, kb...)
	ip4 := a.ip.As4()
	buf = append(buf, ip4[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(a.port))
	return buf, nil
}

// WriteTo writes the binary form of the address to w.
func (a *PeerAddress[K]) WriteTo(w io.Writer) (int64, error) {
	buf, err := a.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// Read reads the binary form of a peer address from r. It returns an error
// wrapping io.EOF or io.ErrUnexpectedEOF if r holds fewer bytes than needed.
func Read[K kad.Key[K], PK interface {
	*K
	encoding.BinaryUnmarshaler
}](r io.Reader) (*PeerAddress[K], error) {
	var k K
	buf := make([]byte, keyLen(k)+ipv4Len+portLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read peer address: %w", err)
	}

	kl := keyLen(k)
	if err := PK(&k).UnmarshalBinary(buf[:kl]); err != nil {
		return nil, fmt.Errorf("unmarshal key: %w", err)
	}
	ip := netip.AddrFrom4([ipv4Len]byte(buf[kl : kl+ipv4Len]))
	port := binary.BigEndian.Uint32(buf[kl+ipv4Len:])
	if port > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	return New(k, ip, uint16(port))
}

// Unmarshal decodes a peer address from data, which must hold exactly one encoded address.
func Unmarshal[K kad.Key[K], PK interface {
	*K
	encoding.BinaryUnmarshaler
}](data []byte) (*PeerAddress[K], error) {
	r := bytes.NewReader(data)
	a, err := Read[K, PK](r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, ErrTrailingBytes
	}
	return a, nil
}
