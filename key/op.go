package key

import (
	"strings"

	"github.com/plprobelab/go-kadtable/kad"
)

// Equal reports whether two keys have equal numeric values.
func Equal[K kad.Key[K]](a, b K) bool {
	return a.Compare(b) == 0
}

// Distance returns the XOR distance between two keys.
func Distance[K kad.Key[K]](a, b K) K {
	return a.Xor(b)
}

// DistanceClass returns the position of the highest set bit of the XOR
// distance between a and b, counting from 1 at the least significant bit.
// It is 0 if and only if a and b are equal and BitLen if they differ in
// their most significant bit.
func DistanceClass[K kad.Key[K]](a, b K) int {
	return a.BitLen() - a.CommonPrefixLength(b)
}

// Closer reports whether a is strictly closer to target than b.
func Closer[K kad.Key[K]](target, a, b K) bool {
	return target.Xor(a).Compare(target.Xor(b)) < 0
}

// BitString returns a string containing the binary representation of a key.
func BitString[K kad.Key[K]](k K) string {
	if bs, ok := any(k).(interface{ BitString() string }); ok {
		return bs.BitString()
	}
	b := new(strings.Builder)
	b.Grow(k.BitLen())
	for i := 0; i < k.BitLen(); i++ {
		if k.Bit(i) == 0 {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}

// HexString returns a string containing the hexadecimal representation of a key.
func HexString[K kad.Key[K]](k K) string {
	if hs, ok := any(k).(interface{ HexString() string }); ok {
		return hs.HexString()
	}
	b := new(strings.Builder)
	b.Grow((k.BitLen() + 3) / 4)

	h := [...]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd', 'e', 'f'}

	// a leading partial nibble is padded with zero bits
	prebits := k.BitLen() % 4
	if prebits > 0 {
		var n byte
		for i := 0; i < prebits; i++ {
			n = n<<1 | byte(k.Bit(i))
		}
		b.WriteByte(h[n])
	}
	for i := prebits; i < k.BitLen(); i += 4 {
		var n byte
		n |= byte(k.Bit(i)) << 3
		n |= byte(k.Bit(i+1)) << 2
		n |= byte(k.Bit(i+2)) << 1
		n |= byte(k.Bit(i + 3))
		b.WriteByte(h[n])
	}
	return b.String()
}
