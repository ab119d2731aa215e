package key

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"

	"github.com/plprobelab/go-kadtable/kad"
)

// Key8 is an 8-bit Kademlia key, suitable for testing and simulation of very small networks.
type Key8 uint8

var _ kad.Key[Key8] = Key8(0)

// BitLen returns the length of the key in bits, which is always 8.
func (k Key8) BitLen() int {
	return 8
}

// Bit returns the value of the i'th bit of the key from most significant to least.
func (k Key8) Bit(i int) uint {
	if i < 0 || i > 7 {
		panic(fmt.Sprintf("bit index %d out of range", i))
	}
	return uint((k >> (7 - i)) & 1)
}

// Xor returns the result of the eXclusive OR operation between the key and another key.
func (k Key8) Xor(o Key8) Key8 {
	return k ^ o
}

// CommonPrefixLength returns the number of leading bits the key shares with another key.
func (k Key8) CommonPrefixLength(o Key8) int {
	return bits.LeadingZeros8(uint8(k ^ o))
}

// Compare compares the numeric value of the key with another key.
func (k Key8) Compare(o Key8) int {
	if k < o {
		return -1
	} else if k > o {
		return 1
	}
	return 0
}

// HexString returns a string containing the hexadecimal representation of the key.
func (k Key8) HexString() string {
	return fmt.Sprintf("%02x", uint8(k))
}

// BitString returns a string containing the binary representation of the key.
func (k Key8) BitString() string {
	return fmt.Sprintf("%08b", uint8(k))
}

func (k Key8) String() string {
	return k.HexString()
}

func (k Key8) MarshalBinary() ([]byte, error) {
	return []byte{byte(k)}, nil
}

func (k *Key8) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return ErrInvalidKey(1)
	}
	*k = Key8(data[0])
	return nil
}

// Key32 is a 32-bit Kademlia key, suitable for testing and simulation of small networks.
type Key32 uint32

var _ kad.Key[Key32] = Key32(0)

// BitLen returns the length of the key in bits, which is always 32.
func (k Key32) BitLen() int {
	return 32
}

// Bit returns the value of the i'th bit of the key from most significant to least.
func (k Key32) Bit(i int) uint {
	if i < 0 || i > 31 {
		panic(fmt.Sprintf("bit index %d out of range", i))
	}
	return uint((k >> (31 - i)) & 1)
}

// Xor returns the result of the eXclusive OR operation between the key and another key.
func (k Key32) Xor(o Key32) Key32 {
	return k ^ o
}

// CommonPrefixLength returns the number of leading bits the key shares with another key.
func (k Key32) CommonPrefixLength(o Key32) int {
	return bits.LeadingZeros32(uint32(k ^ o))
}

// Compare compares the numeric value of the key with another key.
func (k Key32) Compare(o Key32) int {
	if k < o {
		return -1
	} else if k > o {
		return 1
	}
	return 0
}

// HexString returns a string containing the hexadecimal representation of the key.
func (k Key32) HexString() string {
	return fmt.Sprintf("%08x", uint32(k))
}

// BitString returns a string containing the binary representation of the key.
func (k Key32) BitString() string {
	return fmt.Sprintf("%032b", uint32(k))
}

func (k Key32) String() string {
	return k.HexString()
}

func (k Key32) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(k))
	return buf, nil
}

func (k *Key32) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return ErrInvalidKey(4)
	}
	*k = Key32(binary.BigEndian.Uint32(data))
	return nil
}

// Key160 is a 160-bit Kademlia key, as defined by the original Kademlia paper and used with SHA-1 identifiers.
type Key160 [20]byte

var _ kad.Key[Key160] = Key160{}

// NewKey160 returns a 160-bit Kademlia key whose bits are set from the supplied bytes.
// It panics if data is not exactly 20 bytes long.
func NewKey160(data []byte) Key160 {
	var k Key160
	if len(data) != len(k) {
		panic("invalid data length for key")
	}
	copy(k[:], data)
	return k
}

// ZeroKey160 returns a 160-bit Kademlia key with all bits zeroed.
func ZeroKey160() Key160 {
	return Key160{}
}

// BitLen returns the length of the key in bits, which is always 160.
func (k Key160) BitLen() int {
	return 160
}

// Bit returns the value of the i'th bit of the key from most significant to least.
func (k Key160) Bit(i int) uint {
	return bitAt(k[:], i)
}

// Xor returns the result of the eXclusive OR operation between the key and another key.
func (k Key160) Xor(o Key160) Key160 {
	var xored Key160
	xorBytes(xored[:], k[:], o[:])
	return xored
}

// CommonPrefixLength returns the number of leading bits the key shares with another key.
func (k Key160) CommonPrefixLength(o Key160) int {
	return commonPrefixLength(k[:], o[:])
}

// Compare compares the numeric value of the key with another key.
func (k Key160) Compare(o Key160) int {
	return bytes.Compare(k[:], o[:])
}

// HexString returns a string containing the hexadecimal representation of the key.
func (k Key160) HexString() string {
	return hex.EncodeToString(k[:])
}

func (k Key160) String() string {
	return k.HexString()
}

func (k Key160) MarshalBinary() ([]byte, error) {
	buf := make([]byte, len(k))
	copy(buf, k[:])
	return buf, nil
}

func (k *Key160) UnmarshalBinary(data []byte) error {
	if len(data) != len(k) {
		return ErrInvalidKey(len(k))
	}
	copy(k[:], data)
	return nil
}

// Key256 is a 256-bit Kademlia key, as used by IPFS and libp2p.
type Key256 [32]byte

var _ kad.Key[Key256] = Key256{}

// NewKey256 returns a 256-bit Kademlia key whose bits are set from the supplied bytes.
// It panics if data is not exactly 32 bytes long.
func NewKey256(data []byte) Key256 {
	var k Key256
	if len(data) != len(k) {
		panic("invalid data length for key")
	}
	copy(k[:], data)
	return k
}

// ZeroKey256 returns a 256-bit Kademlia key with all bits zeroed.
func ZeroKey256() Key256 {
	return Key256{}
}

// BitLen returns the length of the key in bits, which is always 256.
func (k Key256) BitLen() int {
	return 256
}

// Bit returns the value of the i'th bit of the key from most significant to least.
func (k Key256) Bit(i int) uint {
	return bitAt(k[:], i)
}

// Xor returns the result of the eXclusive OR operation between the key and another key.
func (k Key256) Xor(o Key256) Key256 {
	var xored Key256
	xorBytes(xored[:], k[:], o[:])
	return xored
}

// CommonPrefixLength returns the number of leading bits the key shares with another key.
func (k Key256) CommonPrefixLength(o Key256) int {
	return commonPrefixLength(k[:], o[:])
}

// Compare compares the numeric value of the key with another key.
func (k Key256) Compare(o Key256) int {
	return bytes.Compare(k[:], o[:])
}

// HexString returns a string containing the hexadecimal representation of the key.
func (k Key256) HexString() string {
	return hex.EncodeToString(k[:])
}

func (k Key256) String() string {
	return k.HexString()
}

func (k Key256) MarshalBinary() ([]byte, error) {
	buf := make([]byte, len(k))
	copy(buf, k[:])
	return buf, nil
}

func (k *Key256) UnmarshalBinary(data []byte) error {
	if len(data) != len(k) {
		return ErrInvalidKey(len(k))
	}
	copy(k[:], data)
	return nil
}

func bitAt(b []byte, i int) uint {
	if i < 0 || i >= len(b)*8 {
		panic(fmt.Sprintf("bit index %d out of range", i))
	}
	return uint(b[i/8]>>(7-i%8)) & 1
}

func xorBytes(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}

func commonPrefixLength(a, b []byte) int {
	for i := range a {
		if x := a[i] ^ b[i]; x != 0 {
			return i*8 + bits.LeadingZeros8(x)
		}
	}
	return 8 * len(a)
}
