// Package kadtest holds helpers shared by the tests of this module.
package kadtest

import (
	"encoding/binary"
	"math/rand"
	"strconv"

	"github.com/plprobelab/go-kadtable/key"
)

// Rand returns a deterministic source of randomness so test failures can be reproduced.
func Rand() *rand.Rand {
	return rand.New(rand.NewSource(299792458))
}

// RandomKey32 returns a random 32 bit key.
func RandomKey32(rng *rand.Rand) key.Key32 {
	return key.Key32(rng.Uint32())
}

// RandomKey160 returns a random 160 bit key.
func RandomKey160(rng *rand.Rand) key.Key160 {
	var buf [20]byte
	rng.Read(buf[:])
	return key.Key160(buf)
}

// RandomKey32WithPrefix returns a random 32 bit key whose leading bits are
// equal to the bit pattern held in s, e.g. "0110".
func RandomKey32WithPrefix(rng *rand.Rand, s string) key.Key32 {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], rng.Uint32())
	applyPrefix(buf[:], s)
	return key.Key32(binary.BigEndian.Uint32(buf[:]))
}

// RandomKey160WithPrefix returns a random 160 bit key whose leading bits are
// equal to the bit pattern held in s. A prefix of up to 64 bits is supported.
func RandomKey160WithPrefix(rng *rand.Rand, s string) key.Key160 {
	kk := RandomKey160(rng)
	applyPrefix(kk[:], s)
	return kk
}

func applyPrefix(buf []byte, s string) {
	if s == "" {
		return
	}
	prefixbits := len(s)
	if prefixbits > 64 {
		panic("applyPrefix: prefix too long")
	} else if prefixbits > len(buf)*8 {
		panic("applyPrefix: prefix longer than key length")
	}
	n, err := strconv.ParseUint(s, 2, 64)
	if err != nil {
		panic("applyPrefix: " + err.Error())
	}

	lead := make([]byte, 8)
	copy(lead, buf)
	v := binary.BigEndian.Uint64(lead)
	v <<= prefixbits
	v >>= prefixbits
	v |= n << (64 - prefixbits)
	binary.BigEndian.PutUint64(lead, v)
	copy(buf, lead)
}
