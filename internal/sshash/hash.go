// Package sshash computes the 8-bit bucket hash used to place a record
// within a ring node's owned range. The underlying algorithm is an external
// dependency in the system this node implements (there is no canonical
// definition to match) — this package exists so that dependency has exactly
// one home, swappable without touching the ring table or the state machine.
package sshash

import "hash/fnv"

// HashSSN maps an opaque 12-byte SSN to a value in [0, 255]. It folds the
// 32-bit FNV-1a digest down to 8 bits by XORing its four bytes, rather than
// truncating, so the low byte alone doesn't dominate the bucket choice.
func HashSSN(ssn [12]byte) uint8 {
	h := fnv.New32a()
	h.Write(ssn[:])
	sum := h.Sum32()
	return uint8(sum>>24) ^ uint8(sum>>16) ^ uint8(sum>>8) ^ uint8(sum)
}
