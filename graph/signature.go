// signature.go — member-set fingerprinting for module dedup.
//
// A spawned module is identified by WHICH nodes it groups, not when.
// Members arrive in ascending index order (they come from array scans),
// so hashing the packed index list directly is order-stable.

package graph

import "golang.org/x/crypto/sha3"

// Signature folds an ascending member-index list into a 64-bit dedup key.
// Never returns 0 so the value stays distinguishable from an unset record.
func Signature(members []uint32) uint64 {
	buf := make([]byte, len(members)*4)
	for i, m := range members {
		buf[i*4+0] = byte(m)
		buf[i*4+1] = byte(m >> 8)
		buf[i*4+2] = byte(m >> 16)
		buf[i*4+3] = byte(m >> 24)
	}
	sum := sha3.Sum256(buf)
	sig := uint64(sum[0]) | uint64(sum[1])<<8 | uint64(sum[2])<<16 | uint64(sum[3])<<24 |
		uint64(sum[4])<<32 | uint64(sum[5])<<40 | uint64(sum[6])<<48 | uint64(sum[7])<<56
	if sig == 0 {
		sig = 1
	}
	return sig
}
