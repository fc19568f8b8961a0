package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// DeriveAddress hashes a namespace tag and seed parts into a 64-char hex
// address. Every part is length-prefixed so distinct inputs never share an
// encoding; nobody holds a private key for the result, which makes it usable
// as a program-controlled authority.
func DeriveAddress(tag string, parts ...[]byte) string {
	h := sha256.New()
	var lenBuf [4]byte
	for _, p := range append([][]byte{[]byte(tag)}, parts...) {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
