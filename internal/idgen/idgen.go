// Package idgen generates the two flavors of identifier RustMailer hands
// out: a 53-bit positive integer for public-facing resource ids (JSON-safe
// in any runtime whose numbers are IEEE-754 doubles) and a 96-bit random
// task id.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// PublicID returns a positive, JSON-safe 53-bit id.
func PublicID() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	v := binary.BigEndian.Uint64(buf[:])
	return v & ((1 << 53) - 1)
}

// TaskID is a 96-bit random task identifier rendered as a decimal string for
// external use while remaining compact in storage.
type TaskID [12]byte

func (t TaskID) String() string {
	hi := binary.BigEndian.Uint64(t[0:8])
	lo := binary.BigEndian.Uint32(t[8:12])
	return fmt.Sprintf("%d%010d", hi, lo)
}

// NewTaskID produces a fresh random TaskID.
func NewTaskID() TaskID {
	var t TaskID
	_, _ = rand.Read(t[:])
	return t
}

// NewMessageID mints an RFC 5322 Message-ID of the form local@domain (no
// angle brackets) for an outgoing message on domain.
func NewMessageID(domain string) string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("%x.%x@%s", buf[:8], buf[8:], domain)
}

// NewAccessToken mints a 256-bit opaque bearer credential, hex-encoded.
func NewAccessToken() string {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
