// Package id generates K-sortable prefixed identifiers: a prefix, an
// underscore, and a 24-character tail whose leading bytes encode millisecond
// time so that lexicographic order tracks creation order for a single
// writer (spec §4.1).
package id

import (
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// encoding is a lowercase, unpadded base32 alphabet; it sorts the same as
// the byte values it encodes, which is what keeps the tail K-sortable.
var encoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// Prefix identifies the entity an ID was minted for.
type Prefix string

const (
	Collection      Prefix = "col"
	Document        Prefix = "doc"
	Schema          Prefix = "sch"
	SchemaElement   Prefix = "sel"
	IndexTableValue Prefix = "val"
	Label           Prefix = "lbl"
	Tag             Prefix = "tag"
	IndexTableEntry Prefix = "itm"
	FieldConstraint Prefix = "fco"
	IndexedField    Prefix = "ixf"
	Lock            Prefix = "lock"
)

// New mints a new identifier with the given prefix using the current time.
func New(p Prefix) string {
	return NewAt(p, time.Now())
}

// NewAt mints a new identifier with the given prefix and timestamp, for
// deterministic tests.
func NewAt(p Prefix, t time.Time) string {
	var buf [15]byte

	// First 6 bytes: milliseconds since epoch, big-endian, so the encoded
	// tail sorts chronologically.
	ms := uint64(t.UnixMilli())
	for i := 5; i >= 0; i-- {
		buf[i] = byte(ms)
		ms >>= 8
	}

	// Remaining 9 bytes: random entropy, sourced from the same generator
	// google/uuid uses internally so a single CSPRNG backs both ID styles
	// in this codebase.
	entropy := uuid.New()
	copy(buf[6:], entropy[:9])

	// 15 bytes * 8 bits / 5 bits-per-symbol = 24 symbols exactly, no padding.
	tail := encoding.EncodeToString(buf[:])

	return fmt.Sprintf("%s_%s", p, tail)
}
