// Package gameid mints time-sortable identifiers for games and hands.
//
// An ID is a UUIDv7 encoded as 26 characters of Crockford base32, so
// lexicographic order matches creation order and the strings are safe
// in URLs and filenames.
package gameid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Crockford base32. No i, l, o or u, so an ID survives being read
// aloud or retyped.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// New returns a fresh 26-character ID.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("gameid: " + err.Error())
	}
	return encode(id)
}

// encode packs the 128 bits into 26 characters, five bits apiece, with
// the two spare bits leading.
func encode(b [16]byte) string {
	var out [26]byte
	for i := range out {
		bit := i * 5
		idx := bit / 8
		off := bit % 8

		var v byte
		if off <= 3 {
			v = (b[idx] >> (3 - off)) & 0x1f
		} else {
			v = (b[idx] << (off - 3)) & 0x1f
			if idx+1 < len(b) {
				v |= b[idx+1] >> (11 - off)
			}
		}
		out[i] = alphabet[v]
	}
	return string(out[:])
}

// Validate reports whether id looks like something New produced.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("id must be 26 characters, got %d", len(id))
	}
	// The first character carries the two spare bits, so it tops out
	// at '7'.
	if id[0] > '7' {
		return fmt.Errorf("id first character out of range: %c", id[0])
	}
	for i, c := range id {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("id has invalid character %c at position %d", c, i)
		}
	}
	return nil
}
