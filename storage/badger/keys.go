package badger

import (
	"encoding/binary"

	"github.com/poiesic/bookgrep/core"
)

// Key prefixes for different data types.
// IDs are written big-endian so that iteration order matches numeric order.
const (
	bookPrefix         = "book:"
	bookChecksumPrefix = "booksum:"
	bookIDSeq          = "bookseq"
)

// makeBookKey generates a key for a book by ID.
// Format: prefix + 8 byte ID
func makeBookKey(id core.ID) []byte {
	return appendID([]byte(bookPrefix), id)
}

// makeBookChecksumKey generates a key for the checksum index.
// Format: prefix + 8 byte checksum
func makeBookChecksumKey(checksum core.ID) []byte {
	return appendID([]byte(bookChecksumPrefix), checksum)
}

// bookIDFromKey extracts the ID from a primary book key.
func bookIDFromKey(key []byte) (core.ID, bool) {
	if len(key) != len(bookPrefix)+8 {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(bookPrefix):])), true
}

func appendID(prefix []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(prefix, uint64(id))
}
