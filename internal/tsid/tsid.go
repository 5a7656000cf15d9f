// Package tsid generates time-sorted identifiers for aggregates and
// event envelopes: 42 bits of milliseconds since a fixed epoch plus 22
// random bits, encoded as 13 characters of Crockford Base32. IDs sort
// lexicographically in creation order, which keeps chat history and
// outbox scans index-friendly.
package tsid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

const (
	// Epoch: 2020-01-01T00:00:00Z
	epochMillis = 1577836800000

	randomBits = 22
	encodedLen = 13

	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// ErrInvalid is returned for strings that are not valid TSIDs.
var ErrInvalid = errors.New("tsid: invalid identifier")

var (
	mu         sync.Mutex
	lastTime   int64
	lastRandom uint32
)

// Generate returns a new identifier.
func Generate() string {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UnixMilli() - epochMillis

	// Within one millisecond the random component is incremented
	// instead of redrawn, so IDs generated back to back stay unique
	// and ordered. On overflow the timestamp is borrowed forward.
	if now <= lastTime {
		now = lastTime
		lastRandom++
		if lastRandom >= 1<<randomBits {
			now++
			lastRandom = freshRandom()
		}
	} else {
		lastRandom = freshRandom()
	}
	lastTime = now

	return encode(uint64(now)<<randomBits | uint64(lastRandom))
}

func freshRandom() uint32 {
	var buf [4]byte
	rand.Read(buf[:])
	// Keep headroom below the 22-bit ceiling for same-millisecond
	// increments.
	return binary.BigEndian.Uint32(buf[:]) & ((1 << (randomBits - 1)) - 1)
}

// Timestamp extracts the creation time embedded in an identifier.
func Timestamp(id string) (time.Time, error) {
	v, err := decode(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(v>>randomBits) + epochMillis), nil
}

// IsValid reports whether s parses as a TSID.
func IsValid(s string) bool {
	_, err := decode(s)
	return err == nil
}

func encode(v uint64) string {
	out := make([]byte, encodedLen)
	for i := encodedLen - 1; i >= 0; i-- {
		out[i] = alphabet[v&0x1F]
		v >>= 5
	}
	return string(out)
}

func decode(s string) (uint64, error) {
	if len(s) != encodedLen {
		return 0, ErrInvalid
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		idx := charValue(s[i])
		if idx < 0 {
			return 0, ErrInvalid
		}
		v = v<<5 | uint64(idx)
	}
	return v, nil
}

// charValue maps a Crockford Base32 character to its value, accepting
// the usual aliases (O for 0, I and L for 1) in either case.
func charValue(c byte) int {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c == 'O':
		return 0
	case c == 'I' || c == 'L':
		return 1
	case c >= 'A' && c <= 'H':
		return int(c - 'A' + 10)
	case c == 'J' || c == 'K':
		return int(c - 'J' + 18)
	case c == 'M' || c == 'N':
		return int(c - 'M' + 20)
	case c >= 'P' && c <= 'T':
		return int(c - 'P' + 22)
	case c == 'U':
		return 27
	case c >= 'V' && c <= 'Z':
		return int(c - 'V' + 27)
	default:
		return -1
	}
}
