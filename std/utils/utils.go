package utils

import (
	"encoding/binary"
	"time"
	"unsafe"

	"github.com/named-data/yanfd/std/types/optional"
)

// IdPtr returns a pointer to the given value.
func IdPtr[T any](val T) *T {
	return &val
}

// MakeTimestamp converts a time to milliseconds since the Unix epoch.
func MakeTimestamp(t time.Time) uint64 {
	return uint64(t.UnixNano() / int64(time.Millisecond))
}

// ConvertNonce converts a 4-byte big-endian wire nonce to its uint32 value,
// returning an empty optional for any other length.
func ConvertNonce(nonce []byte) optional.Optional[uint32] {
	if len(nonce) != 4 {
		return optional.None[uint32]()
	}
	return optional.Some(binary.BigEndian.Uint32(nonce))
}

// HeaderEqual reports whether two slices share the same underlying array,
// length, and capacity.
func HeaderEqual[T any](a, b []T) bool {
	return len(a) == len(b) && cap(a) == cap(b) &&
		unsafe.SliceData(a) == unsafe.SliceData(b)
}
