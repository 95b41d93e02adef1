package kv

import (
	"encoding/binary"
	"fmt"
)

const versionHeaderLen = 8

// encodeVersioned prefixes value with an 8-byte big-endian version.
// Used by backends without a native place to keep the version.
func encodeVersioned(version int64, value []byte) []byte {
	out := make([]byte, versionHeaderLen+len(value))
	binary.BigEndian.PutUint64(out, uint64(version))
	copy(out[versionHeaderLen:], value)
	return out
}

func decodeVersioned(raw []byte) (int64, []byte, error) {
	if len(raw) < versionHeaderLen {
		return 0, nil, fmt.Errorf("kv: corrupt value: %d bytes", len(raw))
	}
	version := int64(binary.BigEndian.Uint64(raw[:versionHeaderLen]))
	value := make([]byte, len(raw)-versionHeaderLen)
	copy(value, raw[versionHeaderLen:])
	return version, value, nil
}
