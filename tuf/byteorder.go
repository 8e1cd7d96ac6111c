package tuf

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ParseByteOrder parses the byte order setting from config and command line.
//
// Accepted values are "little" (or "le"), "big" (or "be"), and "native". An empty string means binary.LittleEndian.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	case "native":
		return binary.NativeEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", s)
	}
}
