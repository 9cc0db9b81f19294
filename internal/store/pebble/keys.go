package pebblestore

import "strings"

// Key schema:
//   gate/{name}/state  controller queue state (versioned, checksummed)
//   gate/{name}/meta   host-side gate settings (JSON)

const gatePrefix = "gate/"

func stateKey(gate string) []byte {
	return []byte(gatePrefix + gate + "/state")
}

func metaKey(gate string) []byte {
	return []byte(gatePrefix + gate + "/meta")
}

// gateFromKey extracts the gate name from a schema key, returning ok=false
// for keys outside the schema.
func gateFromKey(key []byte) (string, bool) {
	s := string(key)
	if !strings.HasPrefix(s, gatePrefix) {
		return "", false
	}
	rest := s[len(gatePrefix):]
	idx := strings.LastIndexByte(rest, '/')
	if idx <= 0 {
		return "", false
	}
	return rest[:idx], true
}

// keyRange returns the inclusive-lower, exclusive-upper bounds for a prefix scan.
func keyRange(prefix string) ([]byte, []byte) {
	lo := []byte(prefix)
	hi := make([]byte, len(prefix)+1)
	copy(hi, prefix)
	hi[len(prefix)] = 0xFF
	return lo, hi
}
