package gate

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
)

// State record: version(1B) | bodyLen(4B BE) | body JSON | crc32c(body)

const stateVersion = 1

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorruptState reports a state record that failed structural or
// checksum validation.
var ErrCorruptState = errors.New("gate: corrupt state record")

// EncodeState serializes st into a checksummed record.
func EncodeState(st *State) ([]byte, error) {
	body, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+4+len(body)+4)
	out = append(out, stateVersion)
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(body)))
	out = append(out, lb[:]...)
	out = append(out, body...)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc32.Checksum(body, castagnoli))
	out = append(out, cb[:]...)
	return out, nil
}

// DecodeState parses a record produced by EncodeState.
func DecodeState(b []byte) (*State, error) {
	if len(b) < 1+4+4 {
		return nil, ErrCorruptState
	}
	if b[0] != stateVersion {
		return nil, ErrCorruptState
	}
	bodyLen := int(binary.BigEndian.Uint32(b[1:5]))
	if 1+4+bodyLen+4 != len(b) {
		return nil, ErrCorruptState
	}
	body := b[5 : 5+bodyLen]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return nil, ErrCorruptState
	}
	st := NewState()
	if err := json.Unmarshal(body, st); err != nil {
		return nil, ErrCorruptState
	}
	st.init()
	return st, nil
}
