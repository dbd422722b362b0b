// Package wire implements the bespoke binary frame format exchanged over
// the avatar relay WebSocket. Every frame is a single WebSocket binary
// message; the first byte is an opcode, the remainder is opcode-specific
// payload. There is no separate length prefix: the WebSocket message
// boundary is the frame boundary.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// C2SOpcode identifies a client-to-server frame.
type C2SOpcode byte

const (
	OpToken C2SOpcode = 0x00
	OpPing  C2SOpcode = 0x01
	OpSub   C2SOpcode = 0x02
	OpUnsub C2SOpcode = 0x03
)

// S2COpcode identifies a server-to-client frame.
type S2COpcode byte

const (
	OpAuth   S2COpcode = 0x00
	OpSPing  S2COpcode = 0x01
	OpEvent  S2COpcode = 0x02
	OpToast  S2COpcode = 0x03
	OpChat   S2COpcode = 0x04
	OpNotice S2COpcode = 0x05
)

// BadLengthError reports a frame whose length did not match what its
// opcode requires.
type BadLengthError struct {
	Opcode   byte
	Expected int
	Exact    bool
	Got      int
}

func (e *BadLengthError) Error() string {
	if e.Exact {
		return fmt.Sprintf("wire: opcode 0x%02x: expected exactly %d bytes, got %d", e.Opcode, e.Expected, e.Got)
	}
	return fmt.Sprintf("wire: opcode 0x%02x: expected at least %d bytes, got %d", e.Opcode, e.Expected, e.Got)
}

// BadEnumError reports a byte that does not fall within an expected
// enumerated range (e.g. an unrecognized opcode).
type BadEnumError struct {
	Field string
	Low   int
	High  int
	Got   int
}

func (e *BadEnumError) Error() string {
	return fmt.Sprintf("wire: field %s: expected value in [%d,%d], got %d", e.Field, e.Low, e.High, e.Got)
}

// C2SMessage is a decoded client-to-server frame.
type C2SMessage struct {
	Opcode C2SOpcode
	Token  string    // OpToken
	PingID uint32    // OpPing
	Sync   bool      // OpPing
	Data   []byte    // OpPing
	Target uuid.UUID // OpSub, OpUnsub
}

// DecodeC2S parses a single client-to-server frame. The returned error is
// either *BadLengthError or *BadEnumError; callers should log and discard
// the frame rather than terminate the connection (see session loop
// design).
func DecodeC2S(buf []byte) (*C2SMessage, error) {
	if len(buf) < 1 {
		return nil, &BadLengthError{Opcode: 0xff, Expected: 1, Got: len(buf)}
	}
	op := buf[0]
	rest := buf[1:]
	switch C2SOpcode(op) {
	case OpToken:
		if len(rest) < 1 {
			return nil, &BadLengthError{Opcode: op, Expected: 1, Got: len(rest)}
		}
		return &C2SMessage{Opcode: OpToken, Token: string(rest)}, nil
	case OpPing:
		if len(rest) < 6 {
			return nil, &BadLengthError{Opcode: op, Expected: 6, Got: len(rest)}
		}
		id := binary.BigEndian.Uint32(rest[0:4])
		sync := rest[4] != 0
		data := append([]byte(nil), rest[5:]...)
		return &C2SMessage{Opcode: OpPing, PingID: id, Sync: sync, Data: data}, nil
	case OpSub:
		if len(rest) != 16 {
			return nil, &BadLengthError{Opcode: op, Expected: 16, Exact: true, Got: len(rest)}
		}
		id, err := uuid.FromBytes(rest)
		if err != nil {
			return nil, &BadLengthError{Opcode: op, Expected: 16, Exact: true, Got: len(rest)}
		}
		return &C2SMessage{Opcode: OpSub, Target: id}, nil
	case OpUnsub:
		if len(rest) != 16 {
			return nil, &BadLengthError{Opcode: op, Expected: 16, Exact: true, Got: len(rest)}
		}
		id, err := uuid.FromBytes(rest)
		if err != nil {
			return nil, &BadLengthError{Opcode: op, Expected: 16, Exact: true, Got: len(rest)}
		}
		return &C2SMessage{Opcode: OpUnsub, Target: id}, nil
	default:
		return nil, &BadEnumError{Field: "opcode", Low: 0, High: 3, Got: int(op)}
	}
}

// EncodeToken encodes a C2S Token frame (used only by tests/fixtures; the
// real client is not part of this codebase).
func EncodeToken(token string) []byte {
	return append([]byte{byte(OpToken)}, []byte(token)...)
}

// EncodePing encodes a C2S Ping frame.
func EncodePing(id uint32, sync bool, data []byte) []byte {
	buf := make([]byte, 0, 6+len(data))
	buf = append(buf, byte(OpPing))
	var idb [4]byte
	binary.BigEndian.PutUint32(idb[:], id)
	buf = append(buf, idb[:]...)
	if sync {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, data...)
	return buf
}

// EncodeSub encodes a C2S Sub frame.
func EncodeSub(target uuid.UUID) []byte {
	b := target[:]
	return append([]byte{byte(OpSub)}, b...)
}

// EncodeUnsub encodes a C2S Unsub frame.
func EncodeUnsub(target uuid.UUID) []byte {
	b := target[:]
	return append([]byte{byte(OpUnsub)}, b...)
}

// EncodeAuth encodes the S2C Auth frame (1 byte total).
func EncodeAuth() []byte {
	return []byte{byte(OpAuth)}
}

// EncodeEvent encodes the S2C Event frame (17 bytes total).
func EncodeEvent(id uuid.UUID) []byte {
	buf := make([]byte, 0, 17)
	buf = append(buf, byte(OpEvent))
	buf = append(buf, id[:]...)
	return buf
}

// EncodeToast encodes the S2C Toast frame. If body is non-empty a NUL
// separates header and body; otherwise only the header is emitted.
func EncodeToast(severity byte, header string, body string) []byte {
	buf := make([]byte, 0, 2+len(header)+len(body))
	buf = append(buf, byte(OpToast), severity)
	buf = append(buf, []byte(header)...)
	if body != "" {
		buf = append(buf, 0)
		buf = append(buf, []byte(body)...)
	}
	return buf
}

// EncodeChat encodes the S2C Chat frame.
func EncodeChat(text string) []byte {
	buf := make([]byte, 0, 1+len(text))
	buf = append(buf, byte(OpChat))
	buf = append(buf, []byte(text)...)
	return buf
}

// EncodeNotice encodes the S2C Notice frame (2 bytes total).
func EncodeNotice(code byte) []byte {
	return []byte{byte(OpNotice), code}
}

// TransformPing applies the pub->fan-out transform: given a raw C2S Ping
// frame as received on the wire (opcode 0x01 followed by id/sync/data) and
// the publisher's identifier, produce the S2C Ping frame delivered to
// subscribers. This is the only mutation performed anywhere in the
// fan-out path.
//
// raw must be a validly-shaped C2S Ping frame: [0x01, id(4), sync(1), data...].
func TransformPing(raw []byte, publisher uuid.UUID) ([]byte, error) {
	if len(raw) < 6 || C2SOpcode(raw[0]) != OpPing {
		return nil, &BadLengthError{Opcode: raw[0], Expected: 6, Got: len(raw)}
	}
	out := make([]byte, 0, 1+16+len(raw)-1)
	out = append(out, byte(OpSPing))
	out = append(out, publisher[:]...)
	out = append(out, raw[1:]...)
	return out, nil
}

// DecodeS2CPing parses an S2C Ping frame, primarily for tests that assert
// on fan-out output.
func DecodeS2CPing(buf []byte) (publisher uuid.UUID, id uint32, sync bool, data []byte, err error) {
	if len(buf) < 22 || S2COpcode(buf[0]) != OpSPing {
		return uuid.UUID{}, 0, false, nil, &BadLengthError{Opcode: buf[0], Expected: 22, Got: len(buf)}
	}
	publisher, err = uuid.FromBytes(buf[1:17])
	if err != nil {
		return uuid.UUID{}, 0, false, nil, err
	}
	id = binary.BigEndian.Uint32(buf[17:21])
	sync = buf[21] != 0
	data = append([]byte(nil), buf[22:]...)
	return publisher, id, sync, data, nil
}
