package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
)

// GUID is appended to the client's key before hashing it into Sec-WebSocket-Accept.
const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Version is the only protocol version supported.
const Version = "13"

type Opcode uint8

const (
	Continuation Opcode = 0x0
	Text         Opcode = 0x1
	Binary       Opcode = 0x2
	Close        Opcode = 0x8
	Ping         Opcode = 0x9
	Pong         Opcode = 0xA
)

func (o Opcode) control() bool {
	return o&0x8 != 0
}

func (o Opcode) valid() bool {
	switch o {
	case Continuation, Text, Binary, Close, Ping, Pong:
		return true
	default:
		return false
	}
}

// Close codes.
const (
	CloseNormal        uint16 = 1000
	CloseGoingAway     uint16 = 1001
	CloseProtocolError uint16 = 1002
	CloseUnsupported   uint16 = 1003
	CloseNoStatus      uint16 = 1005
	CloseAbnormal      uint16 = 1006
	CloseTooBig        uint16 = 1009
)

const (
	finBit  = 0x80
	maskBit = 0x80
	// maxHeaderSize is 2 bytes of the base header, 8 of the extended length and 4 of the mask.
	maxHeaderSize = 2 + 8 + 4
	// maxControlPayload is the limit of the control frames payload.
	maxControlPayload = 125
)

var (
	ErrIncomplete   = errors.New("incomplete frame header")
	ErrBadFrame     = errors.New("malformed frame")
	ErrUnknownFrame = errors.New("unknown opcode")
)

// Header is a decoded frame header.
type Header struct {
	Fin    bool
	Opcode Opcode
	Masked bool
	Mask   [4]byte
	Length uint64
}

// ParseHeader decodes the frame header. ErrIncomplete means more data is needed.
func ParseHeader(data []byte) (h Header, n int, err error) {
	if len(data) < 2 {
		return h, 0, ErrIncomplete
	}

	if data[0]&0x70 != 0 {
		// no extensions are negotiated, so RSV bits must be unset
		return h, 0, ErrBadFrame
	}

	h.Fin = data[0]&finBit != 0
	h.Opcode = Opcode(data[0] & 0x0F)
	h.Masked = data[1]&maskBit != 0
	h.Length = uint64(data[1] & 0x7F)
	n = 2

	if !h.Opcode.valid() {
		return h, 0, ErrUnknownFrame
	}

	switch h.Length {
	case 126:
		if len(data) < n+2 {
			return h, 0, ErrIncomplete
		}

		h.Length = uint64(binary.BigEndian.Uint16(data[n:]))
		n += 2
	case 127:
		if len(data) < n+8 {
			return h, 0, ErrIncomplete
		}

		hi, lo := binary.BigEndian.Uint32(data[n:]), binary.BigEndian.Uint32(data[n+4:])
		if hi&0x80000000 != 0 {
			return h, 0, ErrBadFrame
		}

		h.Length = uint64(hi)<<32 | uint64(lo)
		n += 8
	}

	if h.Opcode.control() && (!h.Fin || h.Length > maxControlPayload) {
		return h, 0, ErrBadFrame
	}

	if h.Masked {
		if len(data) < n+4 {
			return h, 0, ErrIncomplete
		}

		copy(h.Mask[:], data[n:n+4])
		n += 4
	}

	return h, n, nil
}

// AppendHeader encodes a final frame header. The mask is included when non-nil.
func AppendHeader(dst []byte, opcode Opcode, length uint64, mask *[4]byte) []byte {
	var masked byte
	if mask != nil {
		masked = maskBit
	}

	dst = append(dst, finBit|byte(opcode))

	switch {
	case length <= 125:
		dst = append(dst, masked|byte(length))
	case length <= 0xFFFF:
		dst = append(dst, masked|126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(length))
	default:
		dst = append(dst, masked|127)
		dst = binary.BigEndian.AppendUint32(dst, uint32(length>>32))
		dst = binary.BigEndian.AppendUint32(dst, uint32(length))
	}

	if mask != nil {
		dst = append(dst, mask[:]...)
	}

	return dst
}

// Mask XORs the payload with the key in place. Applying it twice restores the payload.
func Mask(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}

// AcceptKey computes the Sec-WebSocket-Accept value for the client's key.
func AcceptKey(key string) string {
	hash := sha1.Sum([]byte(key + GUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// Negotiate validates the upgrade request and returns the accept key and the subprotocol to
// echo (the first one requested, if any).
func Negotiate(headers *kv.Storage) (accept, protocol string, err error) {
	if !strings.EqualFold(strings.TrimSpace(headers.Value("upgrade")), "websocket") {
		return "", "", status.ErrBadRequest
	}

	if headers.Value("sec-websocket-version") != Version {
		return "", "", ErrUnsupportedVersion
	}

	key := strings.TrimSpace(headers.Value("sec-websocket-key"))
	if decoded, err := base64.StdEncoding.DecodeString(key); err != nil || len(decoded) != 16 {
		return "", "", status.ErrBadRequest
	}

	for value := range headers.Values("sec-websocket-protocol") {
		first, _, _ := strings.Cut(value, ",")
		if protocol = strings.TrimSpace(first); len(protocol) > 0 {
			break
		}
	}

	return AcceptKey(key), protocol, nil
}

// ErrUnsupportedVersion is answered with 426 and Sec-WebSocket-Version listing the supported
// version.
var ErrUnsupportedVersion = status.NewError(status.UpgradeRequired, "unsupported websocket version")

func appendClosePayload(dst []byte, code uint16, reason string) []byte {
	if code == CloseNoStatus || code == CloseAbnormal {
		// these must never appear on the wire
		return dst
	}

	dst = binary.BigEndian.AppendUint16(dst, code)
	if len(reason) > maxControlPayload-2 {
		reason = reason[:maxControlPayload-2]
	}

	return append(dst, reason...)
}

func parseClosePayload(payload []byte) (code uint16, reason string) {
	if len(payload) < 2 {
		return CloseNoStatus, ""
	}

	return binary.BigEndian.Uint16(payload), string(payload[2:])
}
