// Package packet implements the framing, stream reassembly, and
// single-field mutation for osu!'s Bancho binary chat/presence protocol
// (spec §3, §4.1). A connection's byte stream is a concatenation of frames;
// ParseStream walks it incrementally and leaves whatever isn't yet a
// complete frame in the residual for the caller to prepend to the next read.
package packet

import "encoding/binary"

const (
	headerSize = 7

	// PacketIDUserPrivileges identifies the frame whose payload carries the
	// client's privilege bitfield (spec §3).
	PacketIDUserPrivileges uint16 = 71

	// supporterBit is bit 2 (value 4) of the privileges bitfield.
	supporterBit uint32 = 1 << 2
)

// PacketID is a recognized Bancho packet type, named purely for logging;
// every ID is framed and forwarded identically regardless of whether it's
// recognized (spec §6).
type PacketID uint16

const (
	IDLoginReply       PacketID = 5
	IDUserStats        PacketID = 11
	IDNotification     PacketID = 24
	IDChannelInfo      PacketID = 64
	IDUserPrivileges   PacketID = 71
	IDProtocolVersion  PacketID = 75
	IDUserPresence     PacketID = 83
)

// String returns the packet's known name, or "Unknown" for any unlisted ID.
func (id PacketID) String() string {
	switch id {
	case IDLoginReply:
		return "LoginReply"
	case IDUserStats:
		return "UserStats"
	case IDNotification:
		return "Notification"
	case IDChannelInfo:
		return "ChannelInfo"
	case IDUserPrivileges:
		return "UserPrivileges"
	case IDProtocolVersion:
		return "ProtocolVersion"
	case IDUserPresence:
		return "UserPresence"
	default:
		return "Unknown"
	}
}

// Header is the fixed 7-byte frame prefix (spec §3, §6).
type Header struct {
	PacketID    uint16
	Compression uint8 // opaque; always copied through, never interpreted
	Length      uint32
}

// Frame is one parsed Bancho packet: a header plus its owned payload bytes.
type Frame struct {
	Header  Header
	Payload []byte
}

// ParseStream walks buf from the start, returning every frame it can fully
// decode in order and the unconsumed tail. The tail is always a strict
// prefix of an unfinished frame (spec §8 P2): a header newer bytes haven't
// completed, or fewer than 7 bytes of header at all. length is trusted
// as-is; callers that read from an untrusted peer must cap how much they
// accumulate in residual across calls (spec §4.6 is the only caller that
// does, at 1 MiB).
func ParseStream(buf []byte) (frames []Frame, residual []byte) {
	offset := 0
	for {
		remaining := len(buf) - offset
		if remaining < headerSize {
			break
		}

		h := Header{
			PacketID:    binary.LittleEndian.Uint16(buf[offset : offset+2]),
			Compression: buf[offset+2],
			Length:      binary.LittleEndian.Uint32(buf[offset+3 : offset+7]),
		}

		frameLen := headerSize + int(h.Length)
		if remaining < frameLen {
			break
		}

		payload := make([]byte, h.Length)
		copy(payload, buf[offset+headerSize:offset+frameLen])
		frames = append(frames, Frame{Header: h, Payload: payload})
		offset += frameLen
	}

	if offset < len(buf) {
		residual = append(residual, buf[offset:]...)
	}
	return frames, residual
}

// InjectSupporter sets the supporter bit (bit 2) of a UserPrivileges
// frame's payload in place. It is a no-op for any other packet ID or for a
// payload shorter than 4 bytes, and idempotent on a frame that already has
// the bit set (spec §4.1, §8 P3).
func InjectSupporter(f *Frame) {
	if f.Header.PacketID != PacketIDUserPrivileges || len(f.Payload) < 4 {
		return
	}
	bits := binary.LittleEndian.Uint32(f.Payload[:4])
	bits |= supporterBit
	binary.LittleEndian.PutUint32(f.Payload[:4], bits)
}

// Serialize writes a frame back to wire form: 7-byte header followed by
// payload. Header.Length must equal len(Payload); frames are only ever
// produced by ParseStream or deliberately constructed in tests, so this is
// trusted rather than validated (spec §4.1).
func Serialize(f Frame) []byte {
	out := make([]byte, headerSize+len(f.Payload))
	binary.LittleEndian.PutUint16(out[0:2], f.Header.PacketID)
	out[2] = f.Header.Compression
	binary.LittleEndian.PutUint32(out[3:7], uint32(len(f.Payload)))
	copy(out[headerSize:], f.Payload)
	return out
}
