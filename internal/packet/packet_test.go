package packet

import (
	"bytes"
	"testing"
)

func mkFrame(id uint16, compression uint8, payload []byte) Frame {
	return Frame{
		Header: Header{PacketID: id, Compression: compression, Length: uint32(len(payload))},
		Payload: payload,
	}
}

func TestParseStreamRoundTrip(t *testing.T) {
	frames := []Frame{
		mkFrame(5, 0, []byte{1, 2, 3, 4}),
		mkFrame(71, 0, []byte{1, 0, 0, 0}),
		mkFrame(24, 0, nil),
	}

	var buf []byte
	for _, f := range frames {
		buf = append(buf, Serialize(f)...)
	}

	got, residual := ParseStream(buf)
	if len(residual) != 0 {
		t.Fatalf("expected empty residual, got %d bytes", len(residual))
	}
	if len(got) != len(frames) {
		t.Fatalf("expected %d frames, got %d", len(frames), len(got))
	}
	for i, f := range got {
		if f.Header != frames[i].Header {
			t.Errorf("frame %d header mismatch: got %+v want %+v", i, f.Header, frames[i].Header)
		}
		if !bytes.Equal(f.Payload, frames[i].Payload) {
			t.Errorf("frame %d payload mismatch", i)
		}
	}
}

func TestParseStreamResidualIsStrictPrefix(t *testing.T) {
	complete := Serialize(mkFrame(11, 0, []byte{9, 9}))
	partialHeader := []byte{75, 0, 0, 5, 0, 0} // 6 bytes, one short of a header
	buf := append(append([]byte{}, complete...), partialHeader...)

	frames, residual := ParseStream(buf)
	if len(frames) != 1 {
		t.Fatalf("expected 1 complete frame, got %d", len(frames))
	}
	if !bytes.Equal(residual, partialHeader) {
		t.Fatalf("residual = %v, want %v", residual, partialHeader)
	}

	// residual closure: re-parsing serialized frames plus residual reproduces
	// the same split (spec §8 P2).
	var reassembled []byte
	for _, f := range frames {
		reassembled = append(reassembled, Serialize(f)...)
	}
	reassembled = append(reassembled, residual...)
	frames2, residual2 := ParseStream(reassembled)
	if len(frames2) != len(frames) || !bytes.Equal(residual2, residual) {
		t.Fatalf("closure property violated")
	}
}

func TestParseStreamDeclaredLengthExceedsBuffer(t *testing.T) {
	// header claims a huge payload that never arrives; nothing should be
	// dropped, the whole thing is residual (spec §4.1 residual preservation).
	header := make([]byte, 7)
	header[0], header[1] = 47, 0
	header[3], header[4], header[5], header[6] = 0xFF, 0xFF, 0xFF, 0x7F

	frames, residual := ParseStream(header)
	if len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	if !bytes.Equal(residual, header) {
		t.Fatalf("expected full header preserved as residual")
	}
}

func TestInjectSupporter(t *testing.T) {
	f := mkFrame(71, 0, []byte{1, 0, 0, 0})
	InjectSupporter(&f)

	want := []byte{5, 0, 0, 0} // bit 2 set on top of bit 0
	if !bytes.Equal(f.Payload, want) {
		t.Fatalf("payload = %v, want %v", f.Payload, want)
	}

	// idempotent
	before := append([]byte{}, f.Payload...)
	InjectSupporter(&f)
	if !bytes.Equal(f.Payload, before) {
		t.Fatalf("injection not idempotent: %v != %v", f.Payload, before)
	}
}

func TestInjectSupporterIgnoresOtherPackets(t *testing.T) {
	f := mkFrame(5, 0, []byte{1, 0, 0, 0})
	orig := append([]byte{}, f.Payload...)
	InjectSupporter(&f)
	if !bytes.Equal(f.Payload, orig) {
		t.Fatalf("non-privileges frame mutated: %v != %v", f.Payload, orig)
	}
}

func TestInjectSupporterShortPayloadNoop(t *testing.T) {
	f := mkFrame(71, 0, []byte{1, 2})
	InjectSupporter(&f)
	if !bytes.Equal(f.Payload, []byte{1, 2}) {
		t.Fatalf("short payload should be left untouched, got %v", f.Payload)
	}
}

func TestFragmentedStreamScenario(t *testing.T) {
	// spec §8 scenario 5: a single frame split mid-payload (after byte 8)
	// across two reads should reassemble identically.
	full := Serialize(mkFrame(71, 0, []byte{1, 0, 0, 0}))
	part1, part2 := full[:8], full[8:]

	frames, residual := ParseStream(part1)
	if len(frames) != 0 || !bytes.Equal(residual, part1) {
		t.Fatalf("expected whole first chunk to remain residual")
	}

	combined := append(append([]byte{}, residual...), part2...)
	frames, residual = ParseStream(combined)
	if len(residual) != 0 {
		t.Fatalf("expected no residual after full frame assembled")
	}
	if len(frames) != 1 || frames[0].Header.PacketID != 71 {
		t.Fatalf("unexpected frames: %+v", frames)
	}

	InjectSupporter(&frames[0])
	got := Serialize(frames[0])
	want := Serialize(mkFrame(71, 0, []byte{5, 0, 0, 0}))
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPacketIDString(t *testing.T) {
	cases := map[uint16]string{
		5: "LoginReply", 11: "UserStats", 24: "Notification",
		64: "ChannelInfo", 71: "UserPrivileges", 75: "ProtocolVersion",
		83: "UserPresence", 999: "Unknown",
	}
	for id, want := range cases {
		if got := PacketID(id).String(); got != want {
			t.Errorf("PacketID(%d).String() = %q, want %q", id, got, want)
		}
	}
}
