package relay

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rai-osu/connect/internal/config"
	"github.com/rai-osu/connect/pkg/rcerr"
)

// pipeDialer connects straight to a fixed net.Conn instead of the real
// network, so HandleConn can be exercised against a fake Bancho server.
func pipeDialer(conn net.Conn) Dialer {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return conn, nil
	}
}

func frame(packetID uint16, payload []byte) []byte {
	header := make([]byte, headerSizeForTest)
	binary.LittleEndian.PutUint16(header[0:2], packetID)
	header[2] = 0
	binary.LittleEndian.PutUint32(header[3:7], uint32(len(payload)))
	return append(header, payload...)
}

const headerSizeForTest = 7

// TestHandleConnRelaysBothDirectionsAndInjects exercises scenario 5/4 from
// spec §8: a fragmented server→client Bancho stream is reassembled and the
// UserPrivileges frame is rewritten before reaching the client.
func TestHandleConnRelaysBothDirectionsAndInjects(t *testing.T) {
	clientLocal, clientRemote := net.Pipe()
	serverLocal, serverRemote := net.Pipe()

	cfg := config.ProxyConfig{InjectSupporter: true}
	r := New(cfg, pipeDialer(serverRemote))

	done := make(chan struct{})
	go func() {
		r.HandleConn(context.Background(), clientRemote)
		close(done)
	}()

	// client -> server: plain byte relay.
	go func() {
		clientLocal.Write([]byte("hello"))
	}()
	buf := make([]byte, 5)
	serverLocal.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := serverLocal.Read(buf); err != nil {
		t.Fatalf("server did not receive client bytes: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}

	// server -> client: fragmented UserPrivileges frame, split mid-payload.
	pkt := frame(71, []byte{0x01, 0x00, 0x00, 0x00})
	go func() {
		serverLocal.Write(pkt[:8])
		time.Sleep(10 * time.Millisecond)
		serverLocal.Write(pkt[8:])
	}()

	out := make([]byte, len(pkt))
	clientLocal.SetReadDeadline(time.Now().Add(2 * time.Second))
	readTotal := 0
	for readTotal < len(out) {
		n, err := clientLocal.Read(out[readTotal:])
		if err != nil {
			t.Fatalf("reading relayed frame: %v", err)
		}
		readTotal += n
	}

	wantPayload := []byte{0x05, 0x00, 0x00, 0x00} // bit 2 set
	if out[0] != 71 {
		t.Fatalf("packet id = %d, want 71", out[0])
	}
	gotPayload := out[7:11]
	for i := range wantPayload {
		if gotPayload[i] != wantPayload[i] {
			t.Fatalf("payload = %v, want %v", gotPayload, wantPayload)
		}
	}

	clientLocal.Close()
	serverLocal.Close()
	<-done
}

// TestCopyServerToClientBufferOverflow pins spec §8 scenario 6: a declared
// frame length that would push the residual past 1 MiB closes the
// connection instead of writing anything further.
func TestCopyServerToClientBufferOverflow(t *testing.T) {
	cfg := config.ProxyConfig{InjectSupporter: true}
	r := New(cfg, nil)

	header := make([]byte, 7)
	binary.LittleEndian.PutUint16(header[0:2], 71)
	binary.LittleEndian.PutUint32(header[3:7], 2_000_000)

	src := &fakeReader{chunks: [][]byte{header}}
	dst := &discardWriter{}

	_, err := r.copyServerToClient(dst, src)
	if !errors.Is(err, rcerr.ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
	if dst.wrote {
		t.Fatalf("expected no bytes written to client after overflow")
	}
}

type fakeReader struct {
	chunks [][]byte
	i      int
}

func (f *fakeReader) Read(p []byte) (int, error) {
	for f.i < len(f.chunks) {
		c := f.chunks[f.i]
		f.i++
		if len(c) == 0 {
			continue
		}
		n := copy(p, c)
		return n, nil
	}
	// Simulate the server never completing the declared 2MB frame: keep
	// streaming filler bytes fast enough to cross the 1 MiB cap quickly.
	n := copy(p, make([]byte, len(p)))
	if n == 0 {
		n = 1
	}
	return n, nil
}

type discardWriter struct{ wrote bool }

func (d *discardWriter) Write(p []byte) (int, error) {
	d.wrote = true
	return len(p), nil
}
